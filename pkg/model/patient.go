package model

import (
	"strings"
	"time"
)

type Patient struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	FirstName         string    `json:"first_name" bson:"first_name" validate:"required,min=1,max=50"`
	LastName          string    `json:"last_name" bson:"last_name" validate:"required,min=1,max=50"`
	MedicalCardNumber string    `json:"medical_card_number" bson:"medical_card_number" validate:"required,card_number"`
	Phone             string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
