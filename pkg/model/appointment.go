package model

import (
	"time"
)

type Appointment struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PatientID  string     `json:"patient_id" bson:"patient_id" validate:"required,mongodb"`
	QRToken    string     `json:"qr_token" bson:"qr_token" validate:"required,qr_token"`
	ValidFrom  time.Time  `json:"valid_from" bson:"valid_from" validate:"required"`
	ValidUntil time.Time  `json:"valid_until" bson:"valid_until" validate:"required,gtfield=ValidFrom"`
	Consumed   bool       `json:"consumed" bson:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" bson:"consumed_at,omitempty"`
	ConsumedBy string     `json:"consumed_by,omitempty" bson:"consumed_by,omitempty"`
	Revoked    bool       `json:"revoked" bson:"revoked"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type CreateAppointmentRequest struct {
	FirstName         string     `json:"first_name" validate:"required,min=1,max=50"`
	LastName          string     `json:"last_name" validate:"required,min=1,max=50"`
	MedicalCardNumber string     `json:"medical_card_number" validate:"required,card_number"`
	Phone             string     `json:"phone,omitempty" validate:"omitempty,max=20"`
	ValidFrom         *time.Time `json:"valid_from,omitempty"`
	DurationHours     int        `json:"duration_hours,omitempty" validate:"omitempty,min=1,max=168"`
}

type AppointmentCreated struct {
	AppointmentID     string    `json:"appointment_id"`
	QRCode            string    `json:"qr_code"`
	ValidFrom         time.Time `json:"valid_from"`
	ExpiresAt         time.Time `json:"expires_at"`
	PatientName       string    `json:"patient_name"`
	MedicalCardNumber string    `json:"medical_card_number"`
}

type AppointmentSummary struct {
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	ValidUntil    time.Time `json:"valid_until"`
}
