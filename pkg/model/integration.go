package model

import (
	"time"
)

// Integration is a partner system allowed to call the JSON API. The token
// travels in X-API-Token (or the body "token" field for legacy callers).
type Integration struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	APIToken  string    `json:"api_token,omitempty" bson:"api_token" validate:"omitempty,len=64,hexadecimal"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}
