package model

import (
	"time"
)

const (
	TerminalModeEntry = "entry"
	TerminalModeExit  = "exit"
	TerminalModeBoth  = "both"
)

type Terminal struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name       string     `json:"name" bson:"name" validate:"required,min=2,max=100"`
	IP         string     `json:"ip" bson:"ip" validate:"required,ip"`
	MACAddress string     `json:"mac_address,omitempty" bson:"mac_address,omitempty" validate:"omitempty,mac_address"`
	Username   string     `json:"username,omitempty" bson:"username,omitempty" validate:"omitempty,max=50"`
	Password   string     `json:"-" bson:"password,omitempty"`
	Mode       string     `json:"mode" bson:"mode" validate:"required,oneof=entry exit both"`
	DoorNo     int        `json:"door_no,omitempty" bson:"door_no,omitempty" validate:"omitempty,min=1,max=8"`
	Active     bool       `json:"active" bson:"active"`
	Reachable  bool       `json:"reachable" bson:"reachable"`
	LastSeen   *time.Time `json:"last_seen,omitempty" bson:"last_seen,omitempty"`
	LastError  string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// TerminalUpdate is a partial patch; nil fields stay untouched.
type TerminalUpdate struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	IP         *string `json:"ip,omitempty" validate:"omitempty,ip"`
	MACAddress *string `json:"mac_address,omitempty" validate:"omitempty,mac_address"`
	Username   *string `json:"username,omitempty" validate:"omitempty,max=50"`
	Password   *string `json:"password,omitempty" validate:"omitempty,max=100"`
	Mode       *string `json:"mode,omitempty" validate:"omitempty,oneof=entry exit both"`
	DoorNo     *int    `json:"door_no,omitempty" validate:"omitempty,min=1,max=8"`
	Active     *bool   `json:"active,omitempty"`
}

// TerminalHealth is the probe outcome persisted after an ISAPI round trip.
type TerminalHealth struct {
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checked_at"`
	Model     string    `json:"model,omitempty"`
	Serial    string    `json:"serial,omitempty"`
	Firmware  string    `json:"firmware,omitempty"`
	Error     string    `json:"error,omitempty"`
}
