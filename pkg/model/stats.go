package model

import (
	"time"
)

const (
	StatsPeriodToday = "today"
	StatsPeriodWeek  = "week"
	StatsPeriodMonth = "month"
)

// AccessStats is the aggregate returned by the stats endpoint. Period counts
// start at Since; totals ignore the period.
type AccessStats struct {
	Period              string    `json:"period"`
	Since               time.Time `json:"since"`
	AppointmentsCreated int64     `json:"appointments_created"`
	ActiveAppointments  int64     `json:"active_appointments"`
	TotalPatients       int64     `json:"total_patients"`
	EventsReceived      int64     `json:"events_received"`
	DecisionsAllowed    int64     `json:"decisions_allowed"`
	DecisionsDenied     int64     `json:"decisions_denied"`
	DecisionLogFailures int64     `json:"decision_log_failures"`
}
