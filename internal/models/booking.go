package models

import (
	"strings"
	"time"
)

type Booking struct {
	ID          int64      `json:"id"`
	RequestID   int64      `json:"request_id"`
	Status      string     `json:"status"` // active, completed, backjob, cancelled
	Fee         string     `json:"fee"`
	ClientID    int64      `json:"client_id"`
	ClientName  string     `json:"client_name"`
	MechanicID  int64      `json:"mechanic_id"`
	ServiceType string     `json:"service_type"`
	Summary     string     `json:"summary"`
	Location    string     `json:"location"`
	BookedAt    time.Time  `json:"booked_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NormalizeBookingStatus folds a raw backend status into the closed
// enumeration, StatusUnknown for anything else.
func NormalizeBookingStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusActive:
		return StatusActive
	case StatusCompleted:
		return StatusCompleted
	case StatusBackjob:
		return StatusBackjob
	case StatusCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

func (b *Booking) Normalize() {
	b.Status = NormalizeBookingStatus(b.Status)
}

// FeeCents parses the fee string into exact cents; 0 when unparseable.
func (b *Booking) FeeCents() int64 {
	cents, err := ParsePrice(b.Fee)
	if err != nil {
		return 0
	}
	return cents
}
