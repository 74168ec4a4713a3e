package models

import (
	"strings"
	"time"
)

type Request struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"` // custom, direct, emergency
	Status     string    `json:"status"`
	ClientID   int64     `json:"client_id"`
	ClientName string    `json:"client_name"`
	Summary    string    `json:"summary"`
	MechanicID int64     `json:"mechanic_id,omitempty"`
	ShopID     int64     `json:"shop_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NormalizeRequestStatus folds a raw backend status into the closed
// enumeration. The backend historically persisted the misspelling "qouted"
// alongside "quoted"; both map to StatusQuoted until the contract owner
// settles on one spelling. Anything unrecognized becomes StatusUnknown so
// display code never sees an open-ended value.
func NormalizeRequestStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusPending:
		return StatusPending
	case StatusQuoted, "qouted":
		return StatusQuoted
	case StatusAccepted:
		return StatusAccepted
	case StatusDeclined:
		return StatusDeclined
	case StatusCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Normalize rewrites the status in place to its canonical value.
func (r *Request) Normalize() {
	r.Status = NormalizeRequestStatus(r.Status)
}
