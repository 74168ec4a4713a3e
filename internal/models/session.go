package models

import "time"

// Session is the persisted credential the dispatcher attaches to every
// backend call. It replaces ad hoc reads of ambient token storage.
type Session struct {
	Token      string    `json:"token"`
	MechanicID int64     `json:"mechanic_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}
