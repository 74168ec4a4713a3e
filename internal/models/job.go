package models

import "fmt"

// Job is the tagged union handed between screens instead of duck-typed maps.
// Exactly one of Request/Booking is set, matching Kind.
type Job struct {
	Kind    string   `json:"kind"` // request or booking
	Request *Request `json:"request,omitempty"`
	Booking *Booking `json:"booking,omitempty"`
}

func JobFromRequest(r *Request) Job {
	return Job{Kind: JobKindRequest, Request: r}
}

func JobFromBooking(b *Booking) Job {
	return Job{Kind: JobKindBooking, Booking: b}
}

// Validate checks the union at the navigation boundary.
func (j Job) Validate() error {
	switch j.Kind {
	case JobKindRequest:
		if j.Request == nil || j.Booking != nil {
			return fmt.Errorf("job kind %q: request payload required", j.Kind)
		}
	case JobKindBooking:
		if j.Booking == nil || j.Request != nil {
			return fmt.Errorf("job kind %q: booking payload required", j.Kind)
		}
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

func (j Job) ID() int64 {
	switch j.Kind {
	case JobKindRequest:
		if j.Request != nil {
			return j.Request.ID
		}
	case JobKindBooking:
		if j.Booking != nil {
			return j.Booking.ID
		}
	}
	return 0
}

func (j Job) Status() string {
	switch j.Kind {
	case JobKindRequest:
		if j.Request != nil {
			return j.Request.Status
		}
	case JobKindBooking:
		if j.Booking != nil {
			return j.Booking.Status
		}
	}
	return StatusUnknown
}

// RequestKind returns the request kind, empty for bookings.
func (j Job) RequestKind() string {
	if j.Kind == JobKindRequest && j.Request != nil {
		return j.Request.Kind
	}
	return ""
}

// CacheKey identifies the record across list and detail views.
func (j Job) CacheKey() string {
	return fmt.Sprintf("%s:%d", j.Kind, j.ID())
}
