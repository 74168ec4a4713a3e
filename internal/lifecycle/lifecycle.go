package lifecycle

import (
	"errors"
	"fmt"

	"mechconnect/internal/models"
)

// Actions a mechanic can take against a job. Mutating actions go through the
// dispatcher; Contact and Start are navigation-only and never change status.
const (
	ActionAccept     = "accept"
	ActionDecline    = "decline"
	ActionQuote      = "quote"
	ActionCancel     = "cancel"
	ActionComplete   = "complete"
	ActionReschedule = "reschedule"
	ActionContact    = "contact"
	ActionStart      = "start"
)

var ErrInvalidTransition = errors.New("action not allowed in current status")

// rule lists the statuses an action may start from and the status it lands
// on. Result equal to the source (reschedule) means the status is unchanged.
type rule struct {
	from   []string
	result string
}

var requestRules = map[string]rule{
	ActionAccept:  {from: []string{models.StatusPending}, result: models.StatusAccepted},
	ActionDecline: {from: []string{models.StatusPending}, result: models.StatusDeclined},
	ActionQuote:   {from: []string{models.StatusPending}, result: models.StatusQuoted},
	ActionCancel:  {from: []string{models.StatusPending, models.StatusQuoted}, result: models.StatusCancelled},
}

var bookingRules = map[string]rule{
	ActionCancel:   {from: []string{models.StatusActive}, result: models.StatusCancelled},
	ActionComplete: {from: []string{models.StatusActive}, result: models.StatusCompleted},
	// Rescheduling a backjob is a notification-only action; the backend
	// keeps the status as backjob.
	ActionReschedule: {from: []string{models.StatusBackjob}, result: models.StatusBackjob},
}

func lookup(job models.Job, action string) (rule, bool) {
	var rules map[string]rule
	switch job.Kind {
	case models.JobKindRequest:
		rules = requestRules
	case models.JobKindBooking:
		rules = bookingRules
	default:
		return rule{}, false
	}
	r, ok := rules[action]
	return r, ok
}

// CanAct reports whether the action is legal for the job's current status.
// Quoting additionally requires a direct request.
func CanAct(job models.Job, action string) bool {
	r, ok := lookup(job, action)
	if !ok {
		return false
	}
	if action == ActionQuote && job.RequestKind() != models.KindDirect {
		return false
	}
	for _, s := range r.from {
		if job.Status() == s {
			return true
		}
	}
	return false
}

// Apply advances the job to the action's resulting status. It is called only
// after the backend confirmed the mutation; callers must never apply a
// transition optimistically.
func Apply(job models.Job, action string) error {
	if !CanAct(job, action) {
		return fmt.Errorf("%w: %s %s in status %q", ErrInvalidTransition, action, job.Kind, job.Status())
	}

	r, _ := lookup(job, action)
	switch job.Kind {
	case models.JobKindRequest:
		job.Request.Status = r.result
	case models.JobKindBooking:
		job.Booking.Status = r.result
	}
	return nil
}
