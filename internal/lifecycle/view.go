package lifecycle

import "mechconnect/internal/models"

// View is the user-facing projection of a job status: a label, a badge CSS
// class and the actions the UI may offer. Pure data, no I/O.
type View struct {
	Label   string
	Badge   string
	Actions []string
}

// ViewFor projects a job onto its display state. Total over the closed
// status enumerations plus an unknown fallback; calling it twice with the
// same job yields identical views.
func ViewFor(job models.Job) View {
	switch job.Kind {
	case models.JobKindRequest:
		return requestView(job.Status(), job.RequestKind())
	case models.JobKindBooking:
		return bookingView(job.Status())
	default:
		return unknownView()
	}
}

func requestView(status, kind string) View {
	switch status {
	case models.StatusPending:
		actions := []string{ActionDecline}
		if kind == models.KindDirect {
			actions = append(actions, ActionQuote)
		}
		actions = append(actions, ActionAccept)
		return View{Label: "Pending Response", Badge: "status-pending", Actions: actions}
	case models.StatusQuoted:
		return View{Label: "Quote Sent", Badge: "status-quoted", Actions: []string{ActionContact}}
	case models.StatusAccepted:
		return View{Label: "Accepted", Badge: "status-accepted", Actions: []string{ActionContact}}
	case models.StatusDeclined:
		return View{Label: "Declined", Badge: "status-declined", Actions: []string{}}
	case models.StatusCancelled:
		return View{Label: "Cancelled", Badge: "status-cancelled", Actions: []string{}}
	default:
		return unknownView()
	}
}

func bookingView(status string) View {
	switch status {
	case models.StatusActive:
		return View{Label: "In Progress", Badge: "status-active", Actions: []string{ActionContact, ActionStart}}
	case models.StatusCompleted:
		return View{Label: "Completed", Badge: "status-completed", Actions: []string{ActionContact}}
	case models.StatusBackjob:
		return View{Label: "Follow-up Job", Badge: "status-backjob", Actions: []string{ActionReschedule, ActionContact}}
	case models.StatusCancelled:
		return View{Label: "Cancelled", Badge: "status-cancelled", Actions: []string{}}
	default:
		return unknownView()
	}
}

func unknownView() View {
	return View{Label: "Unknown", Badge: "status-unknown", Actions: []string{}}
}
