package domain

import (
	"context"
	"time"

	"mechconnect/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Dispatcher is the boundary to the marketplace backend. Implementations
// attach the session credential, serialize bodies and translate non-2xx
// responses into errors carrying the server message verbatim. They never
// mutate local state.
type Dispatcher interface {
	AcceptRequest(ctx context.Context, requestID int64) (*models.Request, error)
	DeclineRequest(ctx context.Context, requestID int64) (*models.Request, error)
	QuoteRequest(ctx context.Context, requestID int64, quote models.Quote) (*models.Request, error)
	CancelRequest(ctx context.Context, requestID int64, reason string) error
	CancelBooking(ctx context.Context, bookingID int64, reason string) error
	CompleteBooking(ctx context.Context, bookingID int64) error
	RescheduleBackjob(ctx context.Context, bookingID int64) error
	ListRequests(ctx context.Context, bucket string) ([]models.Request, int, error)
	ListBookings(ctx context.Context, status string) ([]models.Booking, int, error)
}

// JobCache holds list buckets fetched from the backend. The cached copy is
// never authoritative; mutations invalidate the affected buckets.
type JobCache interface {
	GetRequests(ctx context.Context, bucket string) ([]models.Request, bool, error)
	SetRequests(ctx context.Context, bucket string, requests []models.Request) error
	GetBookings(ctx context.Context, status string) ([]models.Booking, bool, error)
	SetBookings(ctx context.Context, status string, bookings []models.Booking) error
	Invalidate(ctx context.Context, keys ...string) error
}

type SessionStore interface {
	GetSession(ctx context.Context) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// LedgerWorker accepts completed bookings for asynchronous earnings-ledger
// synchronization.
type LedgerWorker interface {
	EnqueueEarning(ctx context.Context, booking *models.Booking) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type JobService interface {
	AcceptRequest(ctx context.Context, req *models.Request) error
	DeclineRequest(ctx context.Context, req *models.Request) error
	SubmitQuote(ctx context.Context, req *models.Request, quote models.Quote) error
	CancelRequest(ctx context.Context, req *models.Request, reason string) error
	CancelBooking(ctx context.Context, booking *models.Booking, reason string) error
	CompleteBooking(ctx context.Context, booking *models.Booking, amount, proofRef string) error
	RescheduleBackjob(ctx context.Context, booking *models.Booking) error
	Requests(ctx context.Context, bucket string) ([]models.Request, error)
	Bookings(ctx context.Context, status string) ([]models.Booking, error)
	CompletedSince(ctx context.Context, since time.Time) ([]models.Booking, error)
}
