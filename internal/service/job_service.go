package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"mechconnect/internal/api"
	"mechconnect/internal/domain"
	"mechconnect/internal/events"
	"mechconnect/internal/lifecycle"
	"mechconnect/internal/metrics"
	"mechconnect/internal/models"
	"mechconnect/internal/repository"

	"github.com/rs/zerolog"
)

// JobService drives the lifecycle: validate first, dispatch to the backend,
// and apply the local transition only after the server confirmed it. Local
// lists are a cache and are invalidated after every confirmed mutation.
type JobService struct {
	dispatcher   domain.Dispatcher
	cache        domain.JobCache
	eventBus     domain.EventPublisher
	ledger       domain.LedgerWorker
	refreshDelay time.Duration
	inFlight     sync.Map
	logger       *zerolog.Logger
}

func NewJobService(
	dispatcher domain.Dispatcher,
	cache domain.JobCache,
	eventBus domain.EventPublisher,
	ledger domain.LedgerWorker,
	refreshDelay time.Duration,
	logger *zerolog.Logger,
) *JobService {
	return &JobService{
		dispatcher:   dispatcher,
		cache:        cache,
		eventBus:     eventBus,
		ledger:       ledger,
		refreshDelay: refreshDelay,
		logger:       logger,
	}
}

func (s *JobService) AcceptRequest(ctx context.Context, req *models.Request) error {
	job := models.JobFromRequest(req)
	if err := s.checkAction(job, lifecycle.ActionAccept); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.dispatcher.AcceptRequest(ctx, req.ID); err != nil {
		return s.dispatchFailed(lifecycle.ActionAccept, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionAccept, events.EventRequestAccepted, events.JobEventPayload{},
		repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketAvailable))
	return nil
}

func (s *JobService) DeclineRequest(ctx context.Context, req *models.Request) error {
	job := models.JobFromRequest(req)
	if err := s.checkAction(job, lifecycle.ActionDecline); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.dispatcher.DeclineRequest(ctx, req.ID); err != nil {
		return s.dispatchFailed(lifecycle.ActionDecline, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionDecline, events.EventRequestDeclined, events.JobEventPayload{},
		repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketAvailable))
	return nil
}

func (s *JobService) SubmitQuote(ctx context.Context, req *models.Request, quote models.Quote) error {
	job := models.JobFromRequest(req)
	if err := s.checkAction(job, lifecycle.ActionQuote); err != nil {
		return err
	}

	validItems := quote.ValidItems()
	if len(validItems) == 0 {
		metrics.IncAction(lifecycle.ActionQuote, metrics.OutcomeValidated)
		return models.ErrNoQuoteItems
	}
	cleaned := models.Quote{Items: validItems, Note: quote.Note}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.dispatcher.QuoteRequest(ctx, req.ID, cleaned); err != nil {
		return s.dispatchFailed(lifecycle.ActionQuote, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionQuote, events.EventQuoteSubmitted,
		events.JobEventPayload{QuoteTotal: cleaned.Total()},
		repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketQuoted))
	return nil
}

func (s *JobService) CancelRequest(ctx context.Context, req *models.Request, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		metrics.IncAction(lifecycle.ActionCancel, metrics.OutcomeValidated)
		return models.ErrEmptyReason
	}

	job := models.JobFromRequest(req)
	if err := s.checkAction(job, lifecycle.ActionCancel); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if err := s.dispatcher.CancelRequest(ctx, req.ID, reason); err != nil {
		return s.dispatchFailed(lifecycle.ActionCancel, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionCancel, events.EventRequestCancelled,
		events.JobEventPayload{Message: reason},
		repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketQuoted),
		repository.RequestKey(models.BucketAvailable))
	return nil
}

func (s *JobService) CancelBooking(ctx context.Context, booking *models.Booking, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		metrics.IncAction(lifecycle.ActionCancel, metrics.OutcomeValidated)
		return models.ErrEmptyReason
	}

	job := models.JobFromBooking(booking)
	if err := s.checkAction(job, lifecycle.ActionCancel); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if err := s.dispatcher.CancelBooking(ctx, booking.ID, reason); err != nil {
		return s.dispatchFailed(lifecycle.ActionCancel, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionCancel, events.EventBookingCancelled,
		events.JobEventPayload{Message: reason},
		repository.BookingKey(models.StatusActive), repository.BookingKey(models.StatusCancelled))
	return nil
}

// CompleteBooking marks a job done with payment. The amount and the
// proof-of-payment reference are client-side artifacts checked before any
// network call; the backend only receives the booking id.
func (s *JobService) CompleteBooking(ctx context.Context, booking *models.Booking, amount, proofRef string) error {
	cents, err := models.ParsePrice(amount)
	if err != nil || cents == 0 {
		metrics.IncAction(lifecycle.ActionComplete, metrics.OutcomeValidated)
		return models.ErrInvalidAmount
	}
	if strings.TrimSpace(proofRef) == "" {
		metrics.IncAction(lifecycle.ActionComplete, metrics.OutcomeValidated)
		return models.ErrMissingProof
	}

	job := models.JobFromBooking(booking)
	if err := s.checkAction(job, lifecycle.ActionComplete); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if err := s.dispatcher.CompleteBooking(ctx, booking.ID); err != nil {
		return s.dispatchFailed(lifecycle.ActionComplete, job, err)
	}

	now := time.Now()
	booking.CompletedAt = &now
	booking.Fee = models.FormatCents(cents)

	s.confirm(ctx, job, lifecycle.ActionComplete, events.EventBookingCompleted,
		events.JobEventPayload{Amount: models.FormatCents(cents)},
		repository.BookingKey(models.StatusActive), repository.BookingKey(models.StatusCompleted))

	if s.ledger != nil {
		if err := s.ledger.EnqueueEarning(ctx, booking); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("ledger enqueue error")
		}
	}
	return nil
}

// RescheduleBackjob asks the backend to reschedule a follow-up job. The
// status stays backjob; only a notification goes out.
func (s *JobService) RescheduleBackjob(ctx context.Context, booking *models.Booking) error {
	job := models.JobFromBooking(booking)
	if err := s.checkAction(job, lifecycle.ActionReschedule); err != nil {
		return err
	}

	release, err := s.begin(job)
	if err != nil {
		return err
	}
	defer release()

	if err := s.dispatcher.RescheduleBackjob(ctx, booking.ID); err != nil {
		return s.dispatchFailed(lifecycle.ActionReschedule, job, err)
	}

	s.confirm(ctx, job, lifecycle.ActionReschedule, events.EventBackjobReschedule, events.JobEventPayload{},
		repository.BookingKey(models.StatusBackjob))
	return nil
}

// Requests serves a list bucket, cache first, backend on miss.
func (s *JobService) Requests(ctx context.Context, bucket string) ([]models.Request, error) {
	cached, ok, err := s.cache.GetRequests(ctx, bucket)
	if err == nil && ok {
		return cached, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("bucket", bucket).Msg("request cache read error")
	}

	requests, _, err := s.dispatcher.ListRequests(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRequests(ctx, bucket, requests); err != nil {
		s.logger.Warn().Err(err).Str("bucket", bucket).Msg("request cache write error")
	}
	return requests, nil
}

func (s *JobService) Bookings(ctx context.Context, status string) ([]models.Booking, error) {
	cached, ok, err := s.cache.GetBookings(ctx, status)
	if err == nil && ok {
		return cached, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("status", status).Msg("booking cache read error")
	}

	bookings, _, err := s.dispatcher.ListBookings(ctx, status)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBookings(ctx, status, bookings); err != nil {
		s.logger.Warn().Err(err).Str("status", status).Msg("booking cache write error")
	}
	return bookings, nil
}

// CompletedSince returns completed bookings whose completion time is at or
// after the given instant, for earnings views and exports.
func (s *JobService) CompletedSince(ctx context.Context, since time.Time) ([]models.Booking, error) {
	completed, err := s.Bookings(ctx, models.StatusCompleted)
	if err != nil {
		return nil, err
	}

	var result []models.Booking
	for _, b := range completed {
		if b.CompletedAt != nil && !b.CompletedAt.Before(since) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *JobService) checkAction(job models.Job, action string) error {
	if err := job.Validate(); err != nil {
		metrics.IncAction(action, metrics.OutcomeValidated)
		return err
	}
	if !lifecycle.CanAct(job, action) {
		metrics.IncAction(action, metrics.OutcomeValidated)
		return lifecycle.ErrInvalidTransition
	}
	return nil
}

// begin takes the per-record in-flight slot so a double tap cannot run two
// mutations against the same record.
func (s *JobService) begin(job models.Job) (func(), error) {
	key := job.CacheKey()
	if _, loaded := s.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil, models.ErrActionInFlight
	}
	return func() { s.inFlight.Delete(key) }, nil
}

// confirm runs the post-confirmation tail: local transition, event, cache
// invalidation and the delayed list refresh.
func (s *JobService) confirm(ctx context.Context, job models.Job, action, eventType string, payload events.JobEventPayload, keys ...string) {
	if err := lifecycle.Apply(job, action); err != nil {
		// The transition was pre-checked; a failure here means the record
		// changed underneath us mid-flight.
		s.logger.Error().Err(err).Str("action", action).Int64("job_id", job.ID()).Msg("apply transition error")
	}
	metrics.IncAction(action, metrics.OutcomeSuccess)

	payload.JobKind = job.Kind
	payload.JobID = job.ID()
	payload.Status = job.Status()
	payload.Action = action
	if job.Kind == models.JobKindRequest {
		payload.Summary = job.Request.Summary
	} else {
		payload.Summary = job.Booking.Summary
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("job_id", job.ID()).Msg("publish event error")
	}

	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidate error")
	}
	s.scheduleRefresh(keys)
}

// scheduleRefresh re-fetches the invalidated buckets after the configured
// delay, so the notification is read before lists visibly change. A zero
// delay disables the background refresh; the next read fetches instead.
func (s *JobService) scheduleRefresh(keys []string) {
	if s.refreshDelay <= 0 {
		return
	}

	go func() {
		time.Sleep(s.refreshDelay)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		for _, key := range keys {
			switch {
			case strings.HasPrefix(key, "requests:"):
				bucket := strings.TrimPrefix(key, "requests:")
				requests, _, err := s.dispatcher.ListRequests(ctx, bucket)
				if err != nil {
					s.logger.Warn().Err(err).Str("bucket", bucket).Msg("list refresh error")
					continue
				}
				_ = s.cache.SetRequests(ctx, bucket, requests)
			case strings.HasPrefix(key, "bookings:"):
				status := strings.TrimPrefix(key, "bookings:")
				bookings, _, err := s.dispatcher.ListBookings(ctx, status)
				if err != nil {
					s.logger.Warn().Err(err).Str("status", status).Msg("list refresh error")
					continue
				}
				_ = s.cache.SetBookings(ctx, status, bookings)
			}
		}
	}()
}

// dispatchFailed records the outcome, publishes the user-visible failure
// notification and hands the original error back. Local state is untouched.
func (s *JobService) dispatchFailed(action string, job models.Job, err error) error {
	outcome := metrics.OutcomeRejected
	if errors.Is(err, api.ErrNetwork) {
		outcome = metrics.OutcomeNetwork
	}
	metrics.IncAction(action, outcome)

	payload := events.JobEventPayload{
		JobKind: job.Kind,
		JobID:   job.ID(),
		Status:  job.Status(),
		Action:  action,
		Message: err.Error(),
	}
	if pubErr := s.eventBus.PublishJSON(events.EventActionFailed, payload); pubErr != nil {
		s.logger.Error().Err(pubErr).Int64("job_id", job.ID()).Msg("publish failure event error")
	}

	s.logger.Error().Err(err).Str("action", action).Int64("job_id", job.ID()).Msg("dispatch error")
	return err
}
