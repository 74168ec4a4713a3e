package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"mechconnect/internal/api"
	"mechconnect/internal/domain"
	"mechconnect/internal/events"
	"mechconnect/internal/lifecycle"
	"mechconnect/internal/models"
	"mechconnect/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) AcceptRequest(ctx context.Context, requestID int64) (*models.Request, error) {
	args := m.Called(ctx, requestID)
	req, _ := args.Get(0).(*models.Request)
	return req, args.Error(1)
}

func (m *mockDispatcher) DeclineRequest(ctx context.Context, requestID int64) (*models.Request, error) {
	args := m.Called(ctx, requestID)
	req, _ := args.Get(0).(*models.Request)
	return req, args.Error(1)
}

func (m *mockDispatcher) QuoteRequest(ctx context.Context, requestID int64, quote models.Quote) (*models.Request, error) {
	args := m.Called(ctx, requestID, quote)
	req, _ := args.Get(0).(*models.Request)
	return req, args.Error(1)
}

func (m *mockDispatcher) CancelRequest(ctx context.Context, requestID int64, reason string) error {
	return m.Called(ctx, requestID, reason).Error(0)
}

func (m *mockDispatcher) CancelBooking(ctx context.Context, bookingID int64, reason string) error {
	return m.Called(ctx, bookingID, reason).Error(0)
}

func (m *mockDispatcher) CompleteBooking(ctx context.Context, bookingID int64) error {
	return m.Called(ctx, bookingID).Error(0)
}

func (m *mockDispatcher) RescheduleBackjob(ctx context.Context, bookingID int64) error {
	return m.Called(ctx, bookingID).Error(0)
}

func (m *mockDispatcher) ListRequests(ctx context.Context, bucket string) ([]models.Request, int, error) {
	args := m.Called(ctx, bucket)
	reqs, _ := args.Get(0).([]models.Request)
	return reqs, args.Int(1), args.Error(2)
}

func (m *mockDispatcher) ListBookings(ctx context.Context, status string) ([]models.Booking, int, error) {
	args := m.Called(ctx, status)
	bookings, _ := args.Get(0).([]models.Booking)
	return bookings, args.Int(1), args.Error(2)
}

type mockJobCache struct {
	mock.Mock
}

func (m *mockJobCache) GetRequests(ctx context.Context, bucket string) ([]models.Request, bool, error) {
	args := m.Called(ctx, bucket)
	reqs, _ := args.Get(0).([]models.Request)
	return reqs, args.Bool(1), args.Error(2)
}

func (m *mockJobCache) SetRequests(ctx context.Context, bucket string, requests []models.Request) error {
	return m.Called(ctx, bucket, requests).Error(0)
}

func (m *mockJobCache) GetBookings(ctx context.Context, status string) ([]models.Booking, bool, error) {
	args := m.Called(ctx, status)
	bookings, _ := args.Get(0).([]models.Booking)
	return bookings, args.Bool(1), args.Error(2)
}

func (m *mockJobCache) SetBookings(ctx context.Context, status string, bookings []models.Booking) error {
	return m.Called(ctx, status, bookings).Error(0)
}

func (m *mockJobCache) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) EnqueueEarning(ctx context.Context, booking *models.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type    string
	Payload events.JobEventPayload
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded events.JobEventPayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: eventType, Payload: decoded})
	return nil
}

func (b *recordingBus) last(t *testing.T) recordedEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.events)
	return b.events[len(b.events)-1]
}

func newTestService(dispatcher *mockDispatcher, cache *mockJobCache, bus *recordingBus, ledger *mockLedger) *JobService {
	logger := zerolog.New(io.Discard)
	var lw domain.LedgerWorker
	if ledger != nil {
		lw = ledger
	}
	return NewJobService(dispatcher, cache, bus, lw, 0, &logger)
}

func TestAcceptRequest(t *testing.T) {
	t.Run("success transitions and invalidates", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		req := &models.Request{ID: 42, Kind: models.KindCustom, Status: models.StatusPending, Summary: "brake pads"}
		dispatcher.On("AcceptRequest", mock.Anything, int64(42)).
			Return(&models.Request{ID: 42, Status: models.StatusAccepted}, nil)
		cache.On("Invalidate", mock.Anything,
			[]string{repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketAvailable)}).
			Return(nil)

		err := svc.AcceptRequest(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, req.Status)
		evt := bus.last(t)
		assert.Equal(t, events.EventRequestAccepted, evt.Type)
		assert.Equal(t, int64(42), evt.Payload.JobID)
		assert.Equal(t, models.StatusAccepted, evt.Payload.Status)
		assert.Equal(t, "brake pads", evt.Payload.Summary)
		dispatcher.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("server rejection leaves status untouched", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		req := &models.Request{ID: 7, Kind: models.KindCustom, Status: models.StatusPending}
		dispatcher.On("AcceptRequest", mock.Anything, int64(7)).
			Return(nil, &api.APIError{StatusCode: 409, Message: "request was cancelled by the client"})

		err := svc.AcceptRequest(context.Background(), req)

		require.EqualError(t, err, "request was cancelled by the client")
		assert.Equal(t, models.StatusPending, req.Status)
		evt := bus.last(t)
		assert.Equal(t, events.EventActionFailed, evt.Type)
		assert.Equal(t, "request was cancelled by the client", evt.Payload.Message)
		cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("wrong status blocked before network", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		svc := newTestService(dispatcher, cache, &recordingBus{}, nil)

		req := &models.Request{ID: 9, Kind: models.KindCustom, Status: models.StatusAccepted}
		err := svc.AcceptRequest(context.Background(), req)

		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
		dispatcher.AssertNotCalled(t, "AcceptRequest", mock.Anything, mock.Anything)
	})
}

func TestDeclineRequest(t *testing.T) {
	t.Run("not found stays pending", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		req := &models.Request{ID: 7, Kind: models.KindDirect, Status: models.StatusPending}
		dispatcher.On("DeclineRequest", mock.Anything, int64(7)).
			Return(nil, &api.APIError{StatusCode: 404, Message: "not found"})

		err := svc.DeclineRequest(context.Background(), req)

		require.EqualError(t, err, "not found")
		assert.Equal(t, models.StatusPending, req.Status)
		assert.Equal(t, events.EventActionFailed, bus.last(t).Type)
	})

	t.Run("success declines", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		req := &models.Request{ID: 8, Kind: models.KindEmergency, Status: models.StatusPending}
		dispatcher.On("DeclineRequest", mock.Anything, int64(8)).Return(&models.Request{ID: 8}, nil)
		cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, svc.DeclineRequest(context.Background(), req))
		assert.Equal(t, models.StatusDeclined, req.Status)
	})
}

func TestSubmitQuote(t *testing.T) {
	t.Run("filters blank rows and sends valid items", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		req := &models.Request{ID: 11, Kind: models.KindDirect, Status: models.StatusPending}
		quote := models.Quote{
			Items: []models.QuoteItem{
				{Name: "Replace brake pads", Price: "800.00"},
				{Name: "", Price: "100.00"},
				{Name: "Labor", Price: "500.00"},
			},
			Note: "parts included",
		}
		sent := models.Quote{
			Items: []models.QuoteItem{
				{Name: "Replace brake pads", Price: "800.00"},
				{Name: "Labor", Price: "500.00"},
			},
			Note: "parts included",
		}
		dispatcher.On("QuoteRequest", mock.Anything, int64(11), sent).
			Return(&models.Request{ID: 11, Status: models.StatusQuoted}, nil)
		cache.On("Invalidate", mock.Anything,
			[]string{repository.RequestKey(models.BucketPending), repository.RequestKey(models.BucketQuoted)}).
			Return(nil)

		err := svc.SubmitQuote(context.Background(), req, quote)

		require.NoError(t, err)
		assert.Equal(t, models.StatusQuoted, req.Status)
		assert.Equal(t, "1300.00", bus.last(t).Payload.QuoteTotal)
		dispatcher.AssertExpectations(t)
	})

	t.Run("no valid items blocked before network", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		svc := newTestService(dispatcher, new(mockJobCache), &recordingBus{}, nil)

		req := &models.Request{ID: 12, Kind: models.KindDirect, Status: models.StatusPending}
		quote := models.Quote{Items: []models.QuoteItem{{Name: "   ", Price: "abc"}}}

		err := svc.SubmitQuote(context.Background(), req, quote)

		assert.ErrorIs(t, err, models.ErrNoQuoteItems)
		dispatcher.AssertNotCalled(t, "QuoteRequest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("custom request cannot be quoted", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		svc := newTestService(dispatcher, new(mockJobCache), &recordingBus{}, nil)

		req := &models.Request{ID: 13, Kind: models.KindCustom, Status: models.StatusPending}
		quote := models.Quote{Items: []models.QuoteItem{{Name: "Labor", Price: "100.00"}}}

		err := svc.SubmitQuote(context.Background(), req, quote)

		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
		dispatcher.AssertNotCalled(t, "QuoteRequest", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelValidation(t *testing.T) {
	t.Run("whitespace reason blocked before network", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		svc := newTestService(dispatcher, new(mockJobCache), &recordingBus{}, nil)

		req := &models.Request{ID: 3, Kind: models.KindCustom, Status: models.StatusQuoted}
		err := svc.CancelRequest(context.Background(), req, "   ")

		assert.ErrorIs(t, err, models.ErrEmptyReason)
		dispatcher.AssertNotCalled(t, "CancelRequest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("booking cancel sends trimmed reason", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		svc := newTestService(dispatcher, cache, bus, nil)

		booking := &models.Booking{ID: 21, Status: models.StatusActive}
		dispatcher.On("CancelBooking", mock.Anything, int64(21), "client no-show").Return(nil)
		cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, svc.CancelBooking(context.Background(), booking, "  client no-show  "))
		assert.Equal(t, models.StatusCancelled, booking.Status)
		assert.Equal(t, events.EventBookingCancelled, bus.last(t).Type)
	})
}

func TestCompleteBooking(t *testing.T) {
	t.Run("zero amount blocked before network", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		svc := newTestService(dispatcher, new(mockJobCache), &recordingBus{}, nil)

		booking := &models.Booking{ID: 5, Status: models.StatusActive}
		err := svc.CompleteBooking(context.Background(), booking, "0", "receipt-1")

		require.Error(t, err)
		assert.Equal(t, "Please enter a valid amount", err.Error())
		assert.Equal(t, models.StatusActive, booking.Status)
		dispatcher.AssertNotCalled(t, "CompleteBooking", mock.Anything, mock.Anything)
	})

	t.Run("unparseable amount blocked", func(t *testing.T) {
		svc := newTestService(new(mockDispatcher), new(mockJobCache), &recordingBus{}, nil)

		booking := &models.Booking{ID: 5, Status: models.StatusActive}
		err := svc.CompleteBooking(context.Background(), booking, "12.345", "receipt-1")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("missing proof blocked", func(t *testing.T) {
		svc := newTestService(new(mockDispatcher), new(mockJobCache), &recordingBus{}, nil)

		booking := &models.Booking{ID: 5, Status: models.StatusActive}
		err := svc.CompleteBooking(context.Background(), booking, "150.00", "  ")
		assert.ErrorIs(t, err, models.ErrMissingProof)
	})

	t.Run("success completes and enqueues earning", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		bus := &recordingBus{}
		ledger := new(mockLedger)
		svc := newTestService(dispatcher, cache, bus, ledger)

		booking := &models.Booking{ID: 30, Status: models.StatusActive, Summary: "engine diagnostics"}
		dispatcher.On("CompleteBooking", mock.Anything, int64(30)).Return(nil)
		cache.On("Invalidate", mock.Anything,
			[]string{repository.BookingKey(models.StatusActive), repository.BookingKey(models.StatusCompleted)}).
			Return(nil)
		ledger.On("EnqueueEarning", mock.Anything, booking).Return(nil)

		err := svc.CompleteBooking(context.Background(), booking, "150.00", "receipt-77")

		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, booking.Status)
		assert.Equal(t, "150.00", booking.Fee)
		require.NotNil(t, booking.CompletedAt)
		evt := bus.last(t)
		assert.Equal(t, events.EventBookingCompleted, evt.Type)
		assert.Equal(t, "150.00", evt.Payload.Amount)
		ledger.AssertExpectations(t)
	})
}

func TestRescheduleBackjob(t *testing.T) {
	dispatcher := new(mockDispatcher)
	cache := new(mockJobCache)
	bus := &recordingBus{}
	svc := newTestService(dispatcher, cache, bus, nil)

	booking := &models.Booking{ID: 40, Status: models.StatusBackjob}
	dispatcher.On("RescheduleBackjob", mock.Anything, int64(40)).Return(nil)
	cache.On("Invalidate", mock.Anything, []string{repository.BookingKey(models.StatusBackjob)}).Return(nil)

	require.NoError(t, svc.RescheduleBackjob(context.Background(), booking))
	assert.Equal(t, models.StatusBackjob, booking.Status)
	assert.Equal(t, events.EventBackjobReschedule, bus.last(t).Type)
}

func TestInFlightGuard(t *testing.T) {
	dispatcher := new(mockDispatcher)
	cache := new(mockJobCache)
	svc := newTestService(dispatcher, cache, &recordingBus{}, nil)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	dispatcher.On("AcceptRequest", mock.Anything, int64(50)).
		Run(func(mock.Arguments) {
			close(entered)
			<-proceed
		}).
		Return(&models.Request{ID: 50}, nil).
		Once()
	cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)

	first := &models.Request{ID: 50, Kind: models.KindCustom, Status: models.StatusPending}
	done := make(chan error, 1)
	go func() {
		done <- svc.AcceptRequest(context.Background(), first)
	}()

	<-entered
	second := &models.Request{ID: 50, Kind: models.KindCustom, Status: models.StatusPending}
	err := svc.AcceptRequest(context.Background(), second)
	assert.ErrorIs(t, err, models.ErrActionInFlight)

	close(proceed)
	require.NoError(t, <-done)
	assert.Equal(t, models.StatusAccepted, first.Status)

	// The slot is released after the first call; a retry proceeds.
	dispatcher.On("AcceptRequest", mock.Anything, int64(50)).
		Return(&models.Request{ID: 50}, nil)
	require.NoError(t, svc.AcceptRequest(context.Background(), second))
}

func TestRequestsCache(t *testing.T) {
	t.Run("hit skips the backend", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		svc := newTestService(dispatcher, cache, &recordingBus{}, nil)

		cached := []models.Request{{ID: 1, Status: models.StatusPending}}
		cache.On("GetRequests", mock.Anything, models.BucketPending).Return(cached, true, nil)

		got, err := svc.Requests(context.Background(), models.BucketPending)
		require.NoError(t, err)
		assert.Equal(t, cached, got)
		dispatcher.AssertNotCalled(t, "ListRequests", mock.Anything, mock.Anything)
	})

	t.Run("miss fetches and stores", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		cache := new(mockJobCache)
		svc := newTestService(dispatcher, cache, &recordingBus{}, nil)

		fetched := []models.Request{{ID: 2, Status: models.StatusPending}}
		cache.On("GetRequests", mock.Anything, models.BucketPending).Return(nil, false, nil)
		dispatcher.On("ListRequests", mock.Anything, models.BucketPending).Return(fetched, 1, nil)
		cache.On("SetRequests", mock.Anything, models.BucketPending, fetched).Return(nil)

		got, err := svc.Requests(context.Background(), models.BucketPending)
		require.NoError(t, err)
		assert.Equal(t, fetched, got)
		cache.AssertExpectations(t)
	})
}

func TestCompletedSince(t *testing.T) {
	dispatcher := new(mockDispatcher)
	cache := new(mockJobCache)
	svc := newTestService(dispatcher, cache, &recordingBus{}, nil)

	now := time.Now()
	older := now.Add(-48 * time.Hour)
	bookings := []models.Booking{
		{ID: 1, Status: models.StatusCompleted, CompletedAt: &now},
		{ID: 2, Status: models.StatusCompleted, CompletedAt: &older},
		{ID: 3, Status: models.StatusCompleted},
	}
	cache.On("GetBookings", mock.Anything, models.StatusCompleted).Return(bookings, true, nil)

	got, err := svc.CompletedSince(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}
