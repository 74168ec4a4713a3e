package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mechconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSessions keeps the session in memory for dispatcher tests.
type stubSessions struct {
	session *models.Session
}

func (s *stubSessions) GetSession(ctx context.Context) (*models.Session, error) {
	return s.session, nil
}
func (s *stubSessions) SaveSession(ctx context.Context, session *models.Session) error {
	s.session = session
	return nil
}
func (s *stubSessions) ClearSession(ctx context.Context) error {
	s.session = nil
	return nil
}

func loggedIn() *stubSessions {
	return &stubSessions{session: &models.Session{Token: "tok", MechanicID: 5}}
}

func TestAcceptRequest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/requests/42/accept/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(5), body["mechanic_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request": {"id": 42, "kind": "direct", "status": "accepted"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	req, err := client.AcceptRequest(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, int64(42), req.ID)
	assert.Equal(t, models.StatusAccepted, req.Status)
	assert.Equal(t, 1, calls)
}

func TestAcceptRequestConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error": "request already taken"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	_, err := client.AcceptRequest(context.Background(), 42)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "request already taken", err.Error())
}

func TestDeclineRequestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests/7/decline/", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	_, err := client.DeclineRequest(context.Background(), 7)

	require.Error(t, err)
	// The server message must surface verbatim.
	assert.Equal(t, "not found", err.Error())
}

func TestErrorWithoutBodyFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	err := client.CompleteBooking(context.Background(), 99)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed (http 500)", err.Error())
}

func TestAuthRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request may be sent without a session")
	}))
	defer server.Close()

	client := NewClient(server.URL, &stubSessions{}, Options{})
	_, err := client.AcceptRequest(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrAuthRequired)

	err = client.CancelBooking(context.Background(), 99, "no parts")
	assert.ErrorIs(t, err, models.ErrAuthRequired)
}

func TestQuoteRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests/11/quote/", r.URL.Path)

		var body struct {
			Items []models.QuoteItem `json:"quoted_items"`
			Note  string             `json:"providers_note"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Items, 2)
		assert.Equal(t, "Oil Change", body.Items[0].Name)
		assert.Equal(t, "800.00", body.Items[0].Price)
		assert.Equal(t, "use synthetic", body.Note)

		_, _ = w.Write([]byte(`{"request": {"id": 11, "kind": "direct", "status": "qouted"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	quote := models.Quote{
		Items: []models.QuoteItem{
			{Name: "Oil Change", Price: "800.00"},
			{Name: "Labor", Price: "500.00"},
		},
		Note: "use synthetic",
	}
	req, err := client.QuoteRequest(context.Background(), 11, quote)
	require.NoError(t, err)
	require.NotNil(t, req)

	// The backend's misspelled status normalizes at the decode boundary.
	assert.Equal(t, models.StatusQuoted, req.Status)
}

func TestCancelBookingBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(99), body["booking_id"])
		assert.Equal(t, "client no-show", body["reason"])
		assert.Equal(t, float64(5), body["cancelled_by_id"])
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	require.NoError(t, client.CancelBooking(context.Background(), 99, "client no-show"))
}

func TestListRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/requests/mechanic/pending/", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"jobs": [
            {"id": 1, "kind": "direct", "status": "pending"},
            {"id": 2, "kind": "custom", "status": "qouted"}
        ], "total": 2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	requests, total, err := client.ListRequests(context.Background(), models.BucketPending)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, requests, 2)
	assert.Equal(t, models.StatusPending, requests[0].Status)
	assert.Equal(t, models.StatusQuoted, requests[1].Status)
}

func TestListBookings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/mechanic/", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"jobs": [{"id": 99, "status": "active", "fee": "1300.00"}], "total": 1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, loggedIn(), Options{})
	bookings, total, err := client.ListBookings(context.Background(), models.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, bookings, 1)
	assert.Equal(t, "1300.00", bookings[0].Fee)
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(server.URL, loggedIn(), Options{})
	_, err := client.DeclineRequest(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNetwork)
}
