package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mechconnect/internal/domain"
	"mechconnect/internal/metrics"
	"mechconnect/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is the action dispatcher: every lifecycle mutation and list query
// goes through it. It attaches the persisted session credential, serializes
// the body and interprets the response; callers apply local transitions only
// when the returned error is nil.
type Client struct {
	baseURL    string
	sessions   domain.SessionStore
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Options struct {
	Timeout   time.Duration
	RateRPS   float64
	RateBurst int
}

func NewClient(baseURL string, sessions domain.SessionStore, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = models.DefaultHTTPTimeout * time.Second
	}
	if opts.RateRPS <= 0 {
		opts.RateRPS = models.DefaultRateRPS
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = models.DefaultRateBurst
	}

	return &Client{
		baseURL:    baseURL,
		sessions:   sessions,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateRPS), opts.RateBurst),
	}
}

// requestEnvelope wraps single-record mutation responses.
type requestEnvelope struct {
	Request *models.Request `json:"request"`
	Message string          `json:"message"`
}

// listEnvelope is the backend's list query shape.
type listEnvelope struct {
	Jobs    json.RawMessage `json:"jobs"`
	Total   int             `json:"total"`
	Message string          `json:"message,omitempty"`
}

func (c *Client) AcceptRequest(ctx context.Context, requestID int64) (*models.Request, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/requests/%d/accept/", c.baseURL, requestID)
	body := map[string]interface{}{"mechanic_id": session.MechanicID}

	var resp requestEnvelope
	if err := c.doPost(ctx, "accept_request", session, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Request != nil {
		resp.Request.Normalize()
	}
	return resp.Request, nil
}

func (c *Client) DeclineRequest(ctx context.Context, requestID int64) (*models.Request, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/requests/%d/decline/", c.baseURL, requestID)

	var resp requestEnvelope
	if err := c.doPost(ctx, "decline_request", session, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Request != nil {
		resp.Request.Normalize()
	}
	return resp.Request, nil
}

func (c *Client) QuoteRequest(ctx context.Context, requestID int64, quote models.Quote) (*models.Request, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/requests/%d/quote/", c.baseURL, requestID)
	body := map[string]interface{}{
		"quoted_items":   quote.Items,
		"providers_note": quote.Note,
	}

	var resp requestEnvelope
	if err := c.doPost(ctx, "quote_request", session, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Request != nil {
		resp.Request.Normalize()
	}
	return resp.Request, nil
}

func (c *Client) CancelRequest(ctx context.Context, requestID int64, reason string) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/requests/cancel/", c.baseURL)
	body := map[string]interface{}{
		"request_id": requestID,
		"reason":     reason,
	}
	return c.doPost(ctx, "cancel_request", session, endpoint, body, nil)
}

func (c *Client) CancelBooking(ctx context.Context, bookingID int64, reason string) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/bookings/cancel/", c.baseURL)
	body := map[string]interface{}{
		"booking_id":      bookingID,
		"reason":          reason,
		"cancelled_by_id": session.MechanicID,
	}
	return c.doPost(ctx, "cancel_booking", session, endpoint, body, nil)
}

func (c *Client) CompleteBooking(ctx context.Context, bookingID int64) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/bookings/complete/", c.baseURL)
	body := map[string]interface{}{"booking_id": bookingID}
	return c.doPost(ctx, "complete_booking", session, endpoint, body, nil)
}

func (c *Client) RescheduleBackjob(ctx context.Context, bookingID int64) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/bookings/%d/reschedule/", c.baseURL, bookingID)
	return c.doPost(ctx, "reschedule_backjob", session, endpoint, nil, nil)
}

func (c *Client) ListRequests(ctx context.Context, bucket string) ([]models.Request, int, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint := fmt.Sprintf("%s/api/requests/mechanic/%s/", c.baseURL, url.PathEscape(bucket))

	var resp listEnvelope
	if err := c.doGet(ctx, "list_requests", session, endpoint, &resp); err != nil {
		return nil, 0, err
	}

	var requests []models.Request
	if len(resp.Jobs) > 0 {
		if err := json.Unmarshal(resp.Jobs, &requests); err != nil {
			return nil, 0, fmt.Errorf("decode request list: %w", err)
		}
	}
	for i := range requests {
		requests[i].Normalize()
	}
	return requests, resp.Total, nil
}

func (c *Client) ListBookings(ctx context.Context, status string) ([]models.Booking, int, error) {
	session, err := c.session(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint := fmt.Sprintf("%s/api/bookings/mechanic/?status=%s", c.baseURL, url.QueryEscape(status))

	var resp listEnvelope
	if err := c.doGet(ctx, "list_bookings", session, endpoint, &resp); err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	if len(resp.Jobs) > 0 {
		if err := json.Unmarshal(resp.Jobs, &bookings); err != nil {
			return nil, 0, fmt.Errorf("decode booking list: %w", err)
		}
	}
	for i := range bookings {
		bookings[i].Normalize()
	}
	return bookings, resp.Total, nil
}

// session loads the persisted credential. A missing or empty token is an
// authentication error before any network traffic.
func (c *Client) session(ctx context.Context) (*models.Session, error) {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !session.Valid() {
		return nil, models.ErrAuthRequired
	}
	return session, nil
}

func (c *Client) doGet(ctx context.Context, name string, session *models.Session, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req, session, false)
	return c.do(name, req, out)
}

func (c *Client) doPost(ctx context.Context, name string, session *models.Session, endpoint string, body, out interface{}) error {
	// Mutations share one rate budget; this is throttling, not retrying.
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req, session, true)
	return c.do(name, req, out)
}

func (c *Client) do(name string, req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveAPIDuration(name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body errorBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.text()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request, session *models.Session, mutation bool) {
	req.Header.Set("Authorization", "Bearer "+session.Token)
	if mutation {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
}
