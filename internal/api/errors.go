package api

import (
	"errors"
	"fmt"
)

// ErrNetwork wraps transport failures; the text is what the user sees.
var ErrNetwork = errors.New("network error, please try again")

// APIError is a server-rejected mutation or query. Message carries the
// backend's error text verbatim when the body provided one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (http %d)", e.StatusCode)
}

// errorBody is the shape backend errors arrive in. Some endpoints use
// "error", some "message".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}
