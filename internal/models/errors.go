package models

import "errors"

// Validation and precondition errors. These are caught before any network
// call and their text is what the user sees.
var (
	ErrEmptyReason    = errors.New("Please provide a cancellation reason")
	ErrNoQuoteItems   = errors.New("Please add at least one valid quote item")
	ErrInvalidPrice   = errors.New("invalid item price")
	ErrInvalidAmount  = errors.New("Please enter a valid amount")
	ErrMissingProof   = errors.New("Proof of payment is required")
	ErrAuthRequired   = errors.New("Authentication required")
	ErrActionInFlight = errors.New("action already in progress")
)
