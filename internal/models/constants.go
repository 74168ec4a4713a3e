package models

// Request statuses.
const (
	StatusPending   = "pending"
	StatusQuoted    = "quoted"
	StatusAccepted  = "accepted"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
)

// Booking statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusBackjob   = "backjob"
)

// StatusUnknown is the display fallback for any status value the backend
// sends that is outside the known enumeration.
const StatusUnknown = "unknown"

// Request kinds.
const (
	KindCustom    = "custom"
	KindDirect    = "direct"
	KindEmergency = "emergency"
)

// Job kinds for the tagged union passed between screens.
const (
	JobKindRequest = "request"
	JobKindBooking = "booking"
)

// Request list buckets served by the backend.
const (
	BucketPending   = "pending"
	BucketAvailable = "available"
	BucketQuoted    = "quoted"
)

const (
	// DefaultRefreshDelayMs pause before list refresh after a confirmed
	// mutation, so the notification is seen before lists change
	DefaultRefreshDelayMs = 1500

	// DefaultCacheTTL lifetime of cached job lists
	DefaultCacheTTL = 5 * 60 // 5 minutes in seconds

	// DefaultHTTPTimeout timeout for backend calls
	DefaultHTTPTimeout = 10 // seconds

	// WorkerQueueSize size of the ledger worker in-memory queue
	WorkerQueueSize = 128

	// DefaultRateRPS / DefaultRateBurst budget for mutation dispatches
	DefaultRateRPS   = 5
	DefaultRateBurst = 10
)
