package model

import (
	"crypto/rand"
	"time"
)

const tripIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSyncTripID mints a synchronous trip id: "s_" + 16 random alphanumerics.
// Synchronous trips mint their own id because the queue is never involved;
// the "s_" prefix keeps the id space disjoint from queue-assigned async
// ids so the two can never collide.
func NewSyncTripID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 16)
	for i, b := range buf {
		out[i] = tripIDAlphabet[int(b)%len(tripIDAlphabet)]
	}
	return "s_" + string(out), nil
}

// TripMetadata carries the admission and queue-acknowledgment state that
// travels alongside a trip request.
type TripMetadata struct {
	ID            *string   `json:"id,omitempty"`
	ReceiptHandle *string   `json:"receipt_handle,omitempty"`
	Region        string    `json:"region"`
	AccountID     string    `json:"account_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TripPromise is returned to the client after an async trip is enqueued.
type TripPromise struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpectedAt  time.Time `json:"expected_at"`
}

// TripStatus is the lifecycle state of a persisted trip record.
type TripStatus string

const (
	TripPending TripStatus = "pending"
	TripReady   TripStatus = "ready"
	TripFailed  TripStatus = "failed"
)

// TripRecord is the external key-value table "trips", keyed by ID.
type TripRecord struct {
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	AccountID    string     `json:"account_id"`
	Status       TripStatus `json:"status"`
	Region       string     `json:"region"`
	RequestJSON  string     `json:"request_json,omitempty"`
	ResponseJSON string     `json:"response_json,omitempty"`
	Geometry     string     `json:"geometry,omitempty"`
	Distance     *int64     `json:"distance,omitempty"`
	Duration     *int64     `json:"duration,omitempty"`
	Error        string     `json:"error,omitempty"`
}
