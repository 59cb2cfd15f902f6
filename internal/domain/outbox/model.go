package outbox

import (
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// Action type constants for the side effects relayed through the outbox.
const (
	ActionTypeRoleUpdate = "role_update"
)

// DefaultMaxAttempts is applied when an entry is saved without a limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyTopic      = errors.New("topic is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrTerminal        = errors.New("entry is in a terminal state")
	ErrNotFound        = errors.New("outbox entry not found")
	ErrNotFailed       = errors.New("entry has not failed")
)

// Entry is one pending message on its way to the broker.
type Entry struct {
	ID              string    `json:"id"`
	ActionType      string    `json:"actionType"`
	Topic           string    `json:"topic"`
	Key             string    `json:"key"`
	Payload         string    `json:"payload"` // JSON message body
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	MaxAttempts     int       `json:"maxAttempts"`
	LastAttemptedAt time.Time `json:"lastAttemptedAt"`
	NextAttemptAt   time.Time `json:"nextAttemptAt"` // zero until a retry is scheduled
	CreatedAt       time.Time `json:"createdAt"`
	ExternalID      string    `json:"externalId"` // broker message ID once delivered
	ErrorMessage    string    `json:"errorMessage"`
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise; MaxAttempts defaulted when unset
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Topic == "" {
		return ErrEmptyTopic
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry returns true if the entry can be retried.
// PRE: Status and Attempts fields are set
// POST: Returns true for pending/retrying/failed with attempts < max
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying || e.Status == StatusFailed) &&
		e.Attempts < e.MaxAttempts
}

// IsTerminal returns true if the entry has reached a terminal state.
// PRE: Status field is set
// POST: Returns true for done, failed (max retries), or abandoned
func (e *Entry) IsTerminal() bool {
	if e.Status == StatusDone || e.Status == StatusAbandoned {
		return true
	}
	return e.Status == StatusFailed && e.Attempts >= e.MaxAttempts
}

// MarkAttempt records a delivery attempt.
// PRE: Entry is in a retryable state
// POST: Attempts incremented, LastAttemptedAt updated, status set to retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status set to done, ExternalID recorded, error cleared
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt.
// POST: ErrorMessage set; status becomes failed once attempts are exhausted
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkAbandoned marks the entry as abandoned by an operator.
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// NextRetryDelay calculates the delay before the next attempt.
// Exponential backoff: 2^attempts * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

// ScheduleRetry sets NextAttemptAt from the backoff for the current attempt count.
// POST: NextAttemptAt set for a retrying entry, cleared otherwise
func (e *Entry) ScheduleRetry(baseDelay, maxDelay time.Duration) {
	if e.Status != StatusRetrying {
		e.NextAttemptAt = time.Time{}
		return
	}
	e.NextAttemptAt = e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay))
}

// DueAt reports whether the entry may be attempted at now. A scheduled
// NextAttemptAt wins; otherwise the backoff is derived from the last attempt.
func (e *Entry) DueAt(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if !e.NextAttemptAt.IsZero() {
		return !now.Before(e.NextAttemptAt)
	}
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay)))
}
