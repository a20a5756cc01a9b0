package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/agenda/store"
)

// ErrStoreFailure marks every error caused by the event store being
// unreachable or returning malformed data. It is the only error a core
// operation returns; all other failures are reported through results.
var ErrStoreFailure = errors.New("event store failure")

func storeFailure(op string, err error) error {
	if errors.Is(err, ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// FailureKind classifies a failed result.
type FailureKind string

const (
	KindValidation      FailureKind = "validation"
	KindPolicyViolation FailureKind = "policy_violation"
	KindConflict        FailureKind = "conflict"
	KindNotFound        FailureKind = "not_found"
)

// Availability is the outcome of an availability check.
type Availability struct {
	Span      Span         `json:"span"`
	Available bool         `json:"available"`
	Kind      FailureKind  `json:"kind,omitempty"`
	Reason    string       `json:"reason"`
	Conflict  *store.Event `json:"conflict,omitempty"`
}

// SlotList is the outcome of a free-slot search.
type SlotList struct {
	Success  bool          `json:"success"`
	Kind     FailureKind   `json:"kind,omitempty"`
	Message  string        `json:"message,omitempty"`
	Date     time.Time     `json:"date"`
	Duration time.Duration `json:"duration"`
	Slots    []Span        `json:"slots"`
	Count    int           `json:"count"`
}

// Result is the outcome of a create or delete.
type Result struct {
	Success  bool         `json:"success"`
	Kind     FailureKind  `json:"kind,omitempty"`
	Message  string       `json:"message"`
	Conflict *store.Event `json:"conflict,omitempty"`
	// Event is the created or deleted event on success.
	Event *store.Event `json:"event,omitempty"`
}

// UpdateResult is the outcome of an update. The old and new spans are set on success.
type UpdateResult struct {
	Result
	Previous *store.Event `json:"previous,omitempty"`
	OldStart time.Time    `json:"old_start"`
	OldEnd   time.Time    `json:"old_end"`
	NewStart time.Time    `json:"new_start"`
	NewEnd   time.Time    `json:"new_end"`
}

// Overlap is a pair of stored events whose spans overlap.
type Overlap struct {
	First  *store.Event `json:"first"`
	Second *store.Event `json:"second"`
}

// DaySchedule lists the events starting on a date, with any overlaps found among them.
type DaySchedule struct {
	Date     time.Time      `json:"date"`
	Events   []*store.Event `json:"events"`
	Overlaps []Overlap      `json:"overlaps"`
}

func failed(kind FailureKind, message string) *Result {
	return &Result{Kind: kind, Message: message}
}

func conflictMessage(e *store.Event) string {
	if e.Description == "" {
		return fmt.Sprintf("Time slot conflicts with an existing event (%s - %s)", e.Start.Format("15:04"), e.End.Format("15:04"))
	}
	return fmt.Sprintf("Time slot conflicts with existing event %q (%s - %s)", e.Description, e.Start.Format("15:04"), e.End.Format("15:04"))
}
