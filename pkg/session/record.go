package session

import (
	"time"

	"github.com/entrhq/websearcher/pkg/agent"
)

// Status represents the lifecycle state of a session.
type Status string

const (
	// StatusIdle means the session exists and has never run a query, or is
	// between queries without a recorded outcome.
	StatusIdle Status = "idle"

	// StatusProcessing means a query is currently in flight. At most one
	// query is processing per session at any instant.
	StatusProcessing Status = "processing"

	// StatusCompleted means the most recent query finished successfully.
	StatusCompleted Status = "completed"

	// StatusError means the most recent query failed.
	StatusError Status = "error"

	// StatusClosed is terminal: the session's browser context has been
	// released and the record is gone from the store.
	StatusClosed Status = "closed"
)

// Record is the unit of session state. Records are owned by the Store;
// outside a Mutate closure callers only ever see copies, so reading a
// Record returned from Get or Snapshot needs no synchronization.
type Record struct {
	// ID is the opaque session identifier, immutable after creation.
	ID string

	// Status is the current lifecycle state.
	Status Status

	// Page is the browser context owned by this session. Non-nil for every
	// status except closed.
	Page agent.PageHandle

	// CurrentQuery is the question currently or most recently processed.
	// Empty until the first query is submitted.
	CurrentQuery string

	// Result is the last successful answer. Overwritten by each new
	// successful completion; a failing query leaves it untouched.
	Result string

	// Error is the last failure message. Cleared when a new query starts.
	Error string

	// LastActivity is updated on creation and on every query submission.
	// It drives idle expiry and is monotonically non-decreasing.
	LastActivity time.Time

	// Timeout is the idle duration after which the reaper evicts the
	// session. Fixed at creation.
	Timeout time.Duration
}

// Expired reports whether the record has been idle past its timeout.
func (r *Record) Expired(now time.Time) bool {
	return now.Sub(r.LastActivity) > r.Timeout
}

// PageURL returns the record's current page URL, or "" when the page is
// gone.
func (r *Record) PageURL() string {
	if r.Page == nil {
		return ""
	}
	return r.Page.URL()
}

// Summary is the per-session entry returned by ListSessions.
type Summary struct {
	ID      string
	Status  Status
	PageURL string
}
