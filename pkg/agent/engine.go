// Package agent defines the contract between the session layer and the
// web-browsing agent that actually answers queries.
//
// The session manager never talks to a browser or an LLM directly. It
// acquires a PageHandle when a session is created, hands it back to the
// engine for every query, and releases it when the session ends. The
// engine owns everything behind that boundary: browser lifecycle, page
// navigation, and answer generation.
package agent

import (
	"context"
	"errors"
)

// PageHandle is the ownership token for one live browser context. A handle
// belongs to exactly one session and is released exactly once; engines must
// tolerate a second release without faulting.
type PageHandle interface {
	// URL returns the current page URL, or an empty string if the page
	// is no longer reachable.
	URL() string
}

// Engine executes web queries against browser contexts. All methods may be
// slow (seconds to minutes) and must never be called while holding session
// store locks.
type Engine interface {
	// OpenBrowserContext creates a fresh browser context with its own page,
	// navigated to the engine's start URL.
	OpenBrowserContext(ctx context.Context) (PageHandle, error)

	// RunQuery answers question using the given page, taking at most
	// maxSteps navigation steps. It returns the final answer text.
	RunQuery(ctx context.Context, page PageHandle, question string, maxSteps int) (string, error)

	// ReleaseBrowserContext closes the browser context behind the handle.
	// Best-effort: callers log failures and move on.
	ReleaseBrowserContext(page PageHandle) error
}

// Error kinds surfaced by engines. Implementations wrap these with %w so
// callers can classify failures with errors.Is.
var (
	// ErrUnavailable indicates the browser or model backend is not reachable.
	ErrUnavailable = errors.New("agent engine unavailable")

	// ErrTimeout indicates a browser operation exceeded its deadline.
	ErrTimeout = errors.New("agent operation timed out")

	// ErrStepBudgetExceeded indicates a query used up its maxSteps budget
	// without producing an answer.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrNavigationFailed indicates a page navigation failed.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrModelError indicates the LLM call failed or returned an unusable
	// response.
	ErrModelError = errors.New("model error")
)
