// Package session implements the session layer of the websearcher service:
// a concurrency-safe store of live browsing sessions, a manager facade used
// by the HTTP layer, asynchronous single-flight query execution, and a
// reaper that evicts idle sessions.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/websearcher/pkg/agent"
	"github.com/entrhq/websearcher/pkg/logging"
)

const (
	// DefaultTimeout is the idle timeout applied when a session is created
	// without one.
	DefaultTimeout = 30 * time.Minute

	// DefaultMaxSteps is the step budget applied when a query is submitted
	// without one.
	DefaultMaxSteps = 150
)

// errNotExpired is the internal veto used by eviction to abort its Mutate
// closure when the record turns out to be live or mid-query.
var errNotExpired = errors.New("session not expired")

// Manager owns the set of live sessions. It is the single entry point for
// the request-handling layer: create, close, get, list, and query
// submission all go through it. Engine calls happen strictly outside store
// locks, so slow browser or model I/O never stalls unrelated sessions.
type Manager struct {
	store  *Store
	engine agent.Engine
	logger *logging.Logger
}

// NewManager creates a session manager backed by store and engine.
func NewManager(store *Store, engine agent.Engine, logger *logging.Logger) *Manager {
	return &Manager{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Store exposes the underlying store for monitoring and for the reaper.
func (m *Manager) Store() *Store {
	return m.store
}

// CreateSession acquires a fresh browser context and registers an idle
// session around it. A non-positive timeout falls back to DefaultTimeout.
func (m *Manager) CreateSession(ctx context.Context, timeout time.Duration) (Record, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Browser acquisition is slow; it must never run under a store lock.
	page, err := m.engine.OpenBrowserContext(ctx)
	if err != nil {
		m.logger.Errorf("failed to open browser context: %v", err)
		return Record{}, err
	}

	rec := Record{
		ID:           uuid.New().String(),
		Status:       StatusIdle,
		Page:         page,
		LastActivity: time.Now(),
		Timeout:      timeout,
	}

	if err := m.store.Put(rec); err != nil {
		// Unreachable with uuid ids; release the context rather than leak it.
		m.releasePage(rec.ID, page)
		return Record{}, err
	}

	m.logger.Infof("created session %s (timeout %s)", rec.ID, timeout)
	return rec, nil
}

// CloseSession tears down a session: the record is atomically marked closed
// and removed from the store, then its browser context is released.
// Release failures are logged, not returned; the session is gone either
// way. Returns ErrNotFound for unknown ids.
func (m *Manager) CloseSession(id string) error {
	var page agent.PageHandle
	err := m.store.Mutate(id, func(r *Record) error {
		page = r.Page
		r.Status = StatusClosed
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := m.store.Delete(id); err != nil {
		// A concurrent close or eviction removed it first and owns the
		// release.
		return nil
	}

	m.releasePage(id, page)
	m.logger.Infof("closed session %s", id)
	return nil
}

// GetSession returns a consistent snapshot of the session record, or
// ErrNotFound.
func (m *Manager) GetSession(id string) (Record, error) {
	return m.store.Get(id)
}

// ListSessions returns the live session count and one summary per session.
// It reads a point-in-time snapshot and never blocks on in-flight queries.
func (m *Manager) ListSessions() (int, []Summary) {
	records := m.store.Snapshot()

	summaries := make([]Summary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, Summary{
			ID:      rec.ID,
			Status:  rec.Status,
			PageURL: rec.PageURL(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	return len(summaries), summaries
}

// SubmitQuery starts asynchronous execution of question against the
// session and returns immediately; the outcome is observed by polling
// GetSession. The precondition check and the transition to processing
// happen in one atomic mutation, so concurrent submissions to the same
// session see exactly one winner and the rest get ErrSessionBusy.
// A non-positive maxSteps falls back to DefaultMaxSteps.
func (m *Manager) SubmitQuery(id, question string, maxSteps int) error {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	var page agent.PageHandle
	err := m.store.Mutate(id, func(r *Record) error {
		// Closed before busy: a closed session cannot be busy.
		if r.Status == StatusClosed {
			return ErrSessionClosed
		}
		if r.Status == StatusProcessing {
			return ErrSessionBusy
		}

		r.Status = StatusProcessing
		r.CurrentQuery = question
		r.Error = ""
		r.LastActivity = time.Now()
		page = r.Page
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Infof("session %s: query dispatched (maxSteps=%d)", id, maxSteps)
	go m.runQuery(id, page, question, maxSteps)
	return nil
}

// CloseAll closes every live session concurrently. Used at shutdown.
func (m *Manager) CloseAll() {
	records := m.store.Snapshot()

	var wg sync.WaitGroup
	for _, rec := range records {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.CloseSession(id); err != nil && !errors.Is(err, ErrNotFound) {
				m.logger.Warnf("error closing session %s during shutdown: %v", id, err)
			}
		}(rec.ID)
	}
	wg.Wait()
}

// evictIfExpired atomically re-validates that the session is idle past its
// timeout and not mid-query, then removes it and releases its browser
// context. Reports whether the session was evicted.
func (m *Manager) evictIfExpired(id string, now time.Time) bool {
	var page agent.PageHandle
	err := m.store.Mutate(id, func(r *Record) error {
		if r.Status == StatusProcessing || !r.Expired(now) {
			return errNotExpired
		}
		page = r.Page
		r.Status = StatusClosed
		return nil
	})
	if err != nil {
		// Vanished or still live; nothing to do.
		return false
	}

	if _, err := m.store.Delete(id); err != nil {
		return false
	}

	m.releasePage(id, page)
	m.logger.Infof("evicted expired session %s", id)
	return true
}

func (m *Manager) releasePage(id string, page agent.PageHandle) {
	if page == nil {
		return
	}
	if err := m.engine.ReleaseBrowserContext(page); err != nil {
		m.logger.Warnf("error releasing browser context for session %s: %v", id, err)
	}
}
