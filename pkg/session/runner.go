package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/websearcher/pkg/agent"
)

// runQuery is the task runner: one invocation per dispatched query, always
// on its own goroutine. It executes the engine call outside any store lock
// and writes the outcome back through a single atomic mutation.
//
// The write-back targets only the session the query was dispatched for. If
// that session was closed mid-flight the mutation reports ErrNotFound and
// the result is discarded; a runner never crashes the process.
func (m *Manager) runQuery(id string, page agent.PageHandle, question string, maxSteps int) {
	defer func() {
		if r := recover(); r != nil {
			m.recordOutcome(id, "", fmt.Errorf("internal fault: %v", r))
		}
	}()

	// Background context: the dispatching HTTP request has already
	// returned, and closing a session does not cancel in-flight work.
	answer, err := m.engine.RunQuery(context.Background(), page, question, maxSteps)
	m.recordOutcome(id, answer, err)
}

func (m *Manager) recordOutcome(id, answer string, runErr error) {
	var mutErr error
	if runErr != nil {
		mutErr = m.store.Mutate(id, func(r *Record) error {
			// A close may have marked the record between dispatch and now
			if r.Status == StatusClosed {
				return ErrSessionClosed
			}
			r.Status = StatusError
			r.Error = runErr.Error()
			// Prior Result is deliberately left in place.
			return nil
		})
		m.logger.Warnf("session %s: query failed: %v", id, runErr)
	} else {
		mutErr = m.store.Mutate(id, func(r *Record) error {
			if r.Status == StatusClosed {
				return ErrSessionClosed
			}
			r.Status = StatusCompleted
			r.Result = answer
			r.Error = ""
			return nil
		})
		m.logger.Infof("session %s: query completed", id)
	}

	if errors.Is(mutErr, ErrNotFound) || errors.Is(mutErr, ErrSessionClosed) {
		m.logger.Debugf("session %s closed mid-query; result discarded", id)
	}
}
