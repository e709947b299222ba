package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/websearcher/pkg/agent"
	"github.com/entrhq/websearcher/pkg/logging"
	"github.com/entrhq/websearcher/pkg/session"
)

type fakePage struct {
	url string
}

func (p *fakePage) URL() string { return p.url }

type fakeEngine struct {
	mu    sync.Mutex
	runFn func(ctx context.Context, page agent.PageHandle, question string, maxSteps int) (string, error)
}

func (e *fakeEngine) OpenBrowserContext(ctx context.Context) (agent.PageHandle, error) {
	return &fakePage{url: "https://www.duckduckgo.com"}, nil
}

func (e *fakeEngine) RunQuery(ctx context.Context, page agent.PageHandle, question string, maxSteps int) (string, error) {
	e.mu.Lock()
	runFn := e.runFn
	e.mu.Unlock()
	if runFn != nil {
		return runFn(ctx, page, question, maxSteps)
	}
	return "Weather answer: sunny, 24C", nil
}

func (e *fakeEngine) ReleaseBrowserContext(page agent.PageHandle) error { return nil }

func (e *fakeEngine) setRunFn(fn func(ctx context.Context, page agent.PageHandle, question string, maxSteps int) (string, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runFn = fn
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeEngine) {
	t.Helper()
	logger, _ := logging.NewLogger("server-test")
	t.Cleanup(func() { logger.Close() })

	engine := &fakeEngine{}
	manager := session.NewManager(session.NewStore(), engine, logger)
	ts := httptest.NewServer(New(manager, logger))
	t.Cleanup(ts.Close)
	return ts, engine
}

func doJSON(t *testing.T, method, url string, body string, out any) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createTestSession(t *testing.T, ts *httptest.Server) SessionResponse {
	t.Helper()
	var created SessionResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions", "", &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return created
}

func TestCreateSession(t *testing.T) {
	ts, _ := newTestServer(t)

	var created SessionResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions?timeout_minutes=30", "", &created)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, "idle", created.Status)
	require.NotNil(t, created.PageURL)
	assert.Equal(t, "https://www.duckduckgo.com", *created.PageURL)
	assert.Nil(t, created.CurrentQuery)
	assert.Nil(t, created.Result)
	assert.Nil(t, created.Error)
}

func TestCreateSession_InvalidTimeout(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, raw := range []string{"0", "-5", "abc"} {
		t.Run(raw, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+"/sessions?timeout_minutes="+raw, "", nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetSession_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/sessions/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCloseSession_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/sessions/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuery_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/nonexistent/query",
		`{"question":"anything","max_steps":10}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuery_Validation(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createTestSession(t, ts)

	t.Run("missing question", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
			`{"max_steps":10}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("negative max_steps", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
			`{"question":"q","max_steps":-1}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
			`{"question":`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestQueryLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createTestSession(t, ts)

	var queued QueryResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
		`{"question":"weather in Paris","max_steps":10}`, &queued)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.SessionID, queued.SessionID)
	assert.Equal(t, "processing", queued.Status)
	assert.Nil(t, queued.Answer)

	var final SessionResponse
	require.Eventually(t, func() bool {
		var got SessionResponse
		resp := doJSON(t, http.MethodGet, ts.URL+"/sessions/"+created.SessionID, "", &got)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		final = got
		return got.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, final.Result)
	assert.Equal(t, "Weather answer: sunny, 24C", *final.Result)
	assert.Nil(t, final.Error)
	require.NotNil(t, final.CurrentQuery)
	assert.Equal(t, "weather in Paris", *final.CurrentQuery)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/sessions/"+created.SessionID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/sessions/"+created.SessionID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuery_BusyConflict(t *testing.T) {
	ts, engine := newTestServer(t)

	release := make(chan struct{})
	engine.setRunFn(func(ctx context.Context, page agent.PageHandle, question string, maxSteps int) (string, error) {
		<-release
		return "slow answer", nil
	})
	defer close(release)

	created := createTestSession(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
		`{"question":"first","max_steps":10}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
		`{"question":"second","max_steps":10}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestQuery_FailureSurfacesInSession(t *testing.T) {
	ts, engine := newTestServer(t)
	engine.setRunFn(func(ctx context.Context, page agent.PageHandle, question string, maxSteps int) (string, error) {
		return "", fmt.Errorf("page vanished: %w", agent.ErrNavigationFailed)
	})

	created := createTestSession(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+created.SessionID+"/query",
		`{"question":"doomed","max_steps":10}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var final SessionResponse
	require.Eventually(t, func() bool {
		var got SessionResponse
		resp := doJSON(t, http.MethodGet, ts.URL+"/sessions/"+created.SessionID, "", &got)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		final = got
		return got.Status == "error"
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, final.Error)
	assert.Contains(t, *final.Error, "page vanished")
	assert.Nil(t, final.Result)
}

func TestListSessions(t *testing.T) {
	ts, _ := newTestServer(t)

	var empty ListResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/sessions", "", &empty)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, empty.ActiveSessions)
	assert.Empty(t, empty.Sessions)

	first := createTestSession(t, ts)
	second := createTestSession(t, ts)

	var listed ListResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/sessions", "", &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, listed.ActiveSessions)
	require.Len(t, listed.Sessions, 2)

	ids := []string{listed.Sessions[0].SessionID, listed.Sessions[1].SessionID}
	assert.ElementsMatch(t, []string{first.SessionID, second.SessionID}, ids)
	for _, sum := range listed.Sessions {
		assert.Equal(t, "idle", sum.Status)
		require.NotNil(t, sum.PageURL)
	}
}
