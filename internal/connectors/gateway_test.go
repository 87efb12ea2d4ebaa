package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	logouts int
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.logouts++
}

func newTestGateway(t *testing.T, h http.HandlerFunc, tokens TokenProvider) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGateway(infra.APIConfig{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second}, tokens, nil, nil, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGateway_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotReqID string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "critical", r.URL.Query().Get("severity"))
		assert.False(t, r.URL.Query().Has("status"))
		writeJSON(w, 200, []domain.SecurityEvent{{ID: "e1", Severity: domain.SeverityCritical}})
	}, &fakeTokens{token: "T"})

	events, err := gw.ListEvents(context.Background(), domain.EventFilter{Severity: domain.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Bearer T", gotAuth)
	assert.NotEmpty(t, gotReqID)
}

func TestGateway_NoTokenNoHeader(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, 200, []domain.Asset{})
	}, &fakeTokens{})

	assets, err := gw.ListAssets(context.Background(), domain.AssetFilter{})
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestGateway_LoginIsPublicForm(t *testing.T) {
	tokens := &fakeTokens{token: "stale"}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("password") != "admin123" {
			writeJSON(w, 401, map[string]any{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, 200, domain.LoginResponse{AccessToken: "T", TokenType: "bearer"})
	}, tokens)

	resp, err := gw.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "T", resp.AccessToken)

	fired := false
	gw.OnUnauthenticated(func() { fired = true })

	_, err = gw.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "Incorrect username or password", ErrorMessage(err))
	assert.False(t, fired, "login 401 must not end the session")
	assert.Equal(t, 0, tokens.logouts)
}

func TestGateway_UnauthorizedEndsSession(t *testing.T) {
	tokens := &fakeTokens{token: "T"}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"detail": "Could not validate credentials"})
	}, tokens)

	var fired atomic.Int32
	gw.OnUnauthenticated(func() { fired.Add(1) })

	_, err := gw.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, tokens.logouts)
	assert.Empty(t, tokens.Token())
	assert.EqualValues(t, 1, fired.Load())
}

func TestGateway_StaleUnauthorizedKeepsNewSession(t *testing.T) {
	tokens := &fakeTokens{token: "OLD"}
	release := make(chan struct{})
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer OLD", r.Header.Get("Authorization"))
		<-release
		writeJSON(w, 401, map[string]any{"detail": "Could not validate credentials"})
	}, tokens)

	var fired atomic.Int32
	gw.OnUnauthenticated(func() { fired.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := gw.Me(context.Background())
		done <- err
	}()

	// пока запрос в полете, пользователь вошел заново
	time.Sleep(50 * time.Millisecond)
	tokens.mu.Lock()
	tokens.token = "NEW"
	tokens.mu.Unlock()
	close(release)

	err := <-done
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "NEW", tokens.Token())
	assert.Equal(t, 0, tokens.logouts)
	assert.EqualValues(t, 0, fired.Load())
}

func TestGateway_UpdateKeepsRawBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/events/e%2F1", r.URL.EscapedPath())
		var patch map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, map[string]any{"status": "resolved"}, patch)
		_, _ = w.Write([]byte(`{"id":"e/1","status":"resolved"}`))
	}, &fakeTokens{token: "T"})

	status := domain.EventResolved
	res, err := gw.UpdateEvent(context.Background(), "e/1", domain.SecurityEventUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.EventResolved, res.Value.Status)
	assert.JSONEq(t, `{"id":"e/1","status":"resolved"}`, string(res.Raw))
}

func TestGateway_UpdateEmptyBodySucceeds(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, &fakeTokens{token: "T"})

	enabled := true
	res, err := gw.UpdateAlertRule(context.Background(), "r1", domain.AlertRuleUpdate{Enabled: &enabled})
	require.NoError(t, err)
	assert.Empty(t, res.Raw)
	assert.Equal(t, domain.AlertRule{}, res.Value)
}

func TestGateway_DeleteNoContent(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, &fakeTokens{token: "T"})

	require.NoError(t, gw.DeleteEvent(context.Background(), "e1"))
}

func TestGateway_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	gw := NewGateway(infra.APIConfig{BaseURL: srv.URL}, &fakeTokens{}, nil, nil, zap.NewNop())

	_, err := gw.GetStats(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, CodeNetworkError, Classify(err).Code)
}

func TestGateway_CircuitBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rel := NewReliability(infra.GatewayConfig{
		CBMaxRequests:         1,
		CBTimeout:             time.Minute,
		CBConsecutiveFailures: 2,
	}, nil, zap.NewNop())
	gw := NewGateway(infra.APIConfig{BaseURL: srv.URL}, &fakeTokens{}, rel, nil, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := gw.ListAlertRules(context.Background())
		require.True(t, IsServerError(err))
	}
	assert.Equal(t, gobreaker.StateOpen, rel.State())

	_, err := gw.ListAlertRules(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, hits.Load())
}

func TestReliability_ClientErrorsDoNotTrip(t *testing.T) {
	rel := NewReliability(infra.GatewayConfig{CBConsecutiveFailures: 1}, nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		err := rel.Execute(context.Background(), func() error { return httpErr(404, "") })
		require.True(t, IsNotFoundError(err))
	}
	assert.Equal(t, gobreaker.StateClosed, rel.State())
}
