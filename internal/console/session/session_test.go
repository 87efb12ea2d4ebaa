package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

// fakeBackend — минимальный auth-бэкенд: admin/admin123 -> токен T.
type fakeBackend struct {
	token    string
	meStatus atomic.Int32
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/login":
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(domain.LoginResponse{
			AccessToken: b.token,
			TokenType:   "bearer",
			User:        &domain.User{ID: "u1", Username: "admin", Role: domain.RoleAdmin},
		})
	case "/auth/me":
		if status := int(b.meStatus.Load()); status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(domain.User{ID: "u1", Username: "admin", Role: domain.RoleAnalyst})
	case "/auth/refresh":
		_ = json.NewEncoder(w).Encode(domain.LoginResponse{AccessToken: "T2", TokenType: "bearer"})
	case "/events":
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"expired"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestSession(t *testing.T, backend *fakeBackend, storage Storage) (*Session, *connectors.Gateway) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	s := New(storage, zap.NewNop())
	gw := connectors.NewGateway(infra.APIConfig{BaseURL: srv.URL}, s, nil, nil, zap.NewNop())
	s.BindAPI(gw)
	return s, gw
}

func TestLogin_PersistsTokenAndUser(t *testing.T) {
	storage := NewMemoryStorage()
	s, _ := newTestSession(t, &fakeBackend{token: "T"}, storage)
	ctx := context.Background()

	resp, err := s.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "T", resp.AccessToken)

	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.IsAdmin())
	assert.True(t, s.IsAnalyst())
	assert.Equal(t, domain.RoleAdmin, s.Role())
	assert.False(t, s.Loading())
	assert.Empty(t, s.Error())

	token, err := storage.Get(ctx, infra.StorageKeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T", token)

	rawUser, err := storage.Get(ctx, infra.StorageKeyUser)
	require.NoError(t, err)
	assert.Contains(t, rawUser, `"username":"admin"`)
}

func TestLogin_FailureKeepsAnonymous(t *testing.T) {
	storage := NewMemoryStorage()
	s, _ := newTestSession(t, &fakeBackend{token: "T"}, storage)

	_, err := s.Login(context.Background(), "admin", "nope")
	require.Error(t, err)
	assert.True(t, connectors.IsAuthError(err))
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "Incorrect username or password", s.Error())

	_, err = storage.Get(context.Background(), infra.StorageKeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogin_NetworkFailureUsesFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	s := New(NewMemoryStorage(), zap.NewNop())
	s.BindAPI(connectors.NewGateway(infra.APIConfig{BaseURL: srv.URL}, s, nil, nil, zap.NewNop()))

	_, err := s.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.Equal(t, "Login failed", s.Error())
}

func TestLogout_IsIdempotentAndClearsStorage(t *testing.T) {
	storage := NewMemoryStorage()
	s, _ := newTestSession(t, &fakeBackend{token: "T"}, storage)
	ctx := context.Background()

	_, err := s.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	s.Logout()
	s.Logout()

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	assert.False(t, s.IsAnalyst())
	for _, key := range []string{infra.StorageKeyToken, infra.StorageKeyUser} {
		_, err := storage.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}
}

func TestGateway401_EndsSession(t *testing.T) {
	storage := NewMemoryStorage()
	s, gw := newTestSession(t, &fakeBackend{token: "T"}, storage)
	ctx := context.Background()

	_, err := s.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	signalled := make(chan struct{}, 1)
	gw.OnUnauthenticated(func() { signalled <- struct{}{} })

	_, err = gw.ListEvents(ctx, domain.EventFilter{})
	require.Error(t, err)

	assert.False(t, s.IsAuthenticated())
	_, err = storage.Get(ctx, infra.StorageKeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.Get(ctx, infra.StorageKeyUser)
	assert.ErrorIs(t, err, ErrNotFound)

	select {
	case <-signalled:
	default:
		t.Fatal("unauthenticated observers were not notified")
	}
}

func TestCheckAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("no token is a no-op", func(t *testing.T) {
		s, _ := newTestSession(t, &fakeBackend{token: "T"}, NewMemoryStorage())
		assert.False(t, s.CheckAuth(ctx))
	})

	t.Run("success refreshes user", func(t *testing.T) {
		s, _ := newTestSession(t, &fakeBackend{token: "T"}, NewMemoryStorage())
		_, err := s.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		assert.True(t, s.CheckAuth(ctx))
		assert.Equal(t, domain.RoleAnalyst, s.Role())
		assert.False(t, s.IsAdmin())
		assert.True(t, s.IsAnalyst())
	})

	t.Run("any failure logs out", func(t *testing.T) {
		backend := &fakeBackend{token: "T"}
		storage := NewMemoryStorage()
		s, _ := newTestSession(t, backend, storage)
		_, err := s.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		backend.meStatus.Store(http.StatusInternalServerError)
		assert.False(t, s.CheckAuth(ctx))
		assert.False(t, s.IsAuthenticated())
		_, err = storage.Get(ctx, infra.StorageKeyToken)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRefreshToken(t *testing.T) {
	storage := NewMemoryStorage()
	s, _ := newTestSession(t, &fakeBackend{token: "T"}, storage)
	ctx := context.Background()

	_, err := s.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	assert.True(t, s.RefreshToken(ctx))
	assert.Equal(t, "T2", s.Token())
	assert.Equal(t, domain.RoleAdmin, s.Role(), "user survives a refresh without user payload")

	token, err := storage.Get(ctx, infra.StorageKeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T2", token)
}

func TestInitializeAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("hydrates token and user", func(t *testing.T) {
		storage := NewMemoryStorage()
		require.NoError(t, storage.Set(ctx, infra.StorageKeyToken, "T"))
		require.NoError(t, storage.Set(ctx, infra.StorageKeyUser, `{"id":"u1","username":"admin","role":"admin"}`))

		s := New(storage, zap.NewNop())
		require.NoError(t, s.InitializeAuth(ctx))
		assert.True(t, s.IsAuthenticated())
		assert.True(t, s.IsAdmin())
	})

	t.Run("malformed user is discarded", func(t *testing.T) {
		storage := NewMemoryStorage()
		require.NoError(t, storage.Set(ctx, infra.StorageKeyToken, "T"))
		require.NoError(t, storage.Set(ctx, infra.StorageKeyUser, `{not json`))

		s := New(storage, zap.NewNop())
		require.NoError(t, s.InitializeAuth(ctx))
		assert.True(t, s.IsAuthenticated())
		assert.Nil(t, s.User())

		_, err := storage.Get(ctx, infra.StorageKeyUser)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty storage stays anonymous", func(t *testing.T) {
		s := New(NewMemoryStorage(), zap.NewNop())
		require.NoError(t, s.InitializeAuth(ctx))
		assert.False(t, s.IsAuthenticated())
		assert.Empty(t, s.Role())
	})
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.TokenClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString([]byte("server-side-secret"))
	require.NoError(t, err)

	s, _ := newTestSession(t, &fakeBackend{token: token}, NewMemoryStorage())
	_, ok := s.ExpiresAt()
	assert.False(t, ok)

	_, err = s.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
	require.NotNil(t, s.State().ExpiresAt)

	claims, err := ParseClaims("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	_, err = TokenExpiry("T")
	assert.Error(t, err)
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStorage(path)

	_, err := fs.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Set(ctx, infra.StorageKeyToken, "T"))
	require.NoError(t, fs.Set(ctx, infra.StorageKeyUser, `{"id":"u1"}`))

	reopened := NewFileStorage(path)
	v, err := reopened.Get(ctx, infra.StorageKeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T", v)

	require.NoError(t, reopened.Delete(ctx, infra.StorageKeyToken))
	require.NoError(t, reopened.Delete(ctx, infra.StorageKeyToken))
	_, err = fs.Get(ctx, infra.StorageKeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = fs.Get(ctx, infra.StorageKeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, v)
}
