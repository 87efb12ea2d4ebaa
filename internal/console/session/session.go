package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

const (
	loginFailed    = "Login failed"
	registerFailed = "Registration failed"

	storageTimeout = 5 * time.Second
)

// AuthAPI — часть шлюза, которой пользуется сессия.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*domain.LoginResponse, error)
	LoginJSON(ctx context.Context, username, password string) (*domain.LoginResponse, error)
	Me(ctx context.Context) (*domain.User, error)
	Refresh(ctx context.Context) (*domain.LoginResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
}

// Session — единственный источник правды о токене и текущем пользователе.
// anonymous (token == "") -> authenticated -> anonymous по logout или любому 401.
type Session struct {
	storage Storage
	logger  *zap.Logger

	mu      sync.RWMutex
	api     AuthAPI
	token   string
	user    *domain.User
	loading bool
	lastErr string
}

// State — снимок сессии для внешних потребителей.
type State struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user"`
	Role          domain.Role  `json:"role,omitempty"`
	Loading       bool         `json:"loading"`
	Error         string       `json:"error,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

func New(storage Storage, logger *zap.Logger) *Session {
	return &Session{
		storage: storage,
		logger:  logger.Named("session"),
	}
}

// BindAPI подключает шлюз. Шлюз сам зависит от сессии как от TokenProvider,
// поэтому связывание идет после конструирования обоих.
func (s *Session) BindAPI(api AuthAPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = api
}

func (s *Session) authAPI() (AuthAPI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.api == nil {
		return nil, errors.New("session: auth api is not bound")
	}
	return s.api, nil
}

// InitializeAuth поднимает токен и пользователя из хранилища при старте.
// Битый JSON пользователя удаляется молча.
func (s *Session) InitializeAuth(ctx context.Context) error {
	token, err := s.storage.Get(ctx, infra.StorageKeyToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load token: %w", err)
	}

	var user *domain.User
	rawUser, err := s.storage.Get(ctx, infra.StorageKeyUser)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("load user: %w", err)
	default:
		var u domain.User
		if jsonErr := json.Unmarshal([]byte(rawUser), &u); jsonErr != nil {
			s.logger.Warn("discarding malformed stored user", zap.Error(jsonErr))
			if err := s.storage.Delete(ctx, infra.StorageKeyUser); err != nil {
				s.logger.Error("failed to delete stored user", zap.Error(err))
			}
		} else {
			user = &u
		}
	}

	s.mu.Lock()
	s.token = token
	if user != nil {
		s.user = user
	}
	s.mu.Unlock()

	s.logger.Info("session initialized", zap.Bool("authenticated", token != ""))
	return nil
}

// Login — OAuth2 form-логин.
func (s *Session) Login(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	return s.login(ctx, username, func(api AuthAPI) (*domain.LoginResponse, error) {
		return api.Login(ctx, username, password)
	})
}

// LoginJSON — тот же логин через JSON-эндпоинт.
func (s *Session) LoginJSON(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	return s.login(ctx, username, func(api AuthAPI) (*domain.LoginResponse, error) {
		return api.LoginJSON(ctx, username, password)
	})
}

func (s *Session) login(ctx context.Context, username string, call func(AuthAPI) (*domain.LoginResponse, error)) (*domain.LoginResponse, error) {
	api, err := s.authAPI()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	resp, err := call(api)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = failureDetail(err, loginFailed)
		s.mu.Unlock()
		s.logger.Warn("login failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	s.token = resp.AccessToken
	s.user = resp.User
	s.mu.Unlock()

	s.persist(ctx, resp.AccessToken, resp.User)
	s.logger.Info("logged in", zap.String("username", username))
	return resp, nil
}

// Register создает учетную запись. Сессию не меняет.
func (s *Session) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	api, err := s.authAPI()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	user, err := api.Register(ctx, req)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = failureDetail(err, registerFailed)
	}
	s.mu.Unlock()
	return user, err
}

// Logout безусловно очищает токен и пользователя в памяти и в хранилище.
func (s *Session) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	for _, key := range []string{infra.StorageKeyToken, infra.StorageKeyUser} {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Error("failed to clear stored session", zap.String("key", key), zap.Error(err))
		}
	}

	if wasAuthenticated {
		s.logger.Info("logged out")
	}
}

// CheckAuth сверяет сессию с сервером. Любой отказ считается смертью сессии.
func (s *Session) CheckAuth(ctx context.Context) bool {
	token := s.Token()
	if token == "" {
		return false
	}
	api, err := s.authAPI()
	if err != nil {
		return false
	}

	user, err := api.Me(ctx)
	if err != nil {
		s.logger.Warn("auth check failed", zap.Error(err))
		s.Logout()
		return false
	}

	s.mu.Lock()
	// за время запроса сессию могли закрыть или сменить
	if s.token == token {
		s.user = user
	}
	s.mu.Unlock()
	return true
}

// RefreshToken меняет текущий токен на новый. При отказе сессия закрывается.
func (s *Session) RefreshToken(ctx context.Context) bool {
	api, err := s.authAPI()
	if err != nil {
		return false
	}

	resp, err := api.Refresh(ctx)
	if err != nil {
		s.logger.Warn("token refresh failed", zap.Error(err))
		s.Logout()
		return false
	}

	s.mu.Lock()
	s.token = resp.AccessToken
	if resp.User != nil {
		s.user = resp.User
	}
	s.mu.Unlock()

	if err := s.storage.Set(ctx, infra.StorageKeyToken, resp.AccessToken); err != nil {
		s.logger.Error("failed to persist token", zap.Error(err))
	}
	return true
}

func (s *Session) persist(ctx context.Context, token string, user *domain.User) {
	if err := s.storage.Set(ctx, infra.StorageKeyToken, token); err != nil {
		s.logger.Error("failed to persist token", zap.Error(err))
	}

	if user == nil {
		if err := s.storage.Delete(ctx, infra.StorageKeyUser); err != nil {
			s.logger.Error("failed to clear stored user", zap.Error(err))
		}
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("failed to encode user", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, infra.StorageKeyUser, string(raw)); err != nil {
		s.logger.Error("failed to persist user", zap.Error(err))
	}
}

// failureDetail — текстовый detail сервера или общий fallback.
func failureDetail(err error, fallback string) string {
	apiErr := connectors.Classify(err)
	if apiErr.Code == connectors.CodeHTTPError && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// ========== Getters ==========

// Token реализует connectors.TokenProvider.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsAuthenticated() bool { return s.Token() != "" }

func (s *Session) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

func (s *Session) IsAdmin() bool { return s.Role() == domain.RoleAdmin }

func (s *Session) IsAnalyst() bool {
	role := s.Role()
	return role == domain.RoleAdmin || role == domain.RoleAnalyst
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Error — сообщение последней неудачной попытки входа.
func (s *Session) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ExpiresAt — срок жизни текущего токена, если он читается из JWT.
func (s *Session) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

func (s *Session) State() State {
	st := State{
		Authenticated: s.IsAuthenticated(),
		User:          s.User(),
		Role:          s.Role(),
		Loading:       s.Loading(),
		Error:         s.Error(),
	}
	if exp, ok := s.ExpiresAt(); ok {
		st.ExpiresAt = &exp
	}
	return st
}
