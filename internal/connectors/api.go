package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xela07ax/xdr-console/internal/domain"
)

// Result — каноническое представление сущности от сервера вместе с исходным телом.
// Raw нужен стору, чтобы слить в кэш только те поля, что реально пришли.
type Result[T any] struct {
	Value T
	Raw   json.RawMessage
}

// Пустое тело 2xx — мутация прошла, но вливать нечего: Raw остается nil.
func decodeResult[T any](raw json.RawMessage) (Result[T], error) {
	var res Result[T]
	if len(bytes.TrimSpace(raw)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(raw, &res.Value); err != nil {
		return res, fmt.Errorf("decode response: %w", err)
	}
	res.Raw = raw
	return res, nil
}

func entityPath(collection, id string) string {
	return "/" + collection + "/" + url.PathEscape(id)
}

// ========== Auth API ==========

// Login — OAuth2 form-логин. Токен не прикладывается, 401 не гасит сессию.
func (g *Gateway) Login(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp domain.LoginResponse
	err := g.do(ctx, request{
		method: http.MethodPost, path: "/auth/login", endpoint: "/auth/login",
		form: form, public: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *Gateway) LoginJSON(ctx context.Context, username, password string) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := g.do(ctx, request{
		method: http.MethodPost, path: "/auth/login/json", endpoint: "/auth/login/json",
		body: domain.LoginRequest{Username: username, Password: password}, public: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *Gateway) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := g.do(ctx, request{method: http.MethodGet, path: "/auth/me", endpoint: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *Gateway) Refresh(ctx context.Context) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := g.do(ctx, request{method: http.MethodPost, path: "/auth/refresh", endpoint: "/auth/refresh"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *Gateway) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	var user domain.User
	err := g.do(ctx, request{
		method: http.MethodPost, path: "/auth/register", endpoint: "/auth/register", body: req,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ========== Events API ==========

func (g *Gateway) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error) {
	q := url.Values{}
	setIf(q, "severity", string(f.Severity))
	setIf(q, "status", string(f.Status))
	setIf(q, "search", f.Search)

	events := make([]domain.SecurityEvent, 0)
	err := g.do(ctx, request{method: http.MethodGet, path: "/events", endpoint: "/events", query: q}, &events)
	return events, err
}

func (g *Gateway) GetEvent(ctx context.Context, id string) (domain.SecurityEvent, error) {
	var ev domain.SecurityEvent
	err := g.do(ctx, request{method: http.MethodGet, path: entityPath("events", id), endpoint: "/events/{id}"}, &ev)
	return ev, err
}

func (g *Gateway) CreateEvent(ctx context.Context, in domain.SecurityEventCreate) (domain.SecurityEvent, error) {
	var ev domain.SecurityEvent
	err := g.do(ctx, request{method: http.MethodPost, path: "/events", endpoint: "/events", body: in}, &ev)
	return ev, err
}

func (g *Gateway) UpdateEvent(ctx context.Context, id string, patch domain.SecurityEventUpdate) (Result[domain.SecurityEvent], error) {
	var raw json.RawMessage
	err := g.do(ctx, request{method: http.MethodPut, path: entityPath("events", id), endpoint: "/events/{id}", body: patch}, &raw)
	if err != nil {
		return Result[domain.SecurityEvent]{}, err
	}
	return decodeResult[domain.SecurityEvent](raw)
}

func (g *Gateway) DeleteEvent(ctx context.Context, id string) error {
	return g.do(ctx, request{method: http.MethodDelete, path: entityPath("events", id), endpoint: "/events/{id}"}, nil)
}

// ========== Incidents API ==========

func (g *Gateway) ListIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error) {
	q := url.Values{}
	setIf(q, "status", string(f.Status))

	incidents := make([]domain.Incident, 0)
	err := g.do(ctx, request{method: http.MethodGet, path: "/incidents", endpoint: "/incidents", query: q}, &incidents)
	return incidents, err
}

func (g *Gateway) GetIncident(ctx context.Context, id string) (domain.Incident, error) {
	var inc domain.Incident
	err := g.do(ctx, request{method: http.MethodGet, path: entityPath("incidents", id), endpoint: "/incidents/{id}"}, &inc)
	return inc, err
}

func (g *Gateway) CreateIncident(ctx context.Context, in domain.IncidentCreate) (domain.Incident, error) {
	var inc domain.Incident
	err := g.do(ctx, request{method: http.MethodPost, path: "/incidents", endpoint: "/incidents", body: in}, &inc)
	return inc, err
}

func (g *Gateway) UpdateIncident(ctx context.Context, id string, patch domain.IncidentUpdate) (Result[domain.Incident], error) {
	var raw json.RawMessage
	err := g.do(ctx, request{method: http.MethodPut, path: entityPath("incidents", id), endpoint: "/incidents/{id}", body: patch}, &raw)
	if err != nil {
		return Result[domain.Incident]{}, err
	}
	return decodeResult[domain.Incident](raw)
}

// ========== Assets API ==========

func (g *Gateway) ListAssets(ctx context.Context, f domain.AssetFilter) ([]domain.Asset, error) {
	q := url.Values{}
	setIf(q, "status", string(f.Status))

	assets := make([]domain.Asset, 0)
	err := g.do(ctx, request{method: http.MethodGet, path: "/assets", endpoint: "/assets", query: q}, &assets)
	return assets, err
}

func (g *Gateway) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	var a domain.Asset
	err := g.do(ctx, request{method: http.MethodGet, path: entityPath("assets", id), endpoint: "/assets/{id}"}, &a)
	return a, err
}

// ========== Alert Rules API ==========

func (g *Gateway) ListAlertRules(ctx context.Context) ([]domain.AlertRule, error) {
	rules := make([]domain.AlertRule, 0)
	err := g.do(ctx, request{method: http.MethodGet, path: "/alerts", endpoint: "/alerts"}, &rules)
	return rules, err
}

func (g *Gateway) UpdateAlertRule(ctx context.Context, id string, patch domain.AlertRuleUpdate) (Result[domain.AlertRule], error) {
	var raw json.RawMessage
	err := g.do(ctx, request{method: http.MethodPut, path: entityPath("alerts", id), endpoint: "/alerts/{id}", body: patch}, &raw)
	if err != nil {
		return Result[domain.AlertRule]{}, err
	}
	return decodeResult[domain.AlertRule](raw)
}

// ========== Dashboard API ==========

func (g *Gateway) GetStats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := g.do(ctx, request{method: http.MethodGet, path: "/dashboard/stats", endpoint: "/dashboard/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
