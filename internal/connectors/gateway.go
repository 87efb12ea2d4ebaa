package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

// TokenProvider — единственный источник правды о токене сессии.
// Шлюз читает токен на каждом запросе и гасит сессию при 401.
type TokenProvider interface {
	Token() string
	Logout()
}

// Gateway — типизированный REST-клиент бэкенда XDR.
type Gateway struct {
	baseURL     string
	client      *http.Client
	tokens      TokenProvider
	reliability *Reliability
	metrics     *infra.Metrics
	logger      *zap.Logger

	mu        sync.RWMutex
	observers []func()
}

func NewGateway(cfg infra.APIConfig, tokens TokenProvider, rel *Reliability, metrics *infra.Metrics, logger *zap.Logger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Gateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      &http.Client{Timeout: timeout},
		tokens:      tokens,
		reliability: rel,
		metrics:     metrics,
		logger:      logger.Named("gateway"),
	}
}

// OnUnauthenticated регистрирует наблюдателя сигнала "сессия умерла" (401).
// Редирект на логин — забота слушателя, а не сетевого слоя.
func (g *Gateway) OnUnauthenticated(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

type request struct {
	method   string
	path     string
	endpoint string // шаблон пути для метрик, например /events/{id}
	query    url.Values
	body     any
	form     url.Values
	public   bool // без Bearer и без реакции на 401 (логин)
}

func (g *Gateway) do(ctx context.Context, req request, out any) error {
	start := time.Now()
	status := 0
	sent := ""

	call := func() error {
		httpReq, err := g.newRequest(ctx, req)
		if err != nil {
			return err
		}
		sent = strings.TrimPrefix(httpReq.Header.Get("Authorization"), "Bearer ")

		resp, err := g.client.Do(httpReq)
		if err != nil {
			return &NetworkError{Method: req.method, Path: req.path, Err: err}
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Method: req.method, Path: req.path, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{Method: req.method, Path: req.path, Status: resp.StatusCode, Body: body}
		}

		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = append((*raw)[:0], body...)
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", req.method, req.path, err)
		}
		return nil
	}

	var err error
	if g.reliability != nil {
		err = g.reliability.Execute(ctx, call)
	} else {
		err = call()
	}

	var httpErr *HTTPError
	var netErr *NetworkError
	if err != nil && !errors.As(err, &httpErr) && !errors.As(err, &netErr) && status == 0 {
		// отказ лимитера/предохранителя или отмена контекста — ответа не было
		err = &NetworkError{Method: req.method, Path: req.path, Err: err}
	}

	g.metrics.RequestDuration.WithLabelValues(req.method, req.endpoint, strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		g.handleError(req, sent, err)
	}
	return err
}

func (g *Gateway) newRequest(ctx context.Context, req request) (*http.Request, error) {
	target := g.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", req.method, req.path, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())

	if !req.public && g.tokens != nil {
		if token := g.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

// sent — токен, с которым ушел запрос.
func (g *Gateway) handleError(req request, sent string, err error) {
	apiErr := Classify(err)
	g.metrics.ErrorTotal.WithLabelValues(apiErr.Code).Inc()

	g.logger.Error("api error",
		zap.String("method", req.method),
		zap.String("url", req.path),
		zap.Int("status", apiErr.Status),
		zap.String("code", apiErr.Code),
		zap.Error(err))

	switch apiErr.Status {
	case http.StatusUnauthorized:
		if req.public {
			break
		}
		// 401 на запрос со старым токеном не гасит новую сессию
		if g.tokens != nil && g.tokens.Token() != sent {
			g.logger.Info("stale 401 ignored", zap.String("url", req.path))
			break
		}
		g.unauthenticated()
	case http.StatusForbidden:
		g.logger.Warn("permission denied", zap.String("url", req.path))
	}
}

// unauthenticated гасит сессию и оповещает наблюдателей.
func (g *Gateway) unauthenticated() {
	if g.tokens != nil {
		g.tokens.Logout()
	}

	g.mu.RLock()
	observers := make([]func(), len(g.observers))
	copy(observers, g.observers)
	g.mu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}
