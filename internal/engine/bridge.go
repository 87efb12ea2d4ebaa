package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/gorilla/websocket"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

// ErrNotConnected — Send вызван без живого соединения, сообщение отброшено.
var ErrNotConnected = errors.New("websocket is not connected")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateExhausted — бюджет переподключений исчерпан, нужен явный Connect.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	default:
		return "disconnected"
	}
}

// Handler получает data для точного типа или весь кадр для подписки "*".
type Handler func(payload json.RawMessage)

type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// TokenSource — откуда мост берет bearer-токен при каждом подключении.
type TokenSource interface {
	Token() string
}

// Bridge — постоянный канал live-обновлений поверх WebSocket.
// disconnected -> connecting -> connected -> disconnected -> ... -> exhausted
type Bridge struct {
	cfg     infra.WSConfig
	tokens  TokenSource
	dialer  *websocket.Dialer
	decoder *EnvelopeDecoder
	metrics *infra.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempts int
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex

	lmu       sync.RWMutex
	listeners map[string][]listener
	nextID    ListenerID
}

func NewBridge(cfg infra.WSConfig, tokens TokenSource, metrics *infra.Metrics, logger *zap.Logger) (*Bridge, error) {
	decoder, err := NewEnvelopeDecoder()
	if err != nil {
		return nil, err
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}

	return &Bridge{
		cfg:    cfg,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		decoder:   decoder,
		metrics:   metrics,
		logger:    logger.Named("bridge"),
		listeners: make(map[string][]listener),
	}, nil
}

// Connect запускает соединение в фоне. Повторный вызов при живом цикле ничего не делает,
// после Disconnect или исчерпания бюджета запускает цикл заново.
func (b *Bridge) Connect(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done
	b.attempts = 0

	go b.run(runCtx, cancel, done)
}

// Disconnect закрывает соединение без переподключения и ждет завершения цикла чтения.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (b *Bridge) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)

	final := StateDisconnected
	defer func() {
		cancel()
		b.mu.Lock()
		b.state = final
		b.cancel = nil
		b.mu.Unlock()
		b.metrics.BridgeConnected.Set(0)
	}()

	conn, err := b.dial(ctx)
	for {
		if err == nil {
			b.serve(ctx, conn)
		} else if ctx.Err() == nil {
			b.logger.Warn("websocket connect failed", zap.Error(err))
		}

		if ctx.Err() != nil {
			return
		}

		conn, err = b.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Error("max reconnection attempts reached",
					zap.Int("attempts", b.Attempts()), zap.Error(err))
				final = StateExhausted
			}
			return
		}
	}
}

// reconnect — один эпизод переподключения: фиксированная пауза перед каждой
// попыткой, не больше MaxReconnectAttempts попыток.
func (b *Bridge) reconnect(ctx context.Context) (*websocket.Conn, error) {
	maxAttempts := b.cfg.MaxReconnectAttempts
	if maxAttempts == 0 {
		return nil, errors.New("reconnect disabled")
	}
	delay := b.cfg.ReconnectDelay

	// retry ждет только между попытками, перед первой паузу выдерживаем сами
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var conn *websocket.Conn
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return delay
		}),
	)

	err := r.Do(func() error {
		b.mu.Lock()
		b.attempts++
		attempt := b.attempts
		b.mu.Unlock()

		b.metrics.BridgeReconnects.Inc()
		b.logger.Info("reconnecting", zap.Int("attempt", attempt), zap.Int("max", maxAttempts))

		c, err := b.dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	b.setState(StateConnecting)

	target, header, err := b.target()
	if err != nil {
		b.setState(StateDisconnected)
		return nil, err
	}

	conn, resp, err := b.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		b.setState(StateDisconnected)
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// target добавляет токен сессии в query и в Authorization.
func (b *Bridge) target() (string, http.Header, error) {
	u, err := url.Parse(b.cfg.URL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid websocket url: %w", err)
	}

	header := http.Header{}
	if b.tokens != nil {
		if token := b.tokens.Token(); token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+token)
		}
	}
	return u.String(), header, nil
}

// serve читает кадры до обрыва соединения или отмены ctx.
func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn) {
	b.mu.Lock()
	b.conn = conn
	b.attempts = 0
	b.state = StateConnected
	b.mu.Unlock()

	b.metrics.BridgeConnected.Set(1)
	b.logger.Info("websocket connected", zap.String("url", b.cfg.URL))

	stop := context.AfterFunc(ctx, func() { b.closeConn(conn) })
	defer stop()

	pingDone := make(chan struct{})
	defer close(pingDone)
	if b.cfg.PingInterval > 0 {
		go b.keepalive(conn, pingDone)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					b.logger.Warn("websocket error", zap.Error(err))
				} else {
					b.logger.Info("websocket disconnected", zap.Error(err))
				}
			}
			break
		}
		b.handleFrame(frame)
	}

	b.mu.Lock()
	b.conn = nil
	b.state = StateDisconnected
	b.mu.Unlock()
	b.metrics.BridgeConnected.Set(0)
	conn.Close()
}

func (b *Bridge) closeConn(conn *websocket.Conn) {
	b.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	b.writeMu.Unlock()
	conn.Close()
}

func (b *Bridge) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			b.writeMu.Unlock()
			if err != nil {
				b.logger.Debug("keepalive ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (b *Bridge) handleFrame(frame []byte) {
	env, err := b.decoder.Decode(frame)
	if err != nil {
		b.metrics.BridgeDropped.Inc()
		b.logger.Warn("dropping malformed message", zap.Error(err))
		return
	}
	b.metrics.BridgeMessages.WithLabelValues(messageLabel(env.Type)).Inc()
	b.dispatch(env.Type, env.Data, frame)
}

// messageLabel ограничивает метку метрики известными типами, прочие идут в "other".
func messageLabel(typ string) string {
	switch typ {
	case domain.MessageNewEvent, domain.MessageNewIncident, domain.MessageEventUpdated, domain.MessagePong:
		return typ
	default:
		return "other"
	}
}

// dispatch: сначала подписчики точного типа (получают data), затем "*" (весь кадр).
// Сообщение с type "*" доставляется подписчикам "*" один раз.
func (b *Bridge) dispatch(typ string, data json.RawMessage, frame []byte) {
	b.lmu.RLock()
	exact := append([]listener(nil), b.listeners[typ]...)
	var wildcard []listener
	if typ != domain.MessageWildcard {
		wildcard = append(wildcard, b.listeners[domain.MessageWildcard]...)
	}
	b.lmu.RUnlock()

	for _, l := range exact {
		b.invoke(typ, l, data)
	}
	for _, l := range wildcard {
		b.invoke(typ, l, json.RawMessage(frame))
	}
}

func (b *Bridge) invoke(typ string, l listener, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", zap.String("type", typ), zap.Any("panic", r))
		}
	}()
	l.fn(payload)
}

// On регистрирует подписчика. Порядок вызова — порядок регистрации.
func (b *Bridge) On(typ string, fn Handler) ListenerID {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[typ] = append(b.listeners[typ], listener{id: id, fn: fn})
	return id
}

// Off снимает подписчика. Возвращает false, если такой регистрации нет.
func (b *Bridge) Off(typ string, id ListenerID) bool {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	ls := b.listeners[typ]
	for i, l := range ls {
		if l.id == id {
			b.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
			return true
		}
	}
	return false
}

// Send пишет сообщение только при живом соединении. Строки уходят как есть,
// остальное кодируется в JSON. Без соединения сообщение отбрасывается.
func (b *Bridge) Send(v any) error {
	var payload []byte
	switch p := v.(type) {
	case string:
		payload = []byte(p)
	case []byte:
		payload = p
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		payload = raw
	}

	b.mu.Lock()
	conn := b.conn
	connected := b.state == StateConnected
	b.mu.Unlock()

	if conn == nil || !connected {
		b.logger.Warn("websocket is not connected, message dropped")
		return ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) IsConnected() bool { return b.State() == StateConnected }

// Attempts — число попыток в текущем эпизоде переподключения.
func (b *Bridge) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
