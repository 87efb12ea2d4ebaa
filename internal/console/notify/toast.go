package notify

import (
	"sync"
	"time"

	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Время показа по умолчанию. Ошибка висит дольше.
const (
	DefaultDuration      = 5 * time.Second
	DefaultErrorDuration = 7 * time.Second
)

type Toast struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Queue — упорядоченная очередь уведомлений с автоудалением по таймеру.
type Queue struct {
	metrics *infra.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	toasts []Toast
	nextID uint64

	afterFunc func(time.Duration, func())
}

func NewQueue(metrics *infra.Metrics, logger *zap.Logger) *Queue {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Queue{
		metrics:   metrics,
		logger:    logger.Named("toasts"),
		nextID:    1,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Add ставит уведомление в конец очереди. При duration > 0 оно снимется само.
func (q *Queue) Add(message string, typ Type, duration time.Duration) uint64 {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.toasts = append(q.toasts, Toast{
		ID:        id,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now(),
	})
	q.metrics.ToastsActive.Set(float64(len(q.toasts)))
	q.mu.Unlock()

	if duration > 0 {
		q.afterFunc(duration, func() { q.Remove(id) })
	}

	q.logger.Debug("toast added", zap.Uint64("id", id), zap.String("type", string(typ)))
	return id
}

// Remove снимает уведомление. Повторный вызов ничего не делает.
func (q *Queue) Remove(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			q.metrics.ToastsActive.Set(float64(len(q.toasts)))
			return
		}
	}
}

func (q *Queue) Success(message string) uint64 {
	return q.Add(message, TypeSuccess, DefaultDuration)
}

func (q *Queue) Error(message string) uint64 {
	return q.Add(message, TypeError, DefaultErrorDuration)
}

func (q *Queue) Warning(message string) uint64 {
	return q.Add(message, TypeWarning, DefaultDuration)
}

func (q *Queue) Info(message string) uint64 {
	return q.Add(message, TypeInfo, DefaultDuration)
}

// ClearAll очищает очередь. Отложенные таймеры не отменяются: их Remove станет no-op.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = nil
	q.metrics.ToastsActive.Set(0)
}

// Toasts возвращает копию очереди в порядке добавления.
func (q *Queue) Toasts() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}
