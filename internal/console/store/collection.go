package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

// ErrFetchFailed — полная выборка коллекции не удалась. Исходная ошибка
// остается в цепочке и доступна через errors.As.
var ErrFetchFailed = errors.New("fetch failed")

// Collection — упорядоченный кэш сущностей одного ресурса (новые в начале).
// Мьютекс держится только на время изменения памяти, не на время сетевого вызова:
// два параллельных FetchAll оставят в кэше тот ответ, что пришел последним.
type Collection[T domain.Entity] struct {
	name   string
	logger *zap.Logger

	mu      sync.RWMutex
	items   []T
	loading bool
	lastErr string
}

func NewCollection[T domain.Entity](name string, logger *zap.Logger) *Collection[T] {
	return &Collection[T]{
		name:   name,
		logger: logger.Named(name + "-store"),
		items:  make([]T, 0),
	}
}

// FetchAll целиком заменяет кэш ответом сервера.
func (c *Collection[T]) FetchAll(ctx context.Context, fetch func(context.Context) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	c.loading = true
	c.lastErr = ""
	c.mu.Unlock()

	items, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.lastErr = connectors.ErrorMessage(err)
		c.logger.Error("fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, c.name, err)
	}

	if items == nil {
		items = make([]T, 0)
	}
	c.items = items
	return clone(items), nil
}

// GetByID отдает сущность из кэша без сети. Промах — один запрос к серверу,
// результат в кэш не попадает.
func (c *Collection[T]) GetByID(ctx context.Context, id string, fetch func(context.Context, string) (T, error)) (T, error) {
	if item, ok := c.Find(id); ok {
		return item, nil
	}

	item, err := fetch(ctx, id)
	if err != nil {
		c.logger.Error("get by id failed", zap.String("id", id), zap.Error(err))
		var zero T
		return zero, err
	}
	return item, nil
}

// Create добавляет созданную сервером сущность в начало кэша.
func (c *Collection[T]) Create(ctx context.Context, create func(context.Context) (T, error)) (T, error) {
	item, err := create(ctx)
	if err != nil {
		c.logger.Error("create failed", zap.Error(err))
		var zero T
		return zero, err
	}

	c.Ingest(item)
	return cloneItem(item), nil
}

// Update отправляет частичное изменение и вливает поля ответа в закэшированную
// сущность. Поля, которых нет в ответе, не меняются. Промах кэша — не ошибка.
func (c *Collection[T]) Update(ctx context.Context, id string, update func(context.Context) (connectors.Result[T], error)) (T, error) {
	res, err := update(ctx)
	if err != nil {
		c.logger.Error("update failed", zap.String("id", id), zap.Error(err))
		var zero T
		return zero, err
	}

	if len(res.Raw) == 0 {
		// сервер ничего не вернул: отдаем закэшированную версию как есть
		if item, ok := c.Find(id); ok {
			return item, nil
		}
		return res.Value, nil
	}
	if _, err := c.Merge(id, res.Raw); err != nil {
		c.logger.Warn("failed to merge update into cache", zap.String("id", id), zap.Error(err))
	}
	return res.Value, nil
}

// Delete удаляет сущность на сервере, затем из кэша.
func (c *Collection[T]) Delete(ctx context.Context, id string, del func(context.Context) error) error {
	if err := del(ctx); err != nil {
		c.logger.Error("delete failed", zap.String("id", id), zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0:0]
	for _, item := range c.items {
		if item.GetID() != id {
			kept = append(kept, item)
		}
	}
	c.items = kept
	return nil
}

// Ingest кладет сущность в начало кэша без обращения к серверу.
func (c *Collection[T]) Ingest(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, 0, len(c.items)+1)
	items = append(items, item)
	c.items = append(items, c.items...)
}

// Merge накладывает JSON-поля patch на закэшированную сущность с этим id.
// Возвращает false, если сущности в кэше нет.
func (c *Collection[T]) Merge(id string, patch json.RawMessage) (bool, error) {
	if len(patch) == 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, item := range c.items {
		if item.GetID() != id {
			continue
		}
		merged, err := mergeJSON(item, patch)
		if err != nil {
			return false, err
		}
		c.items[i] = merged
		return true, nil
	}
	return false, nil
}

// mergeJSON работает на глубокой копии: срезы исходной сущности не разделяются с результатом.
func mergeJSON[T any](base T, patch json.RawMessage) (T, error) {
	var out T
	raw, err := json.Marshal(base)
	if err != nil {
		return out, fmt.Errorf("encode cached entity: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("copy cached entity: %w", err)
	}
	if err := json.Unmarshal(patch, &out); err != nil {
		return base, fmt.Errorf("apply patch: %w", err)
	}
	return out, nil
}

func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.GetID() == id {
			return cloneItem(item), true
		}
	}
	var zero T
	return zero, false
}

// Items — копия кэша в текущем порядке.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.items)
}

// Filter — производное представление, пересчитывается на каждом вызове.
func (c *Collection[T]) Filter(keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0)
	for _, item := range c.items {
		if keep(item) {
			out = append(out, cloneItem(item))
		}
	}
	return out
}

func (c *Collection[T]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Error — сообщение последней неудачной выборки или "".
func (c *Collection[T]) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Snapshot — состояние коллекции для внешних потребителей.
type Snapshot[T any] struct {
	Items   []T    `json:"items"`
	Count   int    `json:"count"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot[T]{
		Items:   clone(c.items),
		Count:   len(c.items),
		Loading: c.loading,
		Error:   c.lastErr,
	}
}

// clone копирует срез вместе с вложенными срезами сущностей.
func clone[T any](in []T) []T {
	out := make([]T, len(in))
	for i, item := range in {
		out[i] = cloneItem(item)
	}
	return out
}

func cloneItem[T any](item T) T {
	if c, ok := any(item).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return item
}
