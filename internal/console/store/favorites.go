package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

// Favorites — упорядоченный набор id избранного, сохраняемый в Storage.
type Favorites struct {
	storage session.Storage
	key     string
	logger  *zap.Logger

	mu  sync.RWMutex
	ids []string
}

func NewFavorites(storage session.Storage, logger *zap.Logger) *Favorites {
	return &Favorites{
		storage: storage,
		key:     infra.StorageKeyFavorites,
		logger:  logger.Named("favorites"),
		ids:     make([]string, 0),
	}
}

// Load читает избранное из хранилища. Битый JSON сбрасывает набор в пустой.
func (f *Favorites) Load(ctx context.Context) error {
	raw, err := f.storage.Get(ctx, f.key)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}

	ids := make([]string, 0)
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		f.logger.Error("failed to load favorites", zap.Error(err))
		ids = make([]string, 0)
	}

	f.mu.Lock()
	f.ids = ids
	f.mu.Unlock()
	return nil
}

// Add возвращает false, если id уже в избранном.
func (f *Favorites) Add(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	if slices.Contains(f.ids, id) {
		f.mu.Unlock()
		return false, nil
	}
	f.ids = append(f.ids, id)
	ids := slices.Clone(f.ids)
	f.mu.Unlock()

	return true, f.save(ctx, ids)
}

// Remove возвращает false, если id не было в избранном.
func (f *Favorites) Remove(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	i := slices.Index(f.ids, id)
	if i < 0 {
		f.mu.Unlock()
		return false, nil
	}
	f.ids = slices.Delete(f.ids, i, i+1)
	ids := slices.Clone(f.ids)
	f.mu.Unlock()

	return true, f.save(ctx, ids)
}

// Toggle возвращает новое состояние: true — id теперь в избранном.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	if f.IsFavorite(id) {
		_, err := f.Remove(ctx, id)
		return false, err
	}
	_, err := f.Add(ctx, id)
	return true, err
}

func (f *Favorites) Clear(ctx context.Context) error {
	f.mu.Lock()
	f.ids = make([]string, 0)
	f.mu.Unlock()
	return f.save(ctx, []string{})
}

func (f *Favorites) IsFavorite(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Contains(f.ids, id)
}

func (f *Favorites) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

func (f *Favorites) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.ids)
}

func (f *Favorites) save(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := f.storage.Set(ctx, f.key, string(raw)); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}
