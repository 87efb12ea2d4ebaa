package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

// DefaultStaleAfter — окно, в котором повторный RefreshStats отдает кэш.
const DefaultStaleAfter = 30 * time.Second

const threatUnknown = "unknown"

type DashboardAPI interface {
	GetStats(ctx context.Context) (*domain.DashboardStats, error)
}

// DashboardStore — снимок статистики без идентичности, заменяется целиком.
type DashboardStore struct {
	api        DashboardAPI
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu          sync.RWMutex
	stats       *domain.DashboardStats
	lastUpdated time.Time
	loading     bool
	lastErr     string
}

func NewDashboardStore(api DashboardAPI, staleAfter time.Duration, logger *zap.Logger) *DashboardStore {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &DashboardStore{
		api:        api,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger.Named("dashboard-store"),
	}
}

func (s *DashboardStore) FetchStats(ctx context.Context) (*domain.DashboardStats, error) {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()

	stats, err := s.api.GetStats(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		s.lastErr = connectors.ErrorMessage(err)
		s.logger.Error("fetch stats failed", zap.Error(err))
		return nil, fmt.Errorf("%w: dashboard: %w", ErrFetchFailed, err)
	}

	s.stats = stats
	s.lastUpdated = s.now()
	return copyStats(stats), nil
}

// RefreshStats ходит в сеть, только если снимок старше окна устаревания.
func (s *DashboardStore) RefreshStats(ctx context.Context) (*domain.DashboardStats, error) {
	s.mu.RLock()
	fresh := !s.lastUpdated.IsZero() && s.now().Sub(s.lastUpdated) < s.staleAfter
	stats := copyStats(s.stats)
	s.mu.RUnlock()

	if fresh {
		return stats, nil
	}
	return s.FetchStats(ctx)
}

// ========== Views ==========

func (s *DashboardStore) Stats() *domain.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStats(s.stats)
}

func (s *DashboardStore) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

func (s *DashboardStore) ThreatLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil || s.stats.ThreatLevel == "" {
		return threatUnknown
	}
	return s.stats.ThreatLevel
}

func (s *DashboardStore) IsCritical() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return false
	}
	return s.stats.ThreatLevel == "critical" || s.stats.CriticalEvents > 0
}

// Overview — сводка для верхней панели, nil пока статистики нет.
func (s *DashboardStore) Overview() *domain.OverviewStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return nil
	}
	return &domain.OverviewStats{
		Events:    s.stats.TotalEvents,
		Critical:  s.stats.CriticalEvents,
		Incidents: s.stats.ActiveIncidents,
		Assets:    s.stats.AssetsMonitored,
	}
}

func (s *DashboardStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *DashboardStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

type DashboardSnapshot struct {
	Stats       *domain.DashboardStats `json:"stats"`
	Overview    *domain.OverviewStats  `json:"overview"`
	ThreatLevel string                 `json:"threatLevel"`
	IsCritical  bool                   `json:"isCritical"`
	LastUpdated *time.Time             `json:"lastUpdated,omitempty"`
	Loading     bool                   `json:"loading"`
	Error       string                 `json:"error,omitempty"`
}

func (s *DashboardStore) Snapshot() DashboardSnapshot {
	snap := DashboardSnapshot{
		Stats:       s.Stats(),
		Overview:    s.Overview(),
		ThreatLevel: s.ThreatLevel(),
		IsCritical:  s.IsCritical(),
		Loading:     s.Loading(),
		Error:       s.Error(),
	}
	if ts := s.LastUpdated(); !ts.IsZero() {
		snap.LastUpdated = &ts
	}
	return snap
}

func copyStats(in *domain.DashboardStats) *domain.DashboardStats {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
