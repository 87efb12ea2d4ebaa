package store

import (
	"context"

	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

type AssetsAPI interface {
	ListAssets(ctx context.Context, f domain.AssetFilter) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id string) (domain.Asset, error)
}

// AssetStore — кэш активов, только чтение.
type AssetStore struct {
	api    AssetsAPI
	assets *Collection[domain.Asset]
}

func NewAssetStore(api AssetsAPI, logger *zap.Logger) *AssetStore {
	return &AssetStore{
		api:    api,
		assets: NewCollection[domain.Asset]("assets", logger),
	}
}

func (s *AssetStore) FetchAssets(ctx context.Context, f domain.AssetFilter) ([]domain.Asset, error) {
	return s.assets.FetchAll(ctx, func(ctx context.Context) ([]domain.Asset, error) {
		return s.api.ListAssets(ctx, f)
	})
}

func (s *AssetStore) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	return s.assets.GetByID(ctx, id, s.api.GetAsset)
}

// ========== Views ==========

func (s *AssetStore) Assets() []domain.Asset { return s.assets.Items() }

func (s *AssetStore) CompromisedAssets() []domain.Asset {
	return s.assets.Filter(func(a domain.Asset) bool { return a.Status == domain.AssetCompromised })
}

func (s *AssetStore) HealthyAssets() []domain.Asset {
	return s.assets.Filter(func(a domain.Asset) bool { return a.Status == domain.AssetHealthy })
}

func (s *AssetStore) HighRiskAssets() []domain.Asset {
	return s.assets.Filter(func(a domain.Asset) bool { return a.RiskScore >= domain.HighRiskThreshold })
}

// AssetsByDepartment группирует активы по отделу, порядок внутри группы сохраняется.
func (s *AssetStore) AssetsByDepartment() map[string][]domain.Asset {
	grouped := make(map[string][]domain.Asset)
	for _, a := range s.assets.Items() {
		grouped[a.Department] = append(grouped[a.Department], a)
	}
	return grouped
}

func (s *AssetStore) Count() int    { return s.assets.Count() }
func (s *AssetStore) Loading() bool { return s.assets.Loading() }
func (s *AssetStore) Error() string { return s.assets.Error() }

func (s *AssetStore) Snapshot() Snapshot[domain.Asset] { return s.assets.Snapshot() }
