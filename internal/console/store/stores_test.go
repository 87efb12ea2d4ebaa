package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/domain"
	"github.com/xela07ax/xdr-console/internal/infra"
	"go.uber.org/zap"
)

func TestIncidentStore(t *testing.T) {
	api := newFakeAPI()
	api.incidents = []domain.Incident{
		{ID: "i1", Status: domain.IncidentInProgress, Severity: domain.SeverityCritical, Assignee: "kim",
			Timeline: []domain.TimelineEntry{{Time: "10:00", Action: "opened", User: "kim"}}},
		{ID: "i2", Status: domain.IncidentResolved, Severity: domain.SeverityLow},
	}
	s := NewIncidentStore(api, zap.NewNop())
	ctx := context.Background()

	_, err := s.FetchIncidents(ctx, domain.IncidentFilter{})
	require.NoError(t, err)
	assert.Len(t, s.ActiveIncidents(), 1)
	assert.Len(t, s.ResolvedIncidents(), 1)
	assert.Len(t, s.IncidentsBySeverity(domain.SeverityCritical), 1)

	_, err = s.AssignIncident(ctx, "i1", "lee")
	require.NoError(t, err)
	inc, err := s.GetIncident(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "lee", inc.Assignee)
	assert.Equal(t, domain.IncidentInProgress, inc.Status)
	assert.Len(t, inc.Timeline, 1)

	_, err = s.UpdateIncidentStatus(ctx, "i1", domain.IncidentMonitoring)
	require.NoError(t, err)
	assert.Empty(t, s.ActiveIncidents())

	created, err := s.CreateIncident(ctx, domain.IncidentCreate{Title: "Phishing", Severity: domain.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, created.ID, s.Incidents()[0].ID)

	s.AddIncidentFromPush(domain.Incident{ID: "pushed", Status: domain.IncidentInProgress})
	assert.Equal(t, "pushed", s.Incidents()[0].ID)
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 0, api.count("GetIncident"))
}

func TestAssetStore(t *testing.T) {
	api := newFakeAPI()
	api.assets = []domain.Asset{
		{ID: "a1", Status: domain.AssetCompromised, RiskScore: 95, Department: "IT"},
		{ID: "a2", Status: domain.AssetHealthy, RiskScore: 70, Department: "HR"},
		{ID: "a3", Status: domain.AssetHealthy, RiskScore: 69, Department: "IT"},
	}
	s := NewAssetStore(api, zap.NewNop())

	_, err := s.FetchAssets(context.Background(), domain.AssetFilter{})
	require.NoError(t, err)

	assert.Len(t, s.CompromisedAssets(), 1)
	assert.Len(t, s.HealthyAssets(), 2)

	highRisk := s.HighRiskAssets()
	require.Len(t, highRisk, 2)
	assert.Equal(t, "a1", highRisk[0].ID)
	assert.Equal(t, "a2", highRisk[1].ID)

	byDept := s.AssetsByDepartment()
	require.Len(t, byDept["IT"], 2)
	assert.Equal(t, "a1", byDept["IT"][0].ID)
	assert.Equal(t, "a3", byDept["IT"][1].ID)
	assert.Len(t, byDept["HR"], 1)

	a, err := s.GetAsset(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, 70, a.RiskScore)
	assert.Equal(t, 0, api.count("GetAsset"))
}

func TestAlertStore_ToggleRule(t *testing.T) {
	api := newFakeAPI()
	api.rules = []domain.AlertRule{
		{ID: "r1", Name: "Brute force", Enabled: true, Severity: domain.SeverityHigh},
		{ID: "r2", Name: "Exfil", Enabled: false, Severity: domain.SeverityCritical},
	}
	s := NewAlertStore(api, zap.NewNop())
	ctx := context.Background()

	_, err := s.FetchAlertRules(ctx)
	require.NoError(t, err)
	assert.Len(t, s.EnabledRules(), 1)
	assert.Len(t, s.DisabledRules(), 1)

	rule, err := s.ToggleRule(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, rule.Enabled)
	assert.Empty(t, s.EnabledRules())
	assert.Equal(t, "Brute force", s.Rules()[0].Name)
	assert.Len(t, s.RulesBySeverity(domain.SeverityCritical), 1)

	_, err = s.ToggleRule(ctx, "missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.Equal(t, 1, api.count("UpdateAlertRule"), "unknown rule never reaches the server")
}

func TestDashboardStore_StalenessWindow(t *testing.T) {
	api := newFakeAPI()
	api.stats = &domain.DashboardStats{TotalEvents: 10, CriticalEvents: 0, ActiveIncidents: 2, AssetsMonitored: 5, ThreatLevel: "low"}
	s := NewDashboardStore(api, 0, zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	assert.Equal(t, "unknown", s.ThreatLevel())
	assert.Nil(t, s.Overview())
	assert.False(t, s.IsCritical())

	_, err := s.RefreshStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("GetStats"))

	now = now.Add(29 * time.Second)
	stats, err := s.RefreshStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalEvents)
	assert.Equal(t, 1, api.count("GetStats"), "fresh snapshot is served from cache")

	now = now.Add(time.Second)
	_, err = s.RefreshStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("GetStats"))

	assert.Equal(t, "low", s.ThreatLevel())
	assert.Equal(t, &domain.OverviewStats{Events: 10, Critical: 0, Incidents: 2, Assets: 5}, s.Overview())
	assert.False(t, s.IsCritical())
	assert.Equal(t, now, s.LastUpdated())

	api.stats.CriticalEvents = 1
	_, err = s.FetchStats(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsCritical())
}

func TestDashboardStore_FetchFailure(t *testing.T) {
	api := newFakeAPI()
	api.err = context.DeadlineExceeded
	s := NewDashboardStore(api, time.Second, zap.NewNop())

	_, err := s.FetchStats(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, s.Error())
	assert.True(t, s.LastUpdated().IsZero())
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	f := NewFavorites(storage, zap.NewNop())
	require.NoError(t, f.Load(ctx))

	added, err := f.Add(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = f.Add(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, added)

	on, err := f.Toggle(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"h1", "h2"}, f.IDs())

	raw, err := storage.Get(ctx, infra.StorageKeyFavorites)
	require.NoError(t, err)
	assert.JSONEq(t, `["h1","h2"]`, raw)

	reloaded := NewFavorites(storage, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.IsFavorite("h2"))
	assert.Equal(t, 2, reloaded.Count())

	on, err = f.Toggle(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, on)
	removed, err := f.Remove(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, f.Clear(ctx))
	assert.Zero(t, f.Count())

	require.NoError(t, storage.Set(ctx, infra.StorageKeyFavorites, "{broken"))
	broken := NewFavorites(storage, zap.NewNop())
	require.NoError(t, broken.Load(ctx))
	assert.Zero(t, broken.Count())
}
