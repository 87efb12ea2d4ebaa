package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
)

// fakeAPI — бэкенд в памяти со счетчиком сетевых вызовов.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	events    []domain.SecurityEvent
	incidents []domain.Incident
	assets    []domain.Asset
	rules     []domain.AlertRule
	stats     *domain.DashboardStats

	// updateRaw — тело ответа на PUT; пусто — весь объект
	updateRaw string
	err       error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) ListEvents(_ context.Context, _ domain.EventFilter) ([]domain.SecurityEvent, error) {
	if err := f.hit("ListEvents"); err != nil {
		return nil, err
	}
	return append([]domain.SecurityEvent(nil), f.events...), nil
}

func (f *fakeAPI) GetEvent(_ context.Context, id string) (domain.SecurityEvent, error) {
	if err := f.hit("GetEvent"); err != nil {
		return domain.SecurityEvent{}, err
	}
	return domain.SecurityEvent{ID: id, Severity: domain.SeverityLow}, nil
}

func (f *fakeAPI) CreateEvent(_ context.Context, in domain.SecurityEventCreate) (domain.SecurityEvent, error) {
	if err := f.hit("CreateEvent"); err != nil {
		return domain.SecurityEvent{}, err
	}
	return domain.SecurityEvent{
		ID:          "new-1",
		Type:        in.Type,
		Source:      in.Source,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      domain.EventInvestigating,
	}, nil
}

func (f *fakeAPI) UpdateEvent(_ context.Context, id string, patch domain.SecurityEventUpdate) (connectors.Result[domain.SecurityEvent], error) {
	if err := f.hit("UpdateEvent"); err != nil {
		return connectors.Result[domain.SecurityEvent]{}, err
	}
	raw := f.updateRaw
	if raw == "" {
		b, _ := json.Marshal(map[string]any{"id": id, "status": patch.Status})
		raw = string(b)
	}
	var v domain.SecurityEvent
	_ = json.Unmarshal([]byte(raw), &v)
	return connectors.Result[domain.SecurityEvent]{Value: v, Raw: json.RawMessage(raw)}, nil
}

func (f *fakeAPI) DeleteEvent(_ context.Context, _ string) error {
	return f.hit("DeleteEvent")
}

func (f *fakeAPI) ListIncidents(_ context.Context, _ domain.IncidentFilter) ([]domain.Incident, error) {
	if err := f.hit("ListIncidents"); err != nil {
		return nil, err
	}
	return append([]domain.Incident(nil), f.incidents...), nil
}

func (f *fakeAPI) GetIncident(_ context.Context, id string) (domain.Incident, error) {
	if err := f.hit("GetIncident"); err != nil {
		return domain.Incident{}, err
	}
	return domain.Incident{ID: id}, nil
}

func (f *fakeAPI) CreateIncident(_ context.Context, in domain.IncidentCreate) (domain.Incident, error) {
	if err := f.hit("CreateIncident"); err != nil {
		return domain.Incident{}, err
	}
	return domain.Incident{ID: "inc-new", Title: in.Title, Severity: in.Severity, Status: domain.IncidentInProgress}, nil
}

func (f *fakeAPI) UpdateIncident(_ context.Context, id string, patch domain.IncidentUpdate) (connectors.Result[domain.Incident], error) {
	if err := f.hit("UpdateIncident"); err != nil {
		return connectors.Result[domain.Incident]{}, err
	}
	raw := f.updateRaw
	if raw == "" {
		b, _ := json.Marshal(struct {
			ID string `json:"id"`
			domain.IncidentUpdate
		}{id, patch})
		raw = string(b)
	}
	var v domain.Incident
	_ = json.Unmarshal([]byte(raw), &v)
	return connectors.Result[domain.Incident]{Value: v, Raw: json.RawMessage(raw)}, nil
}

func (f *fakeAPI) ListAssets(_ context.Context, _ domain.AssetFilter) ([]domain.Asset, error) {
	if err := f.hit("ListAssets"); err != nil {
		return nil, err
	}
	return append([]domain.Asset(nil), f.assets...), nil
}

func (f *fakeAPI) GetAsset(_ context.Context, id string) (domain.Asset, error) {
	if err := f.hit("GetAsset"); err != nil {
		return domain.Asset{}, err
	}
	return domain.Asset{ID: id}, nil
}

func (f *fakeAPI) ListAlertRules(_ context.Context) ([]domain.AlertRule, error) {
	if err := f.hit("ListAlertRules"); err != nil {
		return nil, err
	}
	return append([]domain.AlertRule(nil), f.rules...), nil
}

func (f *fakeAPI) UpdateAlertRule(_ context.Context, id string, patch domain.AlertRuleUpdate) (connectors.Result[domain.AlertRule], error) {
	if err := f.hit("UpdateAlertRule"); err != nil {
		return connectors.Result[domain.AlertRule]{}, err
	}
	b, _ := json.Marshal(map[string]any{"id": id, "enabled": patch.Enabled})
	var v domain.AlertRule
	_ = json.Unmarshal(b, &v)
	return connectors.Result[domain.AlertRule]{Value: v, Raw: b}, nil
}

func (f *fakeAPI) GetStats(_ context.Context) (*domain.DashboardStats, error) {
	if err := f.hit("GetStats"); err != nil {
		return nil, err
	}
	if f.stats == nil {
		return &domain.DashboardStats{}, nil
	}
	s := *f.stats
	return &s, nil
}
