package store

import (
	"context"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

type IncidentsAPI interface {
	ListIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error)
	GetIncident(ctx context.Context, id string) (domain.Incident, error)
	CreateIncident(ctx context.Context, in domain.IncidentCreate) (domain.Incident, error)
	UpdateIncident(ctx context.Context, id string, patch domain.IncidentUpdate) (connectors.Result[domain.Incident], error)
}

// IncidentStore — кэш инцидентов. Хронологию дописывает только сервер,
// клиент получает ее, перечитывая инцидент.
type IncidentStore struct {
	api       IncidentsAPI
	incidents *Collection[domain.Incident]
}

func NewIncidentStore(api IncidentsAPI, logger *zap.Logger) *IncidentStore {
	return &IncidentStore{
		api:       api,
		incidents: NewCollection[domain.Incident]("incidents", logger),
	}
}

func (s *IncidentStore) FetchIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error) {
	return s.incidents.FetchAll(ctx, func(ctx context.Context) ([]domain.Incident, error) {
		return s.api.ListIncidents(ctx, f)
	})
}

func (s *IncidentStore) GetIncident(ctx context.Context, id string) (domain.Incident, error) {
	return s.incidents.GetByID(ctx, id, s.api.GetIncident)
}

func (s *IncidentStore) CreateIncident(ctx context.Context, in domain.IncidentCreate) (domain.Incident, error) {
	return s.incidents.Create(ctx, func(ctx context.Context) (domain.Incident, error) {
		return s.api.CreateIncident(ctx, in)
	})
}

func (s *IncidentStore) UpdateIncident(ctx context.Context, id string, patch domain.IncidentUpdate) (domain.Incident, error) {
	return s.incidents.Update(ctx, id, func(ctx context.Context) (connectors.Result[domain.Incident], error) {
		return s.api.UpdateIncident(ctx, id, patch)
	})
}

func (s *IncidentStore) UpdateIncidentStatus(ctx context.Context, id string, status domain.IncidentStatus) (domain.Incident, error) {
	return s.UpdateIncident(ctx, id, domain.IncidentUpdate{Status: &status})
}

func (s *IncidentStore) AssignIncident(ctx context.Context, id, assignee string) (domain.Incident, error) {
	return s.UpdateIncident(ctx, id, domain.IncidentUpdate{Assignee: &assignee})
}

func (s *IncidentStore) AddIncidentFromPush(inc domain.Incident) {
	s.incidents.Ingest(inc)
}

// ========== Views ==========

func (s *IncidentStore) Incidents() []domain.Incident { return s.incidents.Items() }

// ActiveIncidents — инциденты в работе (in_progress).
func (s *IncidentStore) ActiveIncidents() []domain.Incident {
	return s.incidents.Filter(func(i domain.Incident) bool { return i.Status == domain.IncidentInProgress })
}

func (s *IncidentStore) ResolvedIncidents() []domain.Incident {
	return s.incidents.Filter(func(i domain.Incident) bool { return i.Status == domain.IncidentResolved })
}

func (s *IncidentStore) IncidentsBySeverity(sev domain.Severity) []domain.Incident {
	return s.incidents.Filter(func(i domain.Incident) bool { return i.Severity == sev })
}

func (s *IncidentStore) Count() int    { return s.incidents.Count() }
func (s *IncidentStore) Loading() bool { return s.incidents.Loading() }
func (s *IncidentStore) Error() string { return s.incidents.Error() }

func (s *IncidentStore) Snapshot() Snapshot[domain.Incident] { return s.incidents.Snapshot() }
