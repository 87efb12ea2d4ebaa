package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

type EventsAPI interface {
	ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error)
	GetEvent(ctx context.Context, id string) (domain.SecurityEvent, error)
	CreateEvent(ctx context.Context, in domain.SecurityEventCreate) (domain.SecurityEvent, error)
	UpdateEvent(ctx context.Context, id string, patch domain.SecurityEventUpdate) (connectors.Result[domain.SecurityEvent], error)
	DeleteEvent(ctx context.Context, id string) error
}

// EventStore — кэш событий безопасности.
type EventStore struct {
	api    EventsAPI
	events *Collection[domain.SecurityEvent]
}

func NewEventStore(api EventsAPI, logger *zap.Logger) *EventStore {
	return &EventStore{
		api:    api,
		events: NewCollection[domain.SecurityEvent]("events", logger),
	}
}

func (s *EventStore) FetchEvents(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error) {
	return s.events.FetchAll(ctx, func(ctx context.Context) ([]domain.SecurityEvent, error) {
		return s.api.ListEvents(ctx, f)
	})
}

func (s *EventStore) GetEvent(ctx context.Context, id string) (domain.SecurityEvent, error) {
	return s.events.GetByID(ctx, id, s.api.GetEvent)
}

func (s *EventStore) CreateEvent(ctx context.Context, in domain.SecurityEventCreate) (domain.SecurityEvent, error) {
	return s.events.Create(ctx, func(ctx context.Context) (domain.SecurityEvent, error) {
		return s.api.CreateEvent(ctx, in)
	})
}

func (s *EventStore) UpdateEvent(ctx context.Context, id string, patch domain.SecurityEventUpdate) (domain.SecurityEvent, error) {
	return s.events.Update(ctx, id, func(ctx context.Context) (connectors.Result[domain.SecurityEvent], error) {
		return s.api.UpdateEvent(ctx, id, patch)
	})
}

func (s *EventStore) UpdateEventStatus(ctx context.Context, id string, status domain.EventStatus) (domain.SecurityEvent, error) {
	return s.UpdateEvent(ctx, id, domain.SecurityEventUpdate{Status: &status})
}

func (s *EventStore) DeleteEvent(ctx context.Context, id string) error {
	return s.events.Delete(ctx, id, func(ctx context.Context) error {
		return s.api.DeleteEvent(ctx, id)
	})
}

// AddEventFromPush — единственный путь записи для live-канала.
func (s *EventStore) AddEventFromPush(ev domain.SecurityEvent) {
	s.events.Ingest(ev)
}

// ApplyPushedUpdate вливает push event_updated в закэшированное событие по id.
// Возвращает false, если события нет в кэше.
func (s *EventStore) ApplyPushedUpdate(data json.RawMessage) (bool, error) {
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return false, fmt.Errorf("decode event update: %w", err)
	}
	if ref.ID == "" {
		return false, fmt.Errorf("decode event update: missing id")
	}
	return s.events.Merge(ref.ID, data)
}

// ========== Views ==========

func (s *EventStore) Events() []domain.SecurityEvent { return s.events.Items() }

func (s *EventStore) CriticalEvents() []domain.SecurityEvent {
	return s.EventsBySeverity(domain.SeverityCritical)
}

func (s *EventStore) EventsBySeverity(sev domain.Severity) []domain.SecurityEvent {
	return s.events.Filter(func(e domain.SecurityEvent) bool { return e.Severity == sev })
}

func (s *EventStore) EventsByStatus(status domain.EventStatus) []domain.SecurityEvent {
	return s.events.Filter(func(e domain.SecurityEvent) bool { return e.Status == status })
}

func (s *EventStore) Count() int    { return s.events.Count() }
func (s *EventStore) Loading() bool { return s.events.Loading() }
func (s *EventStore) Error() string { return s.events.Error() }

func (s *EventStore) Snapshot() Snapshot[domain.SecurityEvent] { return s.events.Snapshot() }
