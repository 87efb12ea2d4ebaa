package engine

import (
	"encoding/json"
	"fmt"

	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

// EventSink — путь записи live-канала в кэш событий.
type EventSink interface {
	AddEventFromPush(ev domain.SecurityEvent)
	ApplyPushedUpdate(data json.RawMessage) (bool, error)
}

type IncidentSink interface {
	AddIncidentFromPush(inc domain.Incident)
}

type Notifier interface {
	Info(message string) uint64
}

// Sync раскладывает push-сообщения моста по сторам и поднимает уведомления.
type Sync struct {
	bridge    *Bridge
	events    EventSink
	incidents IncidentSink
	notifier  Notifier
	logger    *zap.Logger

	ids map[string]ListenerID
}

func NewSync(bridge *Bridge, events EventSink, incidents IncidentSink, notifier Notifier, logger *zap.Logger) *Sync {
	return &Sync{
		bridge:    bridge,
		events:    events,
		incidents: incidents,
		notifier:  notifier,
		logger:    logger.Named("sync"),
		ids:       make(map[string]ListenerID),
	}
}

// Attach подписывает обработчики на мост. Повторный вызов ничего не делает.
func (s *Sync) Attach() {
	if len(s.ids) > 0 {
		return
	}
	s.ids[domain.MessageNewEvent] = s.bridge.On(domain.MessageNewEvent, s.onNewEvent)
	s.ids[domain.MessageEventUpdated] = s.bridge.On(domain.MessageEventUpdated, s.onEventUpdated)
	s.ids[domain.MessageNewIncident] = s.bridge.On(domain.MessageNewIncident, s.onNewIncident)
	s.ids[domain.MessagePong] = s.bridge.On(domain.MessagePong, func(json.RawMessage) {
		s.logger.Debug("pong")
	})
}

func (s *Sync) Detach() {
	for typ, id := range s.ids {
		s.bridge.Off(typ, id)
	}
	clear(s.ids)
}

func (s *Sync) onNewEvent(data json.RawMessage) {
	var ev domain.SecurityEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ID == "" {
		s.logger.Warn("dropping malformed new_event", zap.Error(err))
		return
	}
	s.events.AddEventFromPush(ev)
	s.notify(fmt.Sprintf("새 보안 이벤트: %s (%s)", ev.Type, ev.Severity))
}

func (s *Sync) onEventUpdated(data json.RawMessage) {
	ok, err := s.events.ApplyPushedUpdate(data)
	if err != nil {
		s.logger.Warn("dropping malformed event_updated", zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("updated event is not cached")
		return
	}
	s.notify("보안 이벤트가 업데이트되었습니다.")
}

func (s *Sync) onNewIncident(data json.RawMessage) {
	var inc domain.Incident
	if err := json.Unmarshal(data, &inc); err != nil || inc.ID == "" {
		s.logger.Warn("dropping malformed new_incident", zap.Error(err))
		return
	}
	s.incidents.AddIncidentFromPush(inc)
	s.notify(fmt.Sprintf("새 인시던트: %s", inc.Title))
}

func (s *Sync) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Info(msg)
	}
}
