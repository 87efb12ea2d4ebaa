package domain

import "slices"

// Entity — всё, что хранится в кэше ресурсного стора, адресуется по ID.
type Entity interface {
	GetID() string
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type EventStatus string

const (
	EventInvestigating EventStatus = "investigating"
	EventMonitoring    EventStatus = "monitoring"
	EventResolved      EventStatus = "resolved"
)

// SecurityEvent — событие безопасности. Создается только на сервере,
// клиент меняет лишь Status.
type SecurityEvent struct {
	ID          string      `json:"id"`
	Timestamp   string      `json:"timestamp"`
	Severity    Severity    `json:"severity"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	Description string      `json:"description"`
	Status      EventStatus `json:"status"`

	// Порядок сохраняется, дубликаты допустимы
	AffectedAssets []string `json:"affectedAssets"`
	IOCs           []string `json:"iocs"`
	Mitre          []string `json:"mitre"`
}

func (e SecurityEvent) GetID() string { return e.ID }

// Clone — копия без общих срезов с оригиналом.
func (e SecurityEvent) Clone() SecurityEvent {
	e.AffectedAssets = slices.Clone(e.AffectedAssets)
	e.IOCs = slices.Clone(e.IOCs)
	e.Mitre = slices.Clone(e.Mitre)
	return e
}

type SecurityEventCreate struct {
	Type           string   `json:"type"`
	Source         string   `json:"source"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	AffectedAssets []string `json:"affectedAssets,omitempty"`
	IOCs           []string `json:"iocs,omitempty"`
	Mitre          []string `json:"mitre,omitempty"`
}

type SecurityEventUpdate struct {
	Status      *EventStatus `json:"status,omitempty"`
	Description *string      `json:"description,omitempty"`
}

// EventFilter — параметры выборки GET /events. Пустые поля не отправляются.
type EventFilter struct {
	Severity Severity
	Status   EventStatus
	Search   string
}
