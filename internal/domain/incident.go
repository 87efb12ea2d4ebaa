package domain

import "slices"

type IncidentStatus string

const (
	IncidentInProgress IncidentStatus = "in_progress"
	IncidentMonitoring IncidentStatus = "monitoring"
	IncidentResolved   IncidentStatus = "resolved"
)

// TimelineEntry дописывается только сервером. Клиент получает новую
// хронологию, перечитывая инцидент целиком.
type TimelineEntry struct {
	Time   string `json:"time"`
	Action string `json:"action"`
	User   string `json:"user"`
}

type Incident struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Severity        Severity        `json:"severity"`
	Status          IncidentStatus  `json:"status"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
	Assignee        string          `json:"assignee"`
	Description     string          `json:"description"`
	AffectedSystems int             `json:"affectedSystems"`
	RelatedEvents   []string        `json:"relatedEvents"` // ID событий, целостность не проверяется
	Timeline        []TimelineEntry `json:"timeline"`
}

func (i Incident) GetID() string { return i.ID }

func (i Incident) Clone() Incident {
	i.RelatedEvents = slices.Clone(i.RelatedEvents)
	i.Timeline = slices.Clone(i.Timeline)
	return i
}

type IncidentCreate struct {
	Title           string   `json:"title"`
	Severity        Severity `json:"severity"`
	Assignee        string   `json:"assignee"`
	Description     string   `json:"description"`
	AffectedSystems int      `json:"affectedSystems"`
	RelatedEvents   []string `json:"relatedEvents,omitempty"`
}

type IncidentUpdate struct {
	Status   *IncidentStatus `json:"status,omitempty"`
	Assignee *string         `json:"assignee,omitempty"`
}

type IncidentFilter struct {
	Status IncidentStatus
}
