package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
)

// EventsService Описываем, что нам нужно от стора событий
type EventsService interface {
	Snapshot() store.Snapshot[domain.SecurityEvent]
	CriticalEvents() []domain.SecurityEvent
	FetchEvents(ctx context.Context, f domain.EventFilter) ([]domain.SecurityEvent, error)
	GetEvent(ctx context.Context, id string) (domain.SecurityEvent, error)
	UpdateEventStatus(ctx context.Context, id string, status domain.EventStatus) (domain.SecurityEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

type EventsHandler struct {
	service EventsService
}

func NewEventsHandler(s EventsService) *EventsHandler {
	return &EventsHandler{service: s}
}

// State отдает кэш. ?severity= и ?status= сужают выборку, ?view=critical — только критичные.
func (h *EventsHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	q := r.URL.Query()

	if q.Get("view") == "critical" {
		snap.Items = h.service.CriticalEvents()
	}
	if sev := q.Get("severity"); sev != "" {
		snap.Items = filter(snap.Items, func(e domain.SecurityEvent) bool { return e.Severity == domain.Severity(sev) })
	}
	if status := q.Get("status"); status != "" {
		snap.Items = filter(snap.Items, func(e domain.SecurityEvent) bool { return e.Status == domain.EventStatus(status) })
	}
	snap.Count = len(snap.Items)

	writeJSON(w, http.StatusOK, snap)
}

// Refresh перечитывает события с бэкенда с теми же фильтрами, что и в query.
func (h *EventsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.FetchEvents(r.Context(), domain.EventFilter{
		Severity: domain.Severity(q.Get("severity")),
		Status:   domain.EventStatus(q.Get("status")),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (h *EventsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.service.UpdateEventStatus(r.Context(), chi.URLParam(r, "id"), domain.EventStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
