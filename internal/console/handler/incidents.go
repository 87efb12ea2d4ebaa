package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
)

type IncidentsService interface {
	Snapshot() store.Snapshot[domain.Incident]
	ActiveIncidents() []domain.Incident
	ResolvedIncidents() []domain.Incident
	FetchIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error)
	GetIncident(ctx context.Context, id string) (domain.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status domain.IncidentStatus) (domain.Incident, error)
	AssignIncident(ctx context.Context, id, assignee string) (domain.Incident, error)
}

type IncidentsHandler struct {
	service IncidentsService
}

func NewIncidentsHandler(s IncidentsService) *IncidentsHandler {
	return &IncidentsHandler{service: s}
}

// State: ?view=active|resolved, ?severity=
func (h *IncidentsHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	q := r.URL.Query()

	switch q.Get("view") {
	case "active":
		snap.Items = h.service.ActiveIncidents()
	case "resolved":
		snap.Items = h.service.ResolvedIncidents()
	}
	if sev := q.Get("severity"); sev != "" {
		snap.Items = filter(snap.Items, func(i domain.Incident) bool { return i.Severity == domain.Severity(sev) })
	}
	snap.Count = len(snap.Items)

	writeJSON(w, http.StatusOK, snap)
}

func (h *IncidentsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FetchIncidents(r.Context(), domain.IncidentFilter{
		Status: domain.IncidentStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inc, err := h.service.UpdateIncidentStatus(r.Context(), chi.URLParam(r, "id"), domain.IncidentStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type AssignRequest struct {
	Assignee string `json:"assignee"`
}

func (h *IncidentsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Assignee == "" {
		http.Error(w, "assignee is required", http.StatusBadRequest)
		return
	}

	inc, err := h.service.AssignIncident(r.Context(), chi.URLParam(r, "id"), req.Assignee)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}
