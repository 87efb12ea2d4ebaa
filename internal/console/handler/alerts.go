package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
)

type AlertsService interface {
	Snapshot() store.Snapshot[domain.AlertRule]
	EnabledRules() []domain.AlertRule
	DisabledRules() []domain.AlertRule
	FetchAlertRules(ctx context.Context) ([]domain.AlertRule, error)
	ToggleRule(ctx context.Context, id string) (domain.AlertRule, error)
}

type AlertsHandler struct {
	service AlertsService
}

func NewAlertsHandler(s AlertsService) *AlertsHandler {
	return &AlertsHandler{service: s}
}

// State: ?enabled=true|false
func (h *AlertsHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()

	switch r.URL.Query().Get("enabled") {
	case "true":
		snap.Items = h.service.EnabledRules()
	case "false":
		snap.Items = h.service.DisabledRules()
	}
	snap.Count = len(snap.Items)

	writeJSON(w, http.StatusOK, snap)
}

func (h *AlertsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.FetchAlertRules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// Toggle работает только по закэшированным правилам.
func (h *AlertsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.ToggleRule(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrRuleNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
