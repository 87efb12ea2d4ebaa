package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
)

// DashboardService Описываем, что нам нужно от стора статистики
type DashboardService interface {
	Snapshot() store.DashboardSnapshot
	RefreshStats(ctx context.Context) (*domain.DashboardStats, error)
	FetchStats(ctx context.Context) (*domain.DashboardStats, error)
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func (h *DashboardHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Snapshot())
}

// Refresh учитывает окно свежести, ?force=true идет на бэкенд в любом случае.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := h.service.RefreshStats
	if r.URL.Query().Get("force") == "true" {
		refresh = h.service.FetchStats
	}

	if _, err := refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Snapshot())
}
