package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/xdr-console/internal/console/store"
	"github.com/xela07ax/xdr-console/internal/domain"
)

type AssetsService interface {
	Snapshot() store.Snapshot[domain.Asset]
	CompromisedAssets() []domain.Asset
	HealthyAssets() []domain.Asset
	HighRiskAssets() []domain.Asset
	AssetsByDepartment() map[string][]domain.Asset
	FetchAssets(ctx context.Context, f domain.AssetFilter) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id string) (domain.Asset, error)
}

type AssetsHandler struct {
	service AssetsService
}

func NewAssetsHandler(s AssetsService) *AssetsHandler {
	return &AssetsHandler{service: s}
}

// State: ?view=compromised|healthy|high_risk
func (h *AssetsHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()

	switch r.URL.Query().Get("view") {
	case "compromised":
		snap.Items = h.service.CompromisedAssets()
	case "healthy":
		snap.Items = h.service.HealthyAssets()
	case "high_risk":
		snap.Items = h.service.HighRiskAssets()
	}
	snap.Count = len(snap.Items)

	writeJSON(w, http.StatusOK, snap)
}

func (h *AssetsHandler) ByDepartment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.AssetsByDepartment())
}

func (h *AssetsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FetchAssets(r.Context(), domain.AssetFilter{
		Status: domain.AssetStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}
