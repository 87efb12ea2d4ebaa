package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/xdr-console/internal/console/notify"
)

type ToastService interface {
	Toasts() []notify.Toast
	Remove(id uint64)
	ClearAll()
}

type ToastHandler struct {
	service ToastService
}

func NewToastHandler(s ToastService) *ToastHandler {
	return &ToastHandler{service: s}
}

func (h *ToastHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Toasts())
}

// Dismiss идемпотентен: отсутствующий id тоже 204.
func (h *ToastHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid toast id", http.StatusBadRequest)
		return
	}
	h.service.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ToastHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.service.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

type FavoritesService interface {
	IDs() []string
	Toggle(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

type FavoritesHandler struct {
	service FavoritesService
}

func NewFavoritesHandler(s FavoritesService) *FavoritesHandler {
	return &FavoritesHandler{service: s}
}

type favoritesResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.service.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, favoritesResponse{IDs: ids, Count: len(ids)})
}

func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	on, err := h.service.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

func (h *FavoritesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
