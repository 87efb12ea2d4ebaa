package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/xdr-console/internal/connectors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку бэкенда в ответ: статус сохраняется,
// сетевой отказ становится 502.
func writeError(w http.ResponseWriter, err error) {
	apiErr := connectors.Classify(err)
	status := connectors.StatusOf(err)
	if status == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Code: apiErr.Code, Message: apiErr.Message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}
