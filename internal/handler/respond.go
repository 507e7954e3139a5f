package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError renders a classified error as a JSON body with its mapped
// status. Server-side failures keep the cause in a details field; everything
// unclassified becomes a plain 500.
func respondError(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		slog.Error("unclassified error", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
		return
	}

	body := map[string]any{"error": e.Message}
	if e.Err != nil {
		body["details"] = e.Err.Error()
	}
	status := e.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	respondJSON(w, status, body)
}
