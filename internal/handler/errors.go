package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"nimbusdrive/internal/domain"
)

// errorResponse — формат ошибок API, клиент читает поле detail
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := "Internal server error"

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		detail = "Not found"
	case errors.Is(err, domain.ErrNameConflict):
		status = http.StatusConflict
		detail = "An item with this name already exists here"
	case errors.Is(err, domain.ErrInvalidMove):
		status = http.StatusBadRequest
		detail = "Invalid move target"
	case errors.Is(err, domain.ErrInvalidOperation):
		status = http.StatusBadRequest
		detail = err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		detail = "Insufficient permissions"
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusRequestEntityTooLarge
		detail = "Storage quota exceeded"
	case errors.Is(err, domain.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		detail = "Storage is temporarily unavailable"
	}

	if status == http.StatusInternalServerError {
		log.Printf("[API] Internal error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Error encoding response: %v", err)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(errorResponse{Detail: "Unauthorized"})
}
