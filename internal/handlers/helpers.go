package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"cryptopal-backend/internal/models"
	"cryptopal-backend/internal/repository"
	"cryptopal-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *services.ValidationError
	var storageErr *repository.StorageError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.Is(err, services.ErrSessionBusy):
		writeJSON(w, http.StatusConflict, errorResp("SESSION_BUSY", "Another request for this session is in progress", r))
	case errors.As(err, &storageErr):
		log.Error().Err(err).Str("request_id", r.Header.Get("X-Request-ID")).Msg("conversation storage failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("STORAGE_ERROR", "Failed to access conversation history", r))
	default:
		log.Error().Err(err).Str("request_id", r.Header.Get("X-Request-ID")).Msg("unhandled service error")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Internal server error", r))
	}
}
