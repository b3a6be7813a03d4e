package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/entitlement"
)

// maxBodyBytes bounds JSON request bodies. Logo uploads use their own limit.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// writeServiceError maps entitlement errors onto status codes. Anything
// unrecognised is reported as a 500 with the fallback message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *entitlement.ValidationError
	var unknownErr *entitlement.UnknownToolsError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: validationErr.Fields})
	case errors.As(err, &unknownErr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Unknown tools",
			Details: map[string]string{"tool_ids": unknownErr.Error()},
		})
	case errors.Is(err, entitlement.ErrForbidden):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
	case entitlement.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: notFoundMessage(err)})
	case errors.Is(err, entitlement.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Email already in use"})
	case errors.Is(err, entitlement.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Slug already in use"})
	case errors.Is(err, entitlement.ErrIDTaken):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "ID already in use"})
	case errors.Is(err, entitlement.ErrNoLaunchURL):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Tool has no launch URL"})
	case errors.Is(err, entitlement.ErrLogoStorageDisabled):
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Logo storage is not configured"})
	case errors.Is(err, entitlement.ErrSecretsDisabled):
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Secret storage is not configured"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, entitlement.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, entitlement.ErrOrganizationNotFound):
		return "Organization not found"
	default:
		return "Tool not found"
	}
}
