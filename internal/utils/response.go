package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/dto"
)

const maxBodyBytes = 1 << 20

// WriteJSONResponse writes a JSON response to the HTTP response writer
func WriteJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes the standard error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, errorMsg, message string) {
	WriteJSONResponse(w, status, dto.ErrorResponse{Error: errorMsg, Message: message})
}

// WriteServiceError maps a service error onto a status code and envelope.
// Unexpected errors are logged and reported without internals.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteErrorResponse(w, http.StatusBadRequest, "Validation failed", verr.Error())
	case errors.Is(err, common.ErrValidation):
		WriteErrorResponse(w, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
	case errors.Is(err, common.ErrForbidden):
		WriteErrorResponse(w, http.StatusForbidden, "Forbidden", "You are not allowed to perform this action")
	case errors.Is(err, common.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, common.ErrAlreadyInvited):
		WriteErrorResponse(w, http.StatusConflict, "Already invited", "This email has already been invited to the plan")
	case errors.Is(err, common.ErrPhaseClosed):
		WriteErrorResponse(w, http.StatusConflict, "Phase closed", "The plan's current phase does not allow this action")
	case errors.Is(err, common.ErrInvalidTransition):
		WriteErrorResponse(w, http.StatusConflict, "Invalid transition", "The plan cannot move to that phase from its current one")
	case errors.Is(err, common.ErrConflict):
		WriteErrorResponse(w, http.StatusConflict, "Conflict", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", "Something went wrong, please retry")
	}
}

// DecodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewValidationError("body", "request body is empty")
		}
		return common.NewValidationError("body", err.Error())
	}
	return nil
}

// PathUUID parses a path parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, common.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

// QueryInt reads an integer query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(name, fmt.Sprintf("must be an integer, got %q", raw))
	}
	return v, nil
}

// QueryBool reads a boolean query parameter, returning false when absent.
func QueryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, common.NewValidationError(name, fmt.Sprintf("must be a boolean, got %q", raw))
	}
	return v, nil
}
