package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hourline/hourline/pkg/apperror"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidState):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// WriteError writes the specific rule message for domain errors and hides internal ones.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("internal error: %v", err)
		message = "internal server error"
	}
	WriteJSON(w, status, ErrorResponse{Error: message})
}

func WriteBadRequest(w http.ResponseWriter, message string, details string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: details})
}

// DecodeAndValidate reads a JSON body into dst and runs its `validate` struct tags.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.Validation("invalid request body format: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return apperror.Validation("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return apperror.Validation("invalid request: %v", err)
	}
	return nil
}
