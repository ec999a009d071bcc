package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/auth"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/envelope"
	"github.com/Leganyst/homeservice-platform/internal/gateway"
	"github.com/Leganyst/homeservice-platform/internal/repository"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError переводит ошибки домена и сервисов в HTTP-ответ. Единственное место такого отображения.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, api.Error) {
	var (
		transition *booking.InvalidTransition
		validation *booking.ValidationError
		missing    *envelope.MissingFieldError
		crypto     *envelope.CryptoError
	)

	switch {
	case errors.As(err, &transition):
		return http.StatusConflict, api.Error{
			Error:  transition.Error(),
			Code:   api.CodeInvalidTransition,
			Status: transition.From,
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, api.Error{Error: validation.Message, Field: validation.Field, Code: api.CodeValidation}
	case errors.As(err, &missing):
		return http.StatusBadRequest, api.Error{Error: "is required", Field: missing.Field, Code: api.CodeValidation}
	case errors.As(err, &crypto):
		return http.StatusBadRequest, api.Error{Error: "malformed envelope", Code: api.CodeValidation}
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, booking.ErrOrderMismatch),
		errors.Is(err, booking.ErrSignatureMismatch):
		return http.StatusBadRequest, api.Error{Error: err.Error(), Code: api.CodeValidation}
	case errors.Is(err, service.ErrProfileIncomplete):
		return http.StatusBadRequest, api.Error{Error: err.Error(), Field: "profile", Code: api.CodeValidation}
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest, api.Error{Error: err.Error(), Field: "token", Code: api.CodeValidation}
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, api.Error{Error: err.Error(), Code: api.CodeUnauthorized}
	case errors.Is(err, service.ErrForbidden), errors.Is(err, booking.ErrWrongWorker):
		return http.StatusForbidden, api.Error{Error: err.Error(), Code: api.CodeForbidden}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, api.Error{Error: err.Error(), Code: api.CodeNotFound}
	case errors.Is(err, service.ErrAlreadyExists), errors.Is(err, repository.ErrConcurrencyConflict):
		return http.StatusConflict, api.Error{Error: err.Error(), Code: api.CodeConflict}
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, api.Error{Error: "payment gateway unavailable", Code: api.CodeUnavailable}
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway, api.Error{Error: err.Error(), Code: api.CodeUnavailable}
	default:
		return http.StatusInternalServerError, api.Error{Error: "internal error", Code: api.CodeInternal}
	}
}
