package submission

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/booking"
)

// NetworkError — запрос не дошёл до сервера или ответ не прочитан. Можно повторить.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerValidationError — сервер отклонил поле формы.
type ServerValidationError struct {
	Field   string
	Message string
}

func (e *ServerValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationError — форма не прошла локальные правила, запрос не отправлялся.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// AuthorizationError — нет сессии, истёк токен или не совпал CSRF.
type AuthorizationError struct {
	Status int
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized (%d): %s", e.Status, e.Reason)
}

// StatusError — любой другой неуспешный ответ.
type StatusError struct {
	Status int
	Body   api.Error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body.Error)
}

// DecodeError переводит неуспешный ответ сервера в типизированную ошибку.
func DecodeError(resp *http.Response) error {
	var body api.Error
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &NetworkError{Err: err}
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthorizationError{Status: resp.StatusCode, Reason: body.Error}
	case resp.StatusCode == http.StatusBadRequest:
		return &ServerValidationError{Field: body.Field, Message: body.Error}
	case resp.StatusCode == http.StatusConflict && body.Code == api.CodeInvalidTransition:
		return &booking.InvalidTransition{From: body.Status, Reason: body.Error}
	default:
		return &StatusError{Status: resp.StatusCode, Body: body}
	}
}
