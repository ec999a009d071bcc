package booking

import (
	"errors"
	"fmt"
)

// InvalidTransition — событие пришло вне своего guard'а. Состояние заказа не изменено.
type InvalidTransition struct {
	From   Status
	Event  Event
	Reason string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition %s from %s: %s", e.Event, e.From, e.Reason)
}

// ValidationError — некорректный аргумент перехода (позиция тарифа, оценка и т.п.).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	ErrWrongWorker       = errors.New("booking is assigned to another worker")
	ErrOrderMismatch     = errors.New("payment does not match the booking order")
	ErrSignatureMismatch = errors.New("payment signature verification failed")
)

func invalid(b *Booking, ev Event, reason string) error {
	return &InvalidTransition{From: b.Status, Event: ev, Reason: reason}
}

// IsInvalidTransition — удобная проверка для слоёв выше.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransition
	return errors.As(err, &it)
}
