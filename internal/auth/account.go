package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Ошибки проверки учётной записи.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is inactive")
)

// Account — то, что нужно знать о пользователе при каждом запросе.
type Account struct {
	ID     uuid.UUID
	Email  string
	Role   string
	Active bool
}

// AccountStore — источник учётных записей. В сервисе это обёртка над БД, в тестах — мок.
type AccountStore interface {
	FindAccount(ctx context.Context, id uuid.UUID) (*Account, error)
}

// ValidateAccount:
//   - проверяет идентификатор;
//   - достаёт учётную запись из хранилища;
//   - отсекает отключённых пользователей и пользователей без роли.
func ValidateAccount(ctx context.Context, store AccountStore, id uuid.UUID) (*Account, error) {
	if id == uuid.Nil {
		return nil, ErrAccountNotFound
	}

	acc, err := store.FindAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	if !acc.Active || acc.Role == "" {
		return nil, ErrAccountInactive
	}
	return acc, nil
}
