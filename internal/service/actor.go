package service

import (
	"github.com/google/uuid"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

// Actor — аутентифицированный пользователь, от имени которого идёт вызов.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (a Actor) IsCustomer() bool { return a.Role == model.RoleCustomer }
func (a Actor) IsWorker() bool   { return a.Role == model.RoleWorker }
func (a Actor) IsAdmin() bool    { return a.Role == model.RoleAdmin }
