package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/auth"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

// DefaultResetTTL — срок жизни токена сброса пароля.
const DefaultResetTTL = time.Hour

// ResetNotifier доставляет пользователю токен сброса пароля.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expires time.Time) error
}

// LogResetNotifier пишет токен в лог. Используется, пока нет почтовой доставки.
type LogResetNotifier struct{}

func (LogResetNotifier) SendPasswordReset(_ context.Context, email, token string, expires time.Time) error {
	log.Printf("password reset for %s (expires %s): %s", email, expires.Format(time.RFC3339), token)
	return nil
}

// RequestPasswordReset выпускает токен сброса и передаёт его notifier-у.
// Для неизвестного или отключённого адреса молча ничего не делает,
// чтобы ответ не выдавал, зарегистрирован ли email.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return invalidArg("email is invalid")
	}

	u, err := s.store.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !u.IsActive {
		return nil
	}

	token, exp, err := s.tokens.CreateResetToken(u.ID, u.PasswordHash, s.resetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, u.Email, token, exp); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	return nil
}

// ConfirmPasswordReset ставит новый пароль по токену сброса. Токен одноразовый:
// он привязан к старому хешу пароля.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	claims, err := s.tokens.ParseResetToken(strings.TrimSpace(token))
	if err != nil {
		return ErrInvalidResetToken
	}
	id, err := claims.UserID()
	if err != nil {
		return ErrInvalidResetToken
	}

	hash, salt, err := auth.HashPassword(strings.TrimSpace(password))
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return invalidArg("password must be at least %d characters", auth.MinPasswordLen)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		u, err := tx.Users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("find user: %w", err)
		}
		if !u.IsActive || auth.PasswordStamp(u.PasswordHash) != claims.Stamp {
			return ErrInvalidResetToken
		}
		if err := tx.Users.SetPassword(ctx, u.ID, u.PasswordHash, hash, salt); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("set password: %w", err)
		}
		_, err = tx.Events.Append(ctx, model.EventTypePasswordReset, &u.ID, nil, map[string]any{})
		return err
	})
}
