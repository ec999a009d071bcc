package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/auth"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

// AccountService — регистрация, вход и профиль.
type AccountService struct {
	store    *repository.Store
	tokens   *auth.Issuer
	notifier ResetNotifier
	resetTTL time.Duration
}

type AccountOption func(*AccountService)

// WithResetNotifier задаёт доставку токенов сброса пароля (по умолчанию — в лог).
func WithResetNotifier(n ResetNotifier) AccountOption {
	return func(s *AccountService) { s.notifier = n }
}

func WithResetTTL(d time.Duration) AccountOption {
	return func(s *AccountService) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

func NewAccountService(store *repository.Store, tokens *auth.Issuer, opts ...AccountOption) *AccountService {
	s := &AccountService{store: store, tokens: tokens, notifier: LogResetNotifier{}, resetTTL: DefaultResetTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SignupInput struct {
	Email     string
	Password  string
	Name      string
	Phone     string
	Role      string
	AllowsCOD bool
}

type Session struct {
	Token string
	User  *model.User
	Role  string
}

type Profile struct {
	User            *model.User
	Role            string
	ProfileComplete bool
	Worker          *model.Worker
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := repository.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalidArg("email is invalid")
	}
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	if in.Role != model.RoleCustomer && in.Role != model.RoleWorker {
		return nil, invalidArg("role must be customer or worker")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidArg("name is required")
	}

	hash, salt, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, invalidArg("password must be at least %d characters", auth.MinPasswordLen)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		Name:         name,
		Phone:        in.Phone,
		PasswordHash: hash,
		PasswordSalt: salt,
		IsActive:     true,
	}
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.FindByEmail(ctx, email); err == nil {
			return fmt.Errorf("email %s: %w", email, ErrAlreadyExists)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find user: %w", err)
		}

		if err := tx.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Users.SetRole(ctx, u.ID, in.Role); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		if in.Role == model.RoleWorker {
			w := &model.Worker{
				UserID:      u.ID,
				DisplayName: name,
				IsAvailable: true,
				AllowsCOD:   in.AllowsCOD,
			}
			if err := tx.Workers.Create(ctx, w); err != nil {
				return fmt.Errorf("create worker: %w", err)
			}
		}
		_, err := tx.Events.Append(ctx, model.EventTypeUserRegistered, &u.ID, nil, map[string]any{"role": in.Role})
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.issue(u, in.Role)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	ok, err := auth.VerifyPassword(password, u.PasswordSalt, u.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	role, err := s.store.Users.GetRole(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return s.issue(u, role)
}

func (s *AccountService) issue(u *model.User, role string) (*Session, error) {
	token, err := s.tokens.CreateAccessToken(u.ID, role, u.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: u, Role: role}, nil
}

// Authenticate разбирает токен сессии в Actor и сверяет учётную запись с БД:
// отключённый пользователь теряет доступ, даже если токен ещё жив.
func (s *AccountService) Authenticate(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.ParseValidate(token)
	if err != nil {
		return Actor{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return Actor{}, auth.ErrInvalidToken
	}
	acc, err := auth.ValidateAccount(ctx, accountStore{s.store}, id)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) || errors.Is(err, auth.ErrAccountInactive) {
			return Actor{}, fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
		}
		return Actor{}, err
	}
	return Actor{UserID: acc.ID, Email: acc.Email, Role: acc.Role}, nil
}

type accountStore struct{ store *repository.Store }

func (a accountStore) FindAccount(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	u, err := a.store.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	role, err := a.store.Users.GetRole(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &auth.Account{ID: u.ID, Email: u.Email, Role: role, Active: u.IsActive}, nil
}

func (s *AccountService) Me(ctx context.Context, actor Actor) (*Profile, error) {
	u, err := s.store.Users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound("user", err)
	}
	role, _ := s.store.Users.GetRole(ctx, u.ID) // роль может отсутствовать

	p := &Profile{User: u, Role: role, ProfileComplete: u.ProfileComplete()}
	if role == model.RoleWorker {
		if w, err := s.store.Workers.GetByUserID(ctx, u.ID); err == nil {
			p.Worker = w
		}
	}
	return p, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, actor Actor, upd repository.ProfileUpdate) (*Profile, error) {
	if upd.Latitude != nil && (*upd.Latitude < -90 || *upd.Latitude > 90) {
		return nil, invalidArg("latitude is out of range")
	}
	if upd.Longitude != nil && (*upd.Longitude < -180 || *upd.Longitude > 180) {
		return nil, invalidArg("longitude is out of range")
	}
	if _, err := s.store.Users.UpdateProfile(ctx, actor.UserID, upd); err != nil {
		return nil, notFound("user", err)
	}
	return s.Me(ctx, actor)
}
