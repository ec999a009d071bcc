package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*model.User, error)
	// SetPassword меняет пароль, только если текущий хеш равен oldHash;
	// иначе gorm.ErrRecordNotFound.
	SetPassword(ctx context.Context, id uuid.UUID, oldHash, hash, salt string) error
	SetRole(ctx context.Context, userID uuid.UUID, roleCode string) error
	GetRole(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProfileUpdate — непустые поля переписываются, пустые остаются как были.
type ProfileUpdate struct {
	Name      string
	Phone     string
	Address   string
	Latitude  *float64
	Longitude *float64
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// NormalizeEmail приводит адрес к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	// Keep only digits and a leading plus.
	b := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		c := phone[i]
		if (c >= '0' && c <= '9') || (c == '+' && len(b) == 0) {
			b = append(b, c)
		}
	}
	return string(b)
}

func (r *GormUserRepository) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	u.Phone = normalizePhone(u.Phone)
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, p ProfileUpdate) (*model.User, error) {
	updates := map[string]any{}
	if p.Name != "" {
		updates["name"] = strings.TrimSpace(p.Name)
	}
	if p.Phone != "" {
		updates["phone"] = normalizePhone(p.Phone)
	}
	if p.Address != "" {
		updates["address"] = strings.TrimSpace(p.Address)
	}
	if p.Latitude != nil {
		updates["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		updates["longitude"] = *p.Longitude
	}
	if len(updates) == 0 {
		// nothing to update; just return current user
		return r.FindByID(ctx, id)
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *GormUserRepository) SetPassword(ctx context.Context, id uuid.UUID, oldHash, hash, salt string) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND password_hash = ?", id, oldHash).
		Updates(map[string]any{"password_hash": hash, "password_salt": salt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormUserRepository) SetRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	// ensure role exists
	var role model.Role
	if err := r.db.WithContext(ctx).Where("code = ?", roleCode).First(&role).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		role.Code = roleCode
		role.Name = roleCode
		if err := r.db.WithContext(ctx).Create(&role).Error; err != nil {
			return err
		}
	}

	// remove previous roles and set new one (single role policy)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}

	ur := model.UserRole{RoleID: role.ID, UserID: userID}
	return r.db.WithContext(ctx).Create(&ur).Error
}

func (r *GormUserRepository) GetRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var ur model.UserRole
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&ur).Error; err != nil {
		return "", err
	}
	var role model.Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", ur.RoleID).Error; err != nil {
		return "", err
	}
	return role.Code, nil
}
