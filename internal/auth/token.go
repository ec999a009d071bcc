package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Назначение токена. У сессионного оно пустое.
const PurposePasswordReset = "password_reset"

type Claims struct {
	Sub     string `json:"sub"`
	Role    string `json:"role"`
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	// Stamp — отпечаток хеша пароля на момент выпуска токена сброса.
	Stamp string `json:"stamp,omitempty"`
	jwt.RegisteredClaims
}

// UserID разбирает Sub.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Sub)
}

// Issuer выпускает и проверяет сессионные токены (HS256).
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) CreateAccessToken(userID uuid.UUID, role, email string) (string, error) {
	now := i.now()
	claims := Claims{
		Sub:   userID.String(),
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseValidate принимает только сессионные токены.
func (i *Issuer) ParseValidate(tokenStr string) (*Claims, error) {
	c, err := i.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// CreateResetToken выпускает токен сброса пароля. Токен привязан к текущему
// хешу пароля: после смены пароля он перестаёт подходить.
func (i *Issuer) CreateResetToken(userID uuid.UUID, passwordHash string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := Claims{
		Sub:     userID.String(),
		Purpose: PurposePasswordReset,
		Stamp:   PasswordStamp(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseResetToken проверяет подпись, срок и назначение токена сброса.
func (i *Issuer) ParseResetToken(tokenStr string) (*Claims, error) {
	c, err := i.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != PurposePasswordReset || c.Stamp == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// PasswordStamp — короткий отпечаток хеша пароля.
func PasswordStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func (i *Issuer) parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}
