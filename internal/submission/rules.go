package submission

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

// Rule возвращает текст ошибки или пустую строку.
type Rule func(value string) string

// Rules — правила по имени поля.
type Rules map[string][]Rule

func Required() Rule {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "is required"
		}
		return ""
	}
}

func MinLen(n int) Rule {
	return func(v string) string {
		if utf8.RuneCountInString(v) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

func MaxLen(n int) Rule {
	return func(v string) string {
		if utf8.RuneCountInString(v) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}
		return ""
	}
}

func Email() Rule {
	return func(v string) string {
		if v == "" {
			return ""
		}
		if _, err := mail.ParseAddress(v); err != nil {
			return "is not a valid email"
		}
		return ""
	}
}

// Validate проверяет значения; поля обходятся в алфавитном порядке, возвращается первая ошибка.
func (r Rules) Validate(values map[string]string) error {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		for _, rule := range r[f] {
			if msg := rule(values[f]); msg != "" {
				return &ValidationError{Field: f, Message: msg}
			}
		}
	}
	return nil
}

// Наборы правил для форм.
var (
	SignupRules = Rules{
		"name":     {Required(), MaxLen(150)},
		"email":    {Required(), Email()},
		"password": {Required(), MinLen(8)},
	}
	LoginRules = Rules{
		"email":    {Required(), Email()},
		"password": {Required()},
	}
	PasswordResetRules = Rules{
		"email": {Required(), Email()},
	}
	PasswordResetConfirmRules = Rules{
		"token":    {Required()},
		"password": {Required(), MinLen(8)},
	}
	ProfileRules = Rules{
		"phone":   {MaxLen(32)},
		"address": {MaxLen(255)},
	}
	BookingRules = Rules{
		"workerId":    {Required()},
		"serviceId":   {Required()},
		"description": {MaxLen(2000)},
	}
)
