package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/repository"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

func (s *Server) csrf(w http.ResponseWriter, r *http.Request) {
	token, err := newCSRFToken()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     api.CSRFCookie,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.SecureCookies,
	})
	writeJSON(w, http.StatusOK, api.CSRFResponse{Token: token})
}

func (s *Server) publicKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.PublicKeyResponse{PEM: string(s.cfg.PublicKeyPEM)})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r, "name", "email", "password")
	if err != nil {
		writeError(w, r, err)
		return
	}
	allowsCOD, _ := strconv.ParseBool(fields["allowsCod"])

	sess, err := s.cfg.Accounts.Signup(r.Context(), service.SignupInput{
		Email:     fields["email"],
		Password:  fields["password"],
		Name:      fields["name"],
		Phone:     fields["phone"],
		Role:      fields["role"],
		AllowsCOD: allowsCOD,
	})
	if errors.Is(err, service.ErrAlreadyExists) {
		writeJSON(w, http.StatusBadRequest, api.Error{
			Error: "user with this email already exists",
			Field: "email",
			Code:  api.CodeValidation,
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSession(sess))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r, "email", "password")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.cfg.Accounts.Login(r.Context(), fields["email"], fields["password"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

// requestPasswordReset отвечает одинаково для любого адреса.
func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r, "email")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Accounts.RequestPasswordReset(r.Context(), fields["email"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, api.MessageResponse{
		Message: "If the email is registered, a password reset link has been sent.",
	})
}

func (s *Server) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r, "token", "password")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cfg.Accounts.ConfirmPasswordReset(r.Context(), fields["token"], fields["password"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Password has been reset successfully."})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Accounts.Me(r.Context(), mustActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}

// updateProfile — поля профиля приходят в конверте, пустые не меняются.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	fields, err := s.openEnvelope(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	upd := repository.ProfileUpdate{
		Name:    fields["name"],
		Phone:   fields["phone"],
		Address: fields["address"],
	}
	if upd.Latitude, err = floatField(fields, "latitude"); err != nil {
		writeError(w, r, err)
		return
	}
	if upd.Longitude, err = floatField(fields, "longitude"); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.cfg.Accounts.UpdateProfile(r.Context(), mustActor(r), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}

func floatField(fields map[string]string, name string) (*float64, error) {
	v, ok := fields[name]
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, &booking.ValidationError{Field: name, Message: "must be a number"}
	}
	return &f, nil
}
