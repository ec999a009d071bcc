package submission

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/envelope"
)

type fakeServer struct {
	t    *testing.T
	priv *rsa.PrivateKey

	mu         sync.Mutex
	csrfCalls  int
	submits    int
	keys       []string
	lastFields map[string]string
	reply      func(w http.ResponseWriter, fields map[string]string)
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fs := &fakeServer{t: t, priv: priv}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.csrfCalls++
		fs.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: api.CSRFCookie, Value: "tok123", Path: "/"})
		_ = json.NewEncoder(w).Encode(api.CSRFResponse{Token: "tok123"})
	})
	mux.HandleFunc("/api/public-key", func(w http.ResponseWriter, r *http.Request) {
		pemBytes, _ := envelope.EncodePublicKeyPEM(&priv.PublicKey)
		_ = json.NewEncoder(w).Encode(api.PublicKeyResponse{PEM: string(pemBytes)})
	})
	mux.HandleFunc("/api/form", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(api.CSRFCookie)
		if err != nil || c.Value != r.Header.Get(api.CSRFHeader) {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(api.Error{Error: "CSRF token missing or incorrect"})
			return
		}
		var env envelope.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fields, err := envelope.Open(&env, priv)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.Error{Error: "malformed envelope"})
			return
		}
		fs.mu.Lock()
		fs.submits++
		fs.keys = append(fs.keys, env.Key)
		fs.lastFields = fields
		reply := fs.reply
		fs.mu.Unlock()
		if reply != nil {
			reply(w, fields)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": fields["email"]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func newSubmitter(t *testing.T, srv *httptest.Server) *Submitter {
	t.Helper()
	pub, err := FetchPublicKey(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	return New(srv.URL, pub, nil)
}

func TestSubmit_SealsAndSends(t *testing.T) {
	fs, srv := newFakeServer(t)
	s := newSubmitter(t, srv)

	values := map[string]string{"email": "anna@example.com", "password": "password1"}
	var out struct{ Echo string }
	require.NoError(t, s.Submit(context.Background(), Request{Path: "/api/form", Values: values, Rules: LoginRules}, &out))
	assert.Equal(t, "anna@example.com", out.Echo)
	assert.Equal(t, values, fs.lastFields)

	require.NoError(t, s.Submit(context.Background(), Request{Path: "/api/form", Values: values, Rules: LoginRules}, nil))
	require.Len(t, fs.keys, 2)
	assert.NotEqual(t, fs.keys[0], fs.keys[1], "each submission must use a fresh key")
	assert.Equal(t, 1, fs.csrfCalls)
}

func TestSubmit_LocalValidationFailsFast(t *testing.T) {
	fs, srv := newFakeServer(t)
	s := newSubmitter(t, srv)

	err := s.Submit(context.Background(), Request{
		Path:   "/api/form",
		Values: map[string]string{"name": "Anna", "email": "not-an-email", "password": "password1"},
		Rules:  SignupRules,
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.Zero(t, fs.submits)
	assert.Zero(t, fs.csrfCalls)
}

func TestSubmit_EmptyFormNotSent(t *testing.T) {
	fs, srv := newFakeServer(t)
	s := newSubmitter(t, srv)

	err := s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{}, Rules: ProfileRules}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "form", verr.Field)
	assert.Zero(t, fs.submits)
	assert.Zero(t, fs.csrfCalls)
}

func TestSubmit_ServerValidationError(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.reply = func(w http.ResponseWriter, _ map[string]string) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.Error{Error: "user with this email already exists", Field: "email", Code: api.CodeValidation})
	}
	s := newSubmitter(t, srv)

	err := s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{"email": "a@b.co"}}, nil)
	var sv *ServerValidationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "email", sv.Field)
}

func TestSubmit_InvalidTransition(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.reply = func(w http.ResponseWriter, _ map[string]string) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.Error{Error: "cancellation period expired", Code: api.CodeInvalidTransition, Status: booking.StatusAccepted})
	}
	s := newSubmitter(t, srv)

	err := s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{}}, nil)
	var it *booking.InvalidTransition
	require.ErrorAs(t, err, &it)
	assert.Equal(t, booking.StatusAccepted, it.From)
}

func TestSubmit_AuthorizationResetsCSRF(t *testing.T) {
	fs, srv := newFakeServer(t)
	s := newSubmitter(t, srv)
	s.csrf = "stale"

	err := s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{}}, nil)
	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusForbidden, aerr.Status)

	// следующий вызов заново получает токен
	require.NoError(t, s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{}}, nil))
	assert.Equal(t, 1, fs.csrfCalls)
}

func TestSubmit_NetworkError(t *testing.T) {
	_, srv := newFakeServer(t)
	s := newSubmitter(t, srv)
	srv.Close()

	err := s.Submit(context.Background(), Request{Path: "/api/form", Values: map[string]string{}}, nil)
	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr), "err = %v", err)
}

func TestRules_Validate(t *testing.T) {
	err := SignupRules.Validate(map[string]string{"name": "", "email": "", "password": ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	err = SignupRules.Validate(map[string]string{"name": "Anna", "email": "a@b.co", "password": "short"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	assert.NoError(t, SignupRules.Validate(map[string]string{"name": "Anna", "email": "a@b.co", "password": "password1"}))
}
