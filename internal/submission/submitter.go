// Package submission отправляет формы с конфиденциальными полями: проверка
// правил, запечатывание в конверт и POST с CSRF-заголовком.
package submission

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/envelope"
)

const defaultTimeout = 15 * time.Second

// Submitter — клиент сессии: держит cookie, CSRF-токен и публичный ключ сервера.
// Безопасен для одновременного использования.
type Submitter struct {
	baseURL string
	pub     *rsa.PublicKey
	hc      *http.Client

	mu   sync.Mutex
	csrf string
}

// New создаёт Submitter. hc == nil — свой клиент с cookie jar.
func New(baseURL string, pub *rsa.PublicKey, hc *http.Client) *Submitter {
	if hc == nil {
		jar, _ := cookiejar.New(nil)
		hc = &http.Client{Timeout: defaultTimeout, Jar: jar}
	}
	return &Submitter{baseURL: strings.TrimRight(baseURL, "/"), pub: pub, hc: hc}
}

// FetchPublicKey забирает публичный ключ сервера для конвертов.
func FetchPublicKey(ctx context.Context, hc *http.Client, baseURL string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/public-key", nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, DecodeError(resp)
	}
	var out api.PublicKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &NetworkError{Err: err}
	}
	return envelope.ParsePublicKeyPEM([]byte(out.PEM))
}

// Request — одна отправка формы.
type Request struct {
	Method string
	Path   string
	Values map[string]string
	Rules  Rules
	// Token — bearer-токен сессии, пустой для входа и регистрации.
	Token string
}

// Submit проверяет значения, запечатывает их свежим ключом и отправляет.
// Повторов нет: каждый вызов — новый конверт.
func (s *Submitter) Submit(ctx context.Context, req Request, out any) error {
	if err := req.Rules.Validate(req.Values); err != nil {
		return err
	}
	if len(req.Values) == 0 {
		return &ValidationError{Field: "form", Message: "nothing to submit"}
	}
	env, err := envelope.Seal(req.Values, s.pub)
	if err != nil {
		return err
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	return s.Do(ctx, method, req.Path, req.Token, env, out)
}

// Do выполняет JSON-запрос. Для изменяющих методов добавляет CSRF-заголовок,
// при необходимости сначала получив cookie.
func (s *Submitter) Do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if unsafeMethod(method) {
		csrf, err := s.CSRFToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(api.CSRFHeader, csrf)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := DecodeError(resp)
		if resp.StatusCode == http.StatusForbidden {
			s.resetCSRF()
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// CSRFToken возвращает токен, полученный от GET /api/csrf; cookie сохраняет jar клиента.
func (s *Submitter) CSRFToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csrf != "" {
		return s.csrf, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/csrf", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", DecodeError(resp)
	}
	var out api.CSRFResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &NetworkError{Err: err}
	}
	if out.Token == "" {
		return "", &AuthorizationError{Status: resp.StatusCode, Reason: "empty csrf token"}
	}
	s.csrf = out.Token
	return s.csrf, nil
}

func (s *Submitter) resetCSRF() {
	s.mu.Lock()
	s.csrf = ""
	s.mu.Unlock()
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
