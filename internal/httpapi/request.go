package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Leganyst/homeservice-platform/internal/envelope"
	"github.com/Leganyst/homeservice-platform/internal/service"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", service.ErrInvalidArgument)
	}
	return nil
}

// openEnvelope читает конверт из тела и расшифровывает его поля.
func (s *Server) openEnvelope(w http.ResponseWriter, r *http.Request, required ...string) (map[string]string, error) {
	var env envelope.Envelope
	if err := decodeJSON(w, r, &env); err != nil {
		return nil, err
	}
	return envelope.OpenFields(&env, s.cfg.PrivateKey, required...)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", service.ErrInvalidArgument, name)
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustActor(r *http.Request) service.Actor {
	a, _ := actorFrom(r.Context())
	return a
}
