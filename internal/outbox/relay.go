// Package outbox переносит события аудита из таблицы events в Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

// Message — формат события в топике.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	UserID    *uuid.UUID      `json:"userId,omitempty"`
	BookingID *uuid.UUID      `json:"bookingId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type Config struct {
	Topic     string
	Interval  time.Duration
	BatchSize int
	// Попыток отправки одного события за проход.
	MaxTries uint
	// Задержка до следующего прохода растёт от RetryBase до RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "booking-events"
	}
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 5 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 10 * time.Minute
	}
	return c
}

type Relay struct {
	events repository.EventRepository
	pub    Publisher
	cfg    Config
	now    func() time.Time
}

func NewRelay(events repository.EventRepository, pub Publisher, cfg Config) *Relay {
	return &Relay{events: events, pub: pub, cfg: cfg.withDefaults(), now: time.Now}
}

// Run крутит RunOnce по таймеру до отмены ctx.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		if n, err := r.RunOnce(ctx); err != nil {
			log.Printf("outbox: published %d, errors: %v", n, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce отправляет одну пачку событий. Неотправленные откладываются
// с растущей задержкой; ошибки по всем событиям собираются вместе.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	due, err := r.events.ListDue(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due events: %w", err)
	}

	var result *multierror.Error
	published := 0
	for i := range due {
		ev := &due[i]
		if err := r.publish(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			next := r.now().Add(r.retryDelay(ev.Attempts))
			if markErr := r.events.MarkFailed(ctx, ev.ID, next, err.Error()); markErr != nil {
				result = multierror.Append(result, fmt.Errorf("mark event %s failed: %w", ev.ID, markErr))
			}
			result = multierror.Append(result, fmt.Errorf("publish event %s: %w", ev.ID, err))
			continue
		}
		if err := r.events.MarkPublished(ctx, ev.ID, r.now()); err != nil {
			result = multierror.Append(result, fmt.Errorf("mark event %s published: %w", ev.ID, err))
			continue
		}
		published++
	}
	return published, result.ErrorOrNil()
}

func (r *Relay) publish(ctx context.Context, ev *model.Event) error {
	value, err := json.Marshal(Message{
		ID:        ev.ID,
		Type:      string(ev.EventType),
		CreatedAt: ev.CreatedAt,
		UserID:    ev.UserID,
		BookingID: ev.BookingID,
		Payload:   json.RawMessage(ev.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := ev.ID.String()
	if ev.BookingID != nil {
		key = ev.BookingID.String()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.pub.Publish(ctx, r.cfg.Topic, []byte(key), value)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.cfg.MaxTries))
	return err
}

// retryDelay — RetryBase * 2^attempts, не больше RetryMax.
func (r *Relay) retryDelay(attempts int) time.Duration {
	d := r.cfg.RetryBase
	for i := 0; i < attempts && d < r.cfg.RetryMax; i++ {
		d *= 2
	}
	if d > r.cfg.RetryMax {
		d = r.cfg.RetryMax
	}
	return d
}
