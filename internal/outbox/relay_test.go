package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

func newEvents(t *testing.T) repository.EventRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.AutoMigrate(db))
	return repository.NewGormEventRepository(db)
}

func TestRelay_PublishesToKafka(t *testing.T) {
	events := newEvents(t)
	ctx := context.Background()
	bookingID := uuid.New()
	_, err := events.Append(ctx, model.EventTypeBookingCreated, nil, &bookingID, map[string]any{"basePrice": 100})
	require.NoError(t, err)

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Type != string(model.EventTypeBookingCreated) || msg.BookingID == nil || *msg.BookingID != bookingID {
			return errors.New("unexpected message")
		}
		return nil
	})
	pub := NewKafkaPublisherFromProducer(sp)
	defer func() { require.NoError(t, pub.Close()) }()

	relay := NewRelay(events, pub, Config{})
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := events.ListDue(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

type flakyPublisher struct {
	failFor map[string]bool
	sent    []string
}

func (p *flakyPublisher) Publish(_ context.Context, _ string, key, _ []byte) error {
	if p.failFor[string(key)] {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, string(key))
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func TestRelay_FailedEventsAreRescheduled(t *testing.T) {
	events := newEvents(t)
	ctx := context.Background()
	okID, badID := uuid.New(), uuid.New()
	_, err := events.Append(ctx, model.EventTypeBookingAccepted, nil, &okID, nil)
	require.NoError(t, err)
	_, err = events.Append(ctx, model.EventTypeBookingAccepted, nil, &badID, nil)
	require.NoError(t, err)

	pub := &flakyPublisher{failFor: map[string]bool{badID.String(): true}}
	now := time.Now()
	relay := NewRelay(events, pub, Config{MaxTries: 2, RetryBase: time.Minute})
	relay.now = func() time.Time { return now }

	n, err := relay.RunOnce(ctx)
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []string{okID.String()}, pub.sent)

	// отложенное событие не берётся до наступления NextAttemptAt
	due, err := events.ListDue(ctx, now.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = events.ListDue(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "broker down", due[0].LastError)

	delete(pub.failFor, badID.String())
	relay.now = func() time.Time { return now.Add(2 * time.Minute) }
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelay_RetryDelayCapped(t *testing.T) {
	r := NewRelay(nil, LogPublisher{}, Config{RetryBase: time.Second, RetryMax: 10 * time.Second})
	assert.Equal(t, time.Second, r.retryDelay(0))
	assert.Equal(t, 4*time.Second, r.retryDelay(2))
	assert.Equal(t, 10*time.Second, r.retryDelay(20))
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	events := newEvents(t)
	ctx, cancel := context.WithCancel(context.Background())
	relay := NewRelay(events, LogPublisher{}, Config{Interval: 5 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
