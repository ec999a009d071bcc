package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/homeservice-platform/internal/booking"
)

var _ booking.SignatureVerifier = (*Client)(nil)

func TestClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(15000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "b-1", req.Notes["booking_id"])

		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: req.Amount, Currency: req.Currency, Status: "created"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", KeyID: "key_id", KeySecret: "key_secret"})
	order, err := c.CreateOrder(context.Background(), OrderRequest{
		Amount:         15000,
		PaymentCapture: 1,
		Notes:          map[string]string{"booking_id": "b-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
}

func TestClient_CreateOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad amount"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 100})
	assert.ErrorIs(t, err, ErrRejected)

	_, err = c.CreateOrder(context.Background(), OrderRequest{Amount: 0})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	for i := 0; i < 5; i++ {
		_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 100})
		require.True(t, errors.Is(err, ErrUnavailable), "attempt %d: %v", i, err)
	}

	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 100})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load(), "open breaker must not reach the gateway")
}

func TestVerifySignature(t *testing.T) {
	c := New(Config{KeySecret: "s3cret"})
	sig := Sign("s3cret", "order_1", "pay_1")

	assert.Len(t, sig, 64)
	assert.True(t, c.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_1", Sign("other", "order_1", "pay_1")))
}
