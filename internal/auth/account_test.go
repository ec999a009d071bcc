package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[uuid.UUID]*Account

func (m mapStore) FindAccount(_ context.Context, id uuid.UUID) (*Account, error) {
	return m[id], nil
}

type failingStore struct{}

func (failingStore) FindAccount(context.Context, uuid.UUID) (*Account, error) {
	return nil, errors.New("db down")
}

func TestValidateAccount(t *testing.T) {
	active := &Account{ID: uuid.New(), Email: "a@b.co", Role: "customer", Active: true}
	disabled := &Account{ID: uuid.New(), Role: "worker", Active: false}
	noRole := &Account{ID: uuid.New(), Active: true}
	store := mapStore{active.ID: active, disabled.ID: disabled, noRole.ID: noRole}
	ctx := context.Background()

	got, err := ValidateAccount(ctx, store, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "customer", got.Role)

	_, err = ValidateAccount(ctx, store, uuid.Nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = ValidateAccount(ctx, store, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = ValidateAccount(ctx, store, disabled.ID)
	assert.ErrorIs(t, err, ErrAccountInactive)
	_, err = ValidateAccount(ctx, store, noRole.ID)
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = ValidateAccount(ctx, failingStore{}, active.ID)
	assert.EqualError(t, err, "db down")
}
