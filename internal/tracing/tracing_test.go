package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "homeservice", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "homeservice", "http://127.0.0.1:4318")
	require.NoError(t, err)
	// коллектора нет; shutdown с пустой очередью спанов завершается без ошибки
	assert.NoError(t, shutdown(context.Background()))
}
