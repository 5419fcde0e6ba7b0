package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "transfer-core-test", "  ")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer().Start(context.Background(), "coordinator.submit")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
