package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "memsched-test",
		SamplingRate: 1,
		Writer:       &buf,
	})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "stress.mpmc", attribute.Int("producers", 4))
	_, child := StartSpan(ctx, "stress.mpmc.drain")
	EndSpan(child, nil)
	EndSpan(span, errors.New("lost item"))

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "stress.mpmc")
	assert.Contains(t, out, "stress.mpmc.drain")
	assert.Contains(t, out, "lost item")
	assert.Contains(t, out, "producers")
}

func TestTracingNeverSample(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{ServiceName: "memsched-test", Writer: &buf})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "dropped")
	EndSpan(span, nil)

	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}
