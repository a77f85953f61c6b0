package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetupExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "benchmark.Runner.Run")
	span.SetAttributes(attribute.String("benchmark.workload", "noop"))
	span.End()

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "benchmark.Runner.Run")
	assert.Contains(t, out, "noop")
	assert.Contains(t, out, ServiceName)
}

func TestSetupNilWriterIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(nil, "test")
	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupExportsWhenSpanEnds(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "sampler.Sample")
	assert.Zero(t, buf.Len())
	span.End()

	assert.Contains(t, buf.String(), "sampler.Sample", "span must be written before End returns")
}
