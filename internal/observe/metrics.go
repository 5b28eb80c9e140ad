// Package observe provides the observability primitives for the parley
// pipeline: OpenTelemetry metrics with a Prometheus exporter bridge.
//
// A package-level default [Metrics] instance ([Default]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all parley metrics.
const meterName = "github.com/arcadian-ai/parley"

// Metrics holds the metric instruments for the conversation pipeline. All
// fields are safe for concurrent use.
type Metrics struct {
	// ASRDuration tracks transcription latency.
	ASRDuration metric.Float64Histogram

	// ChatDuration tracks chat-completion latency (first byte to full
	// response for streaming mode).
	ChatDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// Utterances counts finalised utterances. Attribute:
	//   attribute.String("trigger", "vad"|"manual")
	Utterances metric.Int64Counter

	// SegmentsDiscarded counts buffered segments dropped for being shorter
	// than the minimum speech duration.
	SegmentsDiscarded metric.Int64Counter

	// ServiceErrors counts failed external-service calls. Attributes:
	//   attribute.String("service", ...), attribute.String("kind", ...)
	ServiceErrors metric.Int64Counter

	// PlaybackQueueDepth tracks queued clips awaiting playback. Attribute:
	//   attribute.String("queue", ...)
	PlaybackQueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram boundaries (seconds) sized for the
// voice-loop latencies this pipeline targets.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ASRDuration, err = m.Float64Histogram("parley.asr.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatDuration, err = m.Float64Histogram("parley.chat.duration",
		metric.WithDescription("Latency of chat completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("parley.tts.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("parley.utterances",
		metric.WithDescription("Finalised speech utterances."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDiscarded, err = m.Int64Counter("parley.segments.discarded",
		metric.WithDescription("Speech segments dropped below the minimum duration."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("parley.service.errors",
		metric.WithDescription("Failed external service calls."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackQueueDepth, err = m.Int64UpDownCounter("parley.playback.queue_depth",
		metric.WithDescription("Audio clips queued awaiting playback."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics instance bound to the global
// meter provider. Instrument creation errors leave a usable zero-value
// instance (no-op instruments would require a provider failure, which the
// SDK does not produce in practice).
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordServiceError increments the service error counter with the given
// service and error-kind attributes, guarding against a zero-value Metrics.
func (m *Metrics) RecordServiceError(ctx context.Context, service, kind string) {
	if m == nil || m.ServiceErrors == nil {
		return
	}
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("kind", kind),
		))
}
