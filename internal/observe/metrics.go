// Package observe provides the OpenTelemetry metrics for mvxplay and
// mvx-serve. Instruments are recorded through the OTel Metrics API; a
// Prometheus exporter bridge is available via [InitProvider] so they can be
// scraped from /metrics. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mvxplay/mvxplay-go/pkg/stream"
)

// meterName is the instrumentation scope name used for all mvxplay metrics.
const meterName = "github.com/mvxplay/mvxplay-go"

// Metrics holds the synchronous instruments and the meter used for
// observable stream instruments. All fields are safe for concurrent use.
type Metrics struct {
	meter metric.Meter

	// --- Player ---

	// StreamOpens counts opened streams. Use with attribute:
	//   attribute.String("source", ...)
	StreamOpens metric.Int64Counter

	// StreamErrors counts errors reported by streams.
	StreamErrors metric.Int64Counter

	// Seeks counts seek requests.
	Seeks metric.Int64Counter

	// --- Server ---

	// ActiveSessions tracks the number of connected clients.
	ActiveSessions metric.Int64UpDownCounter

	// FramesSent counts frames written to clients.
	FramesSent metric.Int64Counter

	// SessionDuration tracks how long clients stay connected.
	SessionDuration metric.Float64Histogram

	// stream observables
	queued        metric.Float64ObservableGauge
	tracked       metric.Int64ObservableGauge
	framesRead    metric.Int64ObservableCounter
	framesPlayed  metric.Int64ObservableCounter
	framesSkipped metric.Int64ObservableCounter
	overflowed    metric.Int64ObservableCounter
	underruns     metric.Int64ObservableCounter
	poolSlots     metric.Int64ObservableGauge
	poolLent      metric.Int64ObservableGauge
}

// sessionBuckets defines histogram bucket boundaries (in seconds) for
// client session lengths.
var sessionBuckets = []float64{
	1, 5, 15, 30, 60, 300, 900, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Counters.
	if met.StreamOpens, err = m.Int64Counter("mvx.stream.opens",
		metric.WithDescription("Total streams opened by source kind."),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("mvx.stream.errors",
		metric.WithDescription("Total errors reported by streams."),
	); err != nil {
		return nil, err
	}
	if met.Seeks, err = m.Int64Counter("mvx.stream.seeks",
		metric.WithDescription("Total seek requests."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("mvx.server.frames_sent",
		metric.WithDescription("Total frames written to clients."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("mvx.server.active_sessions",
		metric.WithDescription("Number of connected clients."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("mvx.server.session.duration",
		metric.WithDescription("Length of client sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Observables, fed by ObserveStream.
	if met.queued, err = m.Float64ObservableGauge("mvx.stream.queued_audio",
		metric.WithDescription("Audio waiting in the player queue."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.tracked, err = m.Int64ObservableGauge("mvx.stream.tracked_frames",
		metric.WithDescription("Frames paired with queued audio."),
	); err != nil {
		return nil, err
	}
	if met.framesRead, err = m.Int64ObservableCounter("mvx.stream.frames_read",
		metric.WithDescription("Frames read from the source."),
	); err != nil {
		return nil, err
	}
	if met.framesPlayed, err = m.Int64ObservableCounter("mvx.stream.frames_played",
		metric.WithDescription("Frames whose audio started playing."),
	); err != nil {
		return nil, err
	}
	if met.framesSkipped, err = m.Int64ObservableCounter("mvx.stream.frames_skipped",
		metric.WithDescription("Frames whose audio could not be used."),
	); err != nil {
		return nil, err
	}
	if met.overflowed, err = m.Int64ObservableCounter("mvx.player.overflowed",
		metric.WithDescription("Chunks dropped because the player queue was full."),
	); err != nil {
		return nil, err
	}
	if met.underruns, err = m.Int64ObservableCounter("mvx.player.underruns",
		metric.WithDescription("Render calls that ran out of queued audio."),
	); err != nil {
		return nil, err
	}
	if met.poolSlots, err = m.Int64ObservableGauge("mvx.pool.slots",
		metric.WithDescription("Chunks owned by the pool."),
	); err != nil {
		return nil, err
	}
	if met.poolLent, err = m.Int64ObservableGauge("mvx.pool.lent",
		metric.WithDescription("Chunks currently lent out."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// StatsSource is anything that reports stream statistics, normally a
// *stream.Stream.
type StatsSource interface {
	Stats() stream.Stats
}

// ObserveStream reports s's statistics on every collection until the
// returned registration is unregistered.
func (m *Metrics) ObserveStream(s StatsSource) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := s.Stats()
		attrs := metric.WithAttributes(attribute.String("stream_id", st.ID))

		o.ObserveFloat64(m.queued, st.Queued.Seconds(), attrs)
		o.ObserveInt64(m.tracked, int64(st.Tracked), attrs)
		o.ObserveInt64(m.framesRead, st.FramesRead, attrs)
		o.ObserveInt64(m.framesPlayed, st.FramesPlayed, attrs)
		o.ObserveInt64(m.framesSkipped, st.FramesSkipped+st.FramesSilent, attrs)
		o.ObserveInt64(m.overflowed, st.Player.Overflowed, attrs)
		o.ObserveInt64(m.underruns, st.Player.Underruns, attrs)
		o.ObserveInt64(m.poolSlots, int64(st.Pool.Slots))
		o.ObserveInt64(m.poolLent, int64(st.Pool.Lent))
		return nil
	},
		m.queued, m.tracked, m.framesRead, m.framesPlayed, m.framesSkipped,
		m.overflowed, m.underruns, m.poolSlots, m.poolLent,
	)
}

// RecordStreamOpen is a convenience method that records a stream open with
// the source kind attribute.
func (m *Metrics) RecordStreamOpen(ctx context.Context, source string) {
	m.StreamOpens.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordFramesSent is a convenience method that records frames written to a
// client session.
func (m *Metrics) RecordFramesSent(ctx context.Context, session string, n int64) {
	m.FramesSent.Add(ctx, n,
		metric.WithAttributes(attribute.String("session_id", session)),
	)
}
