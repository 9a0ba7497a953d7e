// Package metrics exports flood and session counters through OpenTelemetry.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vovakirdan/ircflood/internal/core"
)

const meterName = "ircflood"

// Observer records flood activity and session lifecycle as OTel counters.
type Observer struct {
	events metric.Int64Counter
	lines  metric.Int64Counter
	bytes  metric.Int64Counter
	active metric.Int64UpDownCounter
	ended  metric.Int64Counter

	kindAttrs map[core.EventKind]metric.AddOption
}

// NewObserver creates an Observer backed by the given MeterProvider.
func NewObserver(mp metric.MeterProvider) (*Observer, error) {
	meter := mp.Meter(meterName)

	events, err := meter.Int64Counter("ircflood.events",
		metric.WithDescription("Number of flood events written, by kind"),
	)
	if err != nil {
		return nil, err
	}
	lines, err := meter.Int64Counter("ircflood.lines",
		metric.WithDescription("Number of IRC lines written"),
	)
	if err != nil {
		return nil, err
	}
	bytes, err := meter.Int64Counter("ircflood.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Number of bytes written to clients"),
	)
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("ircflood.sessions.active",
		metric.WithDescription("Number of sessions currently running"),
	)
	if err != nil {
		return nil, err
	}
	ended, err := meter.Int64Counter("ircflood.sessions.ended",
		metric.WithDescription("Number of sessions ended, by reason"),
	)
	if err != nil {
		return nil, err
	}

	kindAttrs := make(map[core.EventKind]metric.AddOption, len(core.Kinds))
	for _, kind := range core.Kinds {
		kindAttrs[kind] = metric.WithAttributes(attribute.String("kind", kind.String()))
	}

	return &Observer{
		events:    events,
		lines:     lines,
		bytes:     bytes,
		active:    active,
		ended:     ended,
		kindAttrs: kindAttrs,
	}, nil
}

// ObserveEvent counts one written event.
func (o *Observer) ObserveEvent(ctx context.Context, kind core.EventKind) {
	o.events.Add(ctx, 1, o.kindAttrs[kind])
}

// ObserveWrite counts a batch of written lines.
func (o *Observer) ObserveWrite(ctx context.Context, lines, bytes int) {
	o.lines.Add(ctx, int64(lines))
	o.bytes.Add(ctx, int64(bytes))
}

// SessionStarted marks a session as running.
func (o *Observer) SessionStarted(ctx context.Context) {
	o.active.Add(ctx, 1)
}

// SessionEnded marks a session as finished for reason.
func (o *Observer) SessionEnded(ctx context.Context, reason string) {
	o.active.Add(ctx, -1)
	o.ended.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
