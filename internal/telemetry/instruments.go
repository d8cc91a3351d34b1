package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/joao-fontenele/ewaste-funnel"

// Outcomes recorded for payment notifications.
const (
	OutcomeVerified = "verified"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Instruments holds the funnel's business counters. A nil *Instruments
// records nothing.
type Instruments struct {
	ordersCreated metric.Int64Counter
	itnReceived   metric.Int64Counter
}

func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(instrumentationName)

	ordersCreated, err := meter.Int64Counter("funnel.orders.created",
		metric.WithDescription("Orders persisted, by kind"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	itnReceived, err := meter.Int64Counter("funnel.payfast.itn.received",
		metric.WithDescription("PayFast notifications received, by verification outcome"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{ordersCreated: ordersCreated, itnReceived: itnReceived}, nil
}

func (i *Instruments) OrderCreated(ctx context.Context, kind string) {
	if i == nil {
		return
	}
	i.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (i *Instruments) NotificationReceived(ctx context.Context, outcome string) {
	if i == nil {
		return
	}
	i.itnReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
