package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter    = errors.New("nil meter")
	ErrNilRegistry = errors.New("nil metrics registry")
)

// gauges can go down and are exported as observable gauges instead of counters.
var gauges = map[MetricKey]bool{
	RateLimitKeys: true,
}

// OTelBridge publishes registry counters through an OpenTelemetry meter.
type OTelBridge struct {
	registration metric.Registration
}

// NewOTelBridge registers one observable instrument per predefined key.
// Values are read from the registry on every collection.
func NewOTelBridge(meter metric.Meter, reg *Registry) (*OTelBridge, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}

	type observed struct {
		key MetricKey
		ins metric.Int64Observable
	}
	instruments := make([]observed, 0, len(Keys))
	observables := make([]metric.Observable, 0, len(Keys))

	for _, key := range Keys {
		var (
			ins metric.Int64Observable
			err error
		)
		if gauges[key] {
			ins, err = meter.Int64ObservableGauge(string(key))
		} else {
			ins, err = meter.Int64ObservableCounter(string(key))
		}
		if err != nil {
			return nil, fmt.Errorf("create instrument %s: %w", key, err)
		}
		instruments = append(instruments, observed{key: key, ins: ins})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := reg.Snapshot()
		for _, in := range instruments {
			o.ObserveInt64(in.ins, snap[string(in.key)])
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	return &OTelBridge{registration: registration}, nil
}

// Close unregisters the collection callback.
func (b *OTelBridge) Close() error {
	if b == nil || b.registration == nil {
		return nil
	}
	return b.registration.Unregister()
}
