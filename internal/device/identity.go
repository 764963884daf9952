package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"evalprof/internal/logs"
	"evalprof/internal/metrics"
	"evalprof/internal/store"
)

const (
	// DeviceIDKey is the storage key holding the persisted device id.
	DeviceIDKey = "ipn_device_id"
	// DeviceIDPrefix is prepended to the fingerprint to form a device id.
	DeviceIDPrefix = "device_"
)

// Identity derives and persists the anonymous device id.
type Identity struct {
	logger  *logs.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// NewIdentity creates an Identity. The store is passed per call because
// every client owns its own persistent storage.
func NewIdentity(logger *logs.Logger, metricsRegistry *metrics.Registry) *Identity {
	return &Identity{
		logger:  logger.With("device"),
		metrics: metricsRegistry,
		now:     time.Now,
	}
}

// Fingerprint observes p. It never fails.
func (i *Identity) Fingerprint(p Probe) Fingerprint {
	i.metrics.Inc(metrics.DeviceFingerprintsTotal)
	return Compute(p.Environment(), i.now())
}

// GetOrCreateDeviceID returns the id persisted in st, creating it from a
// fresh fingerprint of p when absent.
//
// Once persisted the id is read back and never recomputed, so it survives
// changes in the environment. A failed write is logged and the fresh id is
// still returned.
func (i *Identity) GetOrCreateDeviceID(ctx context.Context, st store.Store, p Probe) string {
	existing, err := st.Get(ctx, DeviceIDKey)
	switch {
	case err == nil && strings.TrimSpace(existing) != "":
		i.metrics.Inc(metrics.DeviceIDsReusedTotal)
		return existing
	case err != nil && !errors.Is(err, store.ErrNotFound):
		i.logger.Warnf("cannot read device id: %v", err)
	}

	id := DeviceIDPrefix + i.Fingerprint(p).ID
	i.metrics.Inc(metrics.DeviceIDsCreatedTotal)

	if err := st.Set(ctx, DeviceIDKey, id); err != nil {
		i.metrics.Inc(metrics.DeviceIDPersistFailures)
		i.logger.Warnf("cannot persist device id: %v", err)
		return id
	}

	i.logger.Debugf("device id stored: %s", truncate(id, 20))
	return id
}

// NewSessionID returns an id that is unique per call.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
