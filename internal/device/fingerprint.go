package device

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a weak, best-effort proxy for device identity.
//
// The same environment always yields the same ID, but IDs are not unique
// across devices and change whenever any signal changes (browser update,
// new font, resized window). It must not be used for authentication.
type Fingerprint struct {
	ID          string    `json:"id"`
	CollectedAt time.Time `json:"collected_at"`
}

// ComputeFingerprint observes p and hashes the result. It never fails.
func ComputeFingerprint(p Probe) Fingerprint {
	return Compute(p.Environment(), time.Now())
}

// Compute hashes env and stamps the result with at.
func Compute(env Environment, at time.Time) Fingerprint {
	return Fingerprint{
		ID:          hash(env.Canonical()),
		CollectedAt: at,
	}
}

// hash is a fast non-cryptographic digest rendered in base 36.
func hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 36)
}

// hashList digests a set of names independent of their order.
func hashList(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return hash(strings.Join(sorted, ","))
}
