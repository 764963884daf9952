package device

import "strings"

// Environment is the ordered set of signals a fingerprint is derived from.
type Environment struct {
	UserAgent           Signal `json:"user_agent"`
	Language            Signal `json:"language"`
	Timezone            Signal `json:"timezone"`
	TimezoneOffset      Signal `json:"timezone_offset"`
	ScreenResolution    Signal `json:"screen_resolution"`
	ColorDepth          Signal `json:"color_depth"`
	Viewport            Signal `json:"viewport"`
	Platform            Signal `json:"platform"`
	HardwareConcurrency Signal `json:"hardware_concurrency"`
	DeviceMemory        Signal `json:"device_memory"`
	TouchSupport        Signal `json:"touch_support"`
	Canvas              Signal `json:"canvas"`
	Renderer            Signal `json:"renderer"`
	Fonts               Signal `json:"fonts"`
	Plugins             Signal `json:"plugins"`
	StorageAvailable    Signal `json:"storage_available"`
	CookiesEnabled      Signal `json:"cookies_enabled"`
}

type namedSignal struct {
	name   string
	signal Signal
}

// signals lists the fields in their fixed serialization order.
func (e Environment) signals() []namedSignal {
	return []namedSignal{
		{"userAgent", e.UserAgent},
		{"language", e.Language},
		{"timezone", e.Timezone},
		{"timezoneOffset", e.TimezoneOffset},
		{"screenResolution", e.ScreenResolution},
		{"screenColorDepth", e.ColorDepth},
		{"viewport", e.Viewport},
		{"platform", e.Platform},
		{"hardwareConcurrency", e.HardwareConcurrency},
		{"deviceMemory", e.DeviceMemory},
		{"touchSupport", e.TouchSupport},
		{"canvas", e.Canvas},
		{"webgl", e.Renderer},
		{"fonts", e.Fonts},
		{"plugins", e.Plugins},
		{"storageAvailable", e.StorageAvailable},
		{"cookiesEnabled", e.CookiesEnabled},
	}
}

// Canonical serializes the environment deterministically.
func (e Environment) Canonical() string {
	var b strings.Builder
	for _, s := range e.signals() {
		b.WriteString(s.name)
		b.WriteByte('=')
		b.WriteString(s.signal.canonical())
		b.WriteByte(';')
	}
	return b.String()
}

// AvailableCount reports how many signals were observed.
func (e Environment) AvailableCount() int {
	n := 0
	for _, s := range e.signals() {
		if s.signal.IsAvailable() {
			n++
		}
	}
	return n
}

// Probe observes the current client environment.
type Probe interface {
	Environment() Environment
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() Environment

func (f ProbeFunc) Environment() Environment { return f() }
