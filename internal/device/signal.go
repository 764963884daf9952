package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Signal is one observed characteristic of the client environment.
// The zero value is Unavailable.
type Signal struct {
	value     string
	available bool
}

// Available wraps an observed value.
func Available(v string) Signal {
	return Signal{value: v, available: true}
}

// Unavailable marks a signal whose collector failed or was not reported.
func Unavailable() Signal {
	return Signal{}
}

// Value returns the observed value and whether it is available.
func (s Signal) Value() (string, bool) {
	return s.value, s.available
}

func (s Signal) IsAvailable() bool {
	return s.available
}

// canonical encodes the signal with its tag so that an unavailable signal
// can never collide with any observed string.
func (s Signal) canonical() string {
	if !s.available {
		return "U"
	}
	return "A" + strconv.Itoa(len(s.value)) + ":" + s.value
}

func (s Signal) String() string {
	if !s.available {
		return "unavailable"
	}
	return s.value
}

// MarshalText renders the signal for debugging endpoints.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Collector reads one signal. Any error degrades the signal to Unavailable.
type Collector func() (string, error)

// Collect runs c and converts failures, including panics, into Unavailable.
func Collect(c Collector) (s Signal) {
	if c == nil {
		return Unavailable()
	}
	defer func() {
		if r := recover(); r != nil {
			s = Unavailable()
		}
	}()

	v, err := c()
	if err != nil {
		return Unavailable()
	}
	return Available(v)
}

func intSignal(v *int) Signal {
	if v == nil {
		return Unavailable()
	}
	return Available(strconv.Itoa(*v))
}

func floatSignal(v *float64) Signal {
	if v == nil {
		return Unavailable()
	}
	return Available(strconv.FormatFloat(*v, 'g', -1, 64))
}

func boolSignal(v *bool) Signal {
	if v == nil {
		return Unavailable()
	}
	return Available(strconv.FormatBool(*v))
}

func sizeSignal(w, h *int) Signal {
	if w == nil || h == nil {
		return Unavailable()
	}
	return Available(fmt.Sprintf("%dx%d", *w, *h))
}

func stringSignal(v string) Signal {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unavailable()
	}
	return Available(v)
}
