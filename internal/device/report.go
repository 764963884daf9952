package device

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// ClientReport carries the signals only the browser can observe. The SPA
// posts it as JSON; a nil field means the collector failed client-side.
type ClientReport struct {
	Language            string   `json:"language,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	TimezoneOffset      *int     `json:"timezone_offset,omitempty"`
	ScreenWidth         *int     `json:"screen_width,omitempty"`
	ScreenHeight        *int     `json:"screen_height,omitempty"`
	ColorDepth          *int     `json:"color_depth,omitempty"`
	ViewportWidth       *int     `json:"viewport_width,omitempty"`
	ViewportHeight      *int     `json:"viewport_height,omitempty"`
	Platform            string   `json:"platform,omitempty"`
	HardwareConcurrency *int     `json:"hardware_concurrency,omitempty"`
	DeviceMemory        *float64 `json:"device_memory,omitempty"`
	TouchPoints         *int     `json:"touch_points,omitempty"`
	CanvasData          string   `json:"canvas_data,omitempty"`
	RendererVendor      string   `json:"renderer_vendor,omitempty"`
	RendererName        string   `json:"renderer_name,omitempty"`
	Fonts               []string `json:"fonts,omitempty"`
	Plugins             []string `json:"plugins,omitempty"`
	StorageAvailable    *bool    `json:"storage_available,omitempty"`
	CookiesEnabled      *bool    `json:"cookies_enabled,omitempty"`
}

var errNotReported = errors.New("signal not reported")

// RequestProbe combines HTTP request headers with a client report.
type RequestProbe struct {
	Request *http.Request
	Report  ClientReport
}

// NewRequestProbe builds a probe for r. report may be nil.
func NewRequestProbe(r *http.Request, report *ClientReport) *RequestProbe {
	p := &RequestProbe{Request: r}
	if report != nil {
		p.Report = *report
	}
	return p
}

// Environment collects every signal; none of the collectors can abort it.
func (p *RequestProbe) Environment() Environment {
	rep := p.Report

	return Environment{
		UserAgent:           Collect(p.userAgent),
		Language:            Collect(p.language),
		Timezone:            stringSignal(rep.Timezone),
		TimezoneOffset:      intSignal(rep.TimezoneOffset),
		ScreenResolution:    sizeSignal(rep.ScreenWidth, rep.ScreenHeight),
		ColorDepth:          intSignal(rep.ColorDepth),
		Viewport:            sizeSignal(rep.ViewportWidth, rep.ViewportHeight),
		Platform:            stringSignal(rep.Platform),
		HardwareConcurrency: intSignal(rep.HardwareConcurrency),
		DeviceMemory:        floatSignal(rep.DeviceMemory),
		TouchSupport:        touchSignal(rep.TouchPoints),
		Canvas:              Collect(p.canvas),
		Renderer:            Collect(p.renderer),
		Fonts:               Collect(p.fonts),
		Plugins:             Collect(p.plugins),
		StorageAvailable:    boolSignal(rep.StorageAvailable),
		CookiesEnabled:      Collect(p.cookiesEnabled),
	}
}

func (p *RequestProbe) userAgent() (string, error) {
	if p.Request == nil {
		return "", errNotReported
	}
	ua := strings.TrimSpace(p.Request.UserAgent())
	if ua == "" {
		return "", errNotReported
	}
	return ua, nil
}

// language prefers the browser-reported locale over Accept-Language.
func (p *RequestProbe) language() (string, error) {
	if lang := strings.TrimSpace(p.Report.Language); lang != "" {
		return lang, nil
	}
	if p.Request == nil {
		return "", errNotReported
	}
	header := p.Request.Header.Get("Accept-Language")
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	if first = strings.TrimSpace(first); first == "" || first == "*" {
		return "", errNotReported
	}
	return first, nil
}

func (p *RequestProbe) canvas() (string, error) {
	if p.Report.CanvasData == "" {
		return "", errNotReported
	}
	return hash(p.Report.CanvasData), nil
}

func (p *RequestProbe) renderer() (string, error) {
	if p.Report.RendererVendor == "" && p.Report.RendererName == "" {
		return "", errNotReported
	}
	return hash(p.Report.RendererVendor + "|" + p.Report.RendererName), nil
}

func (p *RequestProbe) fonts() (string, error) {
	if p.Report.Fonts == nil {
		return "", errNotReported
	}
	return hashList(p.Report.Fonts), nil
}

func (p *RequestProbe) plugins() (string, error) {
	if len(p.Report.Plugins) == 0 {
		return "no-plugins", nil
	}
	return hashList(p.Report.Plugins), nil
}

// cookiesEnabled only trusts the report. The request's own cookies would
// change once the device cookie is set.
func (p *RequestProbe) cookiesEnabled() (string, error) {
	if p.Report.CookiesEnabled == nil {
		return "", errNotReported
	}
	return strconv.FormatBool(*p.Report.CookiesEnabled), nil
}

func touchSignal(points *int) Signal {
	if points == nil {
		return Unavailable()
	}
	return Available(strconv.FormatBool(*points > 0))
}
