package device

import (
	"regexp"
	"strings"
	"time"
)

// BrowserInfo is a coarse description parsed from a user agent.
type BrowserInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	OS       string `json:"os"`
	IsMobile bool   `json:"is_mobile"`
	Language string `json:"language,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Screen describes the reported display.
type Screen struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	ColorDepth int `json:"color_depth"`
}

// UserInfo is everything known about an anonymous visitor.
type UserInfo struct {
	DeviceID    string      `json:"device_id"`
	SessionID   string      `json:"session_id"`
	Fingerprint string      `json:"fingerprint"`
	Browser     BrowserInfo `json:"browser"`
	Screen      Screen      `json:"screen"`
	Timestamp   time.Time   `json:"timestamp"`
}

var mobileRE = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// browsers is checked in order; engines embedding "Chrome" or "Safari"
// in their UA must come first.
var browsers = []struct {
	name    string
	marker  string
	version *regexp.Regexp
}{
	{"Edge", "Edg", regexp.MustCompile(`Edg[A-Za-z]*/(\d+)`)},
	{"Opera", "OPR", regexp.MustCompile(`OPR/(\d+)`)},
	{"Opera", "Opera", regexp.MustCompile(`(?:Opera|Version)/(\d+)`)},
	{"Firefox", "Firefox", regexp.MustCompile(`Firefox/(\d+)`)},
	{"Chrome", "Chrome", regexp.MustCompile(`Chrome/(\d+)`)},
	{"Safari", "Safari", regexp.MustCompile(`Version/(\d+)`)},
}

// ParseBrowser extracts browser name, major version, OS and form factor.
// Unknown values are reported as "Unknown".
func ParseBrowser(ua string) BrowserInfo {
	info := BrowserInfo{Name: "Unknown", Version: "Unknown", OS: parseOS(ua)}

	for _, b := range browsers {
		if !strings.Contains(ua, b.marker) {
			continue
		}
		info.Name = b.name
		if m := b.version.FindStringSubmatch(ua); m != nil {
			info.Version = m[1]
		}
		break
	}

	info.IsMobile = mobileRE.MatchString(ua)
	return info
}

func parseOS(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iOS"):
		return "iOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Mac"):
		return "MacOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return "Unknown"
}

// UserInfo assembles the visitor description for the request behind p.
// deviceID is the already resolved id; every call mints a new session id.
func (i *Identity) UserInfo(deviceID string, p *RequestProbe) UserInfo {
	env := p.Environment()
	ua, _ := env.UserAgent.Value()
	lang, _ := env.Language.Value()

	browser := ParseBrowser(ua)
	browser.Language = lang
	browser.Timezone = p.Report.Timezone

	info := UserInfo{
		DeviceID:    deviceID,
		SessionID:   NewSessionID(),
		Fingerprint: Compute(env, i.now()).ID,
		Browser:     browser,
		Timestamp:   i.now(),
	}
	if p.Report.ScreenWidth != nil {
		info.Screen.Width = *p.Report.ScreenWidth
	}
	if p.Report.ScreenHeight != nil {
		info.Screen.Height = *p.Report.ScreenHeight
	}
	if p.Report.ColorDepth != nil {
		info.Screen.ColorDepth = *p.Report.ColorDepth
	}
	return info
}
