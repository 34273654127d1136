// Package useragent reduces a User-Agent header to a short client label.
package useragent

import "strings"

type Client struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

func (c Client) String() string {
	if c.OS == "" && c.Browser == "" {
		return ""
	}
	return c.Browser + " on " + c.OS
}

// Order matters: iOS and Android user agents also mention "mac os" and "linux".
var osMatchers = []struct{ needle, name string }{
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"android", "Android"},
	{"windows", "Windows"},
	{"mac os", "macOS"},
	{"linux", "Linux"},
}

// Edge and Chrome both claim Safari; Edge also claims Chrome.
var browserMatchers = []struct{ needle, name string }{
	{"edg", "Edge"},
	{"firefox", "Firefox"},
	{"chrome", "Chrome"},
	{"safari", "Safari"},
	{"curl", "curl"},
}

// Parse returns an empty Client for an empty header.
func Parse(ua string) Client {
	if strings.TrimSpace(ua) == "" {
		return Client{}
	}
	lower := strings.ToLower(ua)
	return Client{
		OS:      match(lower, osMatchers),
		Browser: match(lower, browserMatchers),
	}
}

func match(ua string, matchers []struct{ needle, name string }) string {
	for _, m := range matchers {
		if strings.Contains(ua, m.needle) {
			return m.name
		}
	}
	return "Unknown"
}
