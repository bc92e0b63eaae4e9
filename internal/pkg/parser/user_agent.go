package parser

import "strings"

// Client is the coarse platform/browser pair recorded with audit entries.
type Client struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

func ParseUserAgent(ua string) Client {
	uaLower := strings.ToLower(ua)

	var c Client
	switch {
	case strings.Contains(uaLower, "android"):
		c.OS = "Android"
	case strings.Contains(uaLower, "iphone") || strings.Contains(uaLower, "ipad"):
		c.OS = "iOS"
	case strings.Contains(uaLower, "windows"):
		c.OS = "Windows"
	case strings.Contains(uaLower, "mac os"):
		c.OS = "macOS"
	case strings.Contains(uaLower, "linux"):
		c.OS = "Linux"
	default:
		c.OS = "Unknown"
	}

	// Edge and Chrome both advertise "chrome"; Chrome advertises "safari".
	switch {
	case strings.Contains(uaLower, "edg"):
		c.Browser = "Edge"
	case strings.Contains(uaLower, "firefox"):
		c.Browser = "Firefox"
	case strings.Contains(uaLower, "chrome"):
		c.Browser = "Chrome"
	case strings.Contains(uaLower, "safari"):
		c.Browser = "Safari"
	default:
		c.Browser = "Unknown"
	}

	return c
}
