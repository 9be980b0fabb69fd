package utils

import "strings"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	BrowserOther = "Other"
)

// DetectDeviceType classifies a User-Agent string by substring.
// Tablets are checked first because most tablet agents also say "mobile".
func DetectDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case containsAny(ua, tabletMarkers):
		return DeviceTablet
	case containsAny(ua, mobileMarkers):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

var (
	tabletMarkers = []string{"tablet", "ipad", "playbook", "silk"}
	mobileMarkers = []string{"mobile", "iphone", "ipod", "android", "blackberry", "opera mini", "iemobile"}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DetectBrowser returns the browser family named in a User-Agent string.
// Order matters: Edge and Opera agents also carry "chrome", and Chrome
// agents also carry "safari".
func DetectBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opr"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return BrowserOther
	}
}
