package analytics

import (
	"net"
	"regexp"
	"strings"
)

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"

	BrowserInternetExplorer = "Internet Explorer"
	BrowserFirefox          = "Mozilla Firefox"
	BrowserChrome           = "Google Chrome"
	BrowserSafari           = "Apple Safari"
	BrowserOpera            = "Opera"
	BrowserEdge             = "Microsoft Edge"

	PlatformWindows = "Windows"
	PlatformMac     = "Mac"
	PlatformLinux   = "Linux"
	PlatformAndroid = "Android"
	PlatformIOS     = "iOS"

	Unknown          = "Unknown"
	CountryLocalhost = "Localhost"
)

type labeledPattern struct {
	label   string
	pattern *regexp.Regexp
}

type labeledTokens struct {
	label  string
	tokens []string
}

var (
	tabletPattern  = regexp.MustCompile(`(?i)ipad|tablet|playbook|silk|kindle`)
	mobilePattern  = regexp.MustCompile(`(?i)mobi|iphone|ipod|android|blackberry|opera mini|iemobile|windows phone`)
	androidPattern = regexp.MustCompile(`(?i)android`)

	// Order matters: Chrome user agents also contain "Safari", Edge and
	// Opera user agents also contain "Chrome". First match wins.
	browserTokens = []labeledTokens{
		{BrowserInternetExplorer, []string{"msie", "trident"}},
		{BrowserFirefox, []string{"firefox"}},
		{BrowserChrome, []string{"chrome"}},
		{BrowserSafari, []string{"safari"}},
		{BrowserOpera, []string{"opera", "opr/"}},
		{BrowserEdge, []string{"edg"}},
	}

	platformPatterns = []labeledPattern{
		{PlatformWindows, regexp.MustCompile(`(?i)windows|win32|win64`)},
		{PlatformMac, regexp.MustCompile(`(?i)macintosh|mac_powerpc`)},
		{PlatformLinux, regexp.MustCompile(`(?i)x11|linux (x86_64|i686|aarch64)|ubuntu|fedora`)},
		{PlatformAndroid, androidPattern},
		{PlatformIOS, regexp.MustCompile(`(?i)iphone|ipad|ipod`)},
	}
)

// Classification holds the attributes derived from a visit.
type Classification struct {
	Device   string
	Browser  string
	Platform string
	Country  string
}

// Classify derives device, browser, platform and country from a visit.
// It never fails: unrecognized input yields Desktop and Unknown values.
func Classify(visit Visit) Classification {
	return Classification{
		Device:   ClassifyDevice(visit.UserAgent),
		Browser:  ClassifyBrowser(visit.UserAgent),
		Platform: ClassifyPlatform(visit.UserAgent),
		Country:  ResolveCountry(visit.IPAddress),
	}
}

// ClassifyDevice checks tablets before phones.
func ClassifyDevice(userAgent string) string {
	if tabletPattern.MatchString(userAgent) || isAndroidTablet(userAgent) {
		return DeviceTablet
	}

	if mobilePattern.MatchString(userAgent) {
		return DeviceMobile
	}

	return DeviceDesktop
}

// Android tablets omit the "Mobile" token that Android phones send.
func isAndroidTablet(userAgent string) bool {
	return androidPattern.MatchString(userAgent) &&
		!strings.Contains(strings.ToLower(userAgent), "mobi")
}

// ClassifyBrowser names the browser family in userAgent, or Unknown.
func ClassifyBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, b := range browserTokens {
		for _, token := range b.tokens {
			if strings.Contains(ua, token) {
				return b.label
			}
		}
	}

	return Unknown
}

// ClassifyPlatform names the operating system in userAgent, or Unknown.
func ClassifyPlatform(userAgent string) string {
	for _, p := range platformPatterns {
		if p.pattern.MatchString(userAgent) {
			return p.label
		}
	}

	return Unknown
}

// ResolveCountry recognizes loopback addresses only. Geolocation of public
// addresses is not performed, so those return "".
func ResolveCountry(ipAddress string) string {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip != nil && ip.IsLoopback() {
		return CountryLocalhost
	}

	return ""
}
