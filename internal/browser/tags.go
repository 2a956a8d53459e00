// internal/browser/tags.go
package browser

import (
	"strings"

	"github.com/xkilldash9x/wedcheck/internal/config"
)

var browserTagValues = map[string]string{
	"INTERNETEXPLORER": "ie",
	"CHROME":           "ch",
	"FIREFOX":          "ff",
	"EDGE":             "edge",
}

// BrowserTag returns the short tag value for a browser name, or "".
func BrowserTag(name string) string {
	return browserTagValues[strings.ToUpper(name)]
}

// PlatformTag returns osx, win or linux for a WebDriver platform string such
// as "OS X 10.11" or "WINDOWS 10", or "" when the platform is not recognized.
func PlatformTag(platform string) string {
	p := strings.ToUpper(platform)
	switch {
	case strings.HasPrefix(p, "OS X "):
		return "osx"
	case strings.HasPrefix(p, "WINDOWS "):
		return "win"
	case p == "LINUX" || strings.HasPrefix(p, "LINUX "):
		return "linux"
	}
	return ""
}

// TagValues returns the values scenario tags are matched against:
// browser, platform and platform_browser.
func TagValues(cfg config.BrowserConfig) map[string]string {
	values := map[string]string{}
	b := BrowserTag(cfg.Name)
	if b != "" {
		values["browser"] = b
	}
	if p := PlatformTag(cfg.Platform); p != "" {
		values["platform"] = p
		if b != "" {
			values["platform_browser"] = p + "," + b
		}
	}
	return values
}
