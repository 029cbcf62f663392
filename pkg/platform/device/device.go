// Package device derives a human-readable device name from a User-Agent
// string. The onboarding audit trail records which device a driver submitted
// from; review tooling shows it next to each event.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent converts a raw User-Agent into a display name like
// "Chrome on Mac OS X" or "Mobile App on Android". Unknown agents still get a
// stable, non-empty name.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	osInfo := ua.OSInfo()
	osName := osInfo.Name
	if osName == "" {
		osName = "Unknown OS"
	}

	if ua.Mobile() {
		platform := ua.Platform()
		if platform != "" {
			return fmt.Sprintf("%s on %s", browser, platform)
		}
	}

	return fmt.Sprintf("%s on %s", browser, osName)
}
