// Package engage decides whether the bot responds to a message.
package engage

import (
	"slices"
	"strings"

	"cyanbot/internal/config"
)

// ShouldEngage reports whether a message in channelID should get a reply
// under the given profile. A non-empty allow-list excludes every channel not
// in it regardless of content; otherwise any configured keyword appearing as
// a case-sensitive substring (mid-word counts) triggers engagement.
func ShouldEngage(profile config.TenantProfile, channelID, text string) bool {
	if len(profile.AllowedChannels) > 0 && !slices.Contains(profile.AllowedChannels, channelID) {
		return false
	}
	for _, kw := range profile.Keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
