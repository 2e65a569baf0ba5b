package monitor

import (
	"fmt"
	"regexp"
	"strings"
)

// BuildMentionPattern compiles the case-insensitive matcher used to
// detect that a message is directed at the bot. The alternation covers
// the configured display name, the localpart of the bot's user id
// (sigil and domain stripped), and the full user id, each with regex
// metacharacters escaped. Alternatives that begin or end on a word
// character get word boundaries so "bot" does not fire inside "robot".
func BuildMentionPattern(displayName, userID string) (*regexp.Regexp, error) {
	var alts []string
	add := func(raw string) {
		if raw == "" {
			return
		}
		alts = append(alts, bounded(raw))
	}

	add(displayName)
	add(localpart(userID))
	add(userID)

	if len(alts) == 0 {
		return nil, fmt.Errorf("no display name or user id to build mention pattern from")
	}

	return regexp.Compile(`(?i)(` + strings.Join(alts, "|") + `)`)
}

// localpart strips the leading sigil and the domain suffix from a full
// user id: "@bot:example.org" -> "bot".
func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}

func bounded(raw string) string {
	alt := regexp.QuoteMeta(raw)
	if isWordChar(rune(raw[0])) {
		alt = `\b` + alt
	}
	if isWordChar(rune(raw[len(raw)-1])) {
		alt += `\b`
	}
	return alt
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
