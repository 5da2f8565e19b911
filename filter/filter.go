// Package filter decides which voices may narrate which text.
package filter

import (
	"regexp"
	"strings"
)

// restrictedTerms is the fixed lexicon of graphic, sexual and violent
// content markers. Matching is whole-word and case-insensitive.
var restrictedTerms = []string{
	"assault", "behead", "beheading", "bloodbath", "bloodshed",
	"brutal", "carnage", "corpse", "decapitated", "dismember",
	"execution", "explicit", "genocide", "gore", "gory", "gruesome",
	"homicide", "lynching", "massacre", "maim", "molest", "murder",
	"murdered", "mutilated", "nude", "nudity", "obscene", "porn",
	"pornography", "rape", "raped", "slaughter", "stabbing", "strangled",
	"suicide", "torture", "tortured",
}

// childVoiceIDs is the fixed set of voices modeled as sounding like
// minors. They must never narrate restricted content.
var childVoiceIDs = map[string]bool{
	"peanut": true,
	"scout":  true,
	"pip":    true,
}

var restrictedPattern = regexp.MustCompile(
	`(?i)\b(?:` + strings.Join(restrictedTerms, "|") + `)\b`,
)

// IsRestricted reports whether the text trips the sensitive-content
// lexicon. The pattern is compiled once, so the check is linear in the
// text length.
func IsRestricted(text string) bool {
	return restrictedPattern.MatchString(text)
}

// IsChildVoice reports whether the voice identifier belongs to a child
// persona.
func IsChildVoice(voiceID string) bool {
	return childVoiceIDs[strings.ToLower(voiceID)]
}

// SafeVoice resolves the voice allowed to narrate text. A child voice over
// restricted content is substituted with the next non-child voice in the
// cycle, or with fallback when no cycle is in use.
func SafeVoice(voice, text string, cycle []string, fallback string) string {
	if !IsChildVoice(voice) || !IsRestricted(text) {
		return voice
	}
	for _, v := range cycle {
		if !IsChildVoice(v) {
			return v
		}
	}
	return fallback
}
