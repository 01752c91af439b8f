package agent

import (
	"regexp"
	"strings"
)

// toxicityPatterns is a cheap screen that runs before classification.
// Flagged turns get a fixed refusal without any downstream calls. The list
// covers common Russian profanity stems and direct insults; borderline text
// passes through to the normal pipeline.
// Note: RE2's \b is ASCII-only, so Cyrillic patterns match on stems instead
// of word boundaries.
var toxicityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(хуй|хуя|пизд|ебат|ебан|нахуй|бляд|блять|сука|мудак|мудил|долбо[её]б)`),
	regexp.MustCompile(`(?i)(тупой бот|тупая железяка|дебил|идиот|ненавижу тебя|пош[её]л ты)`),
	regexp.MustCompile(`(?i)(убью тебя|сдохни|сдохните)`),
}

// IsToxic reports whether the text trips the pattern screen.
func IsToxic(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, p := range toxicityPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
