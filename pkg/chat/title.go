package chat

import (
	"strings"
)

const (
	titleMaxRunes  = 60
	titleCutRunes  = 57
	headingMarker  = "## "
	ellipsisSuffix = "..."
)

// DeriveTitle picks a conversation title from an assistant reply. The first
// "## " heading wins; otherwise the first non-blank line is used, shortened
// when it is longer than 60 characters.
func DeriveTitle(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, headingMarker) {
			if heading := strings.TrimSpace(trimmed[len(headingMarker):]); heading != "" {
				return heading
			}
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		if len(r) > titleMaxRunes {
			return string(r[:titleCutRunes]) + ellipsisSuffix
		}
		return trimmed
	}
	return DefaultTitle
}

// IsPlaceholderTitle reports whether title still carries no real name.
func IsPlaceholderTitle(title string) bool {
	t := strings.TrimSpace(title)
	return t == "" || strings.EqualFold(t, DefaultTitle)
}
