package chat

import (
	"strings"
)

// Section is one "## " headed block of an assistant reply.
type Section struct {
	Heading    string
	Paragraphs []string
	Items      []string
}

// ParseSections splits markdown into heading sections. Text before the first
// heading lands in a section with an empty heading. Consecutive text lines
// are joined into one paragraph and "- " lines become list items.
func ParseSections(markdown string) []Section {
	var (
		sections []Section
		para     []string
	)
	cur := -1

	flush := func() {
		if cur >= 0 && len(para) > 0 {
			sections[cur].Paragraphs = append(sections[cur].Paragraphs, strings.Join(para, " "))
		}
		para = nil
	}
	ensure := func() {
		if cur < 0 {
			sections = append(sections, Section{})
			cur = len(sections) - 1
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, headingMarker):
			flush()
			sections = append(sections, Section{Heading: strings.TrimSpace(line[len(headingMarker):])})
			cur = len(sections) - 1
		case strings.HasPrefix(line, "- "):
			flush()
			ensure()
			sections[cur].Items = append(sections[cur].Items, strings.TrimSpace(line[2:]))
		case line == "":
			flush()
		default:
			ensure()
			para = append(para, line)
		}
	}
	flush()
	return sections
}
