package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("x", 70)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "heading wins", in: "Intro line\n\n## Travel plan\nmore", want: "Travel plan"},
		{name: "indented heading", in: "   ## Spaced   \n", want: "Spaced"},
		{name: "first non blank line", in: "\n\n  Hello there  \nsecond", want: "Hello there"},
		{name: "long line is cut", in: long, want: strings.Repeat("x", 57) + "..."},
		{name: "exactly sixty is kept", in: strings.Repeat("y", 60), want: strings.Repeat("y", 60)},
		{name: "blank falls back", in: " \n\t\n", want: DefaultTitle},
		{name: "multibyte counted by rune", in: strings.Repeat("é", 61), want: strings.Repeat("é", 57) + "..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.in))
		})
	}
}

func TestIsPlaceholderTitle(t *testing.T) {
	assert.True(t, IsPlaceholderTitle(""))
	assert.True(t, IsPlaceholderTitle("new chat"))
	assert.True(t, IsPlaceholderTitle(DefaultTitle))
	assert.False(t, IsPlaceholderTitle("Trip to Bali"))
}

func TestParseSections(t *testing.T) {
	md := "Preface text\n\n## First\nline one\nline two\n\n- a\n- b\n## Second\nclosing"

	got := ParseSections(md)
	require.Len(t, got, 3)

	assert.Equal(t, "", got[0].Heading)
	assert.Equal(t, []string{"Preface text"}, got[0].Paragraphs)

	assert.Equal(t, "First", got[1].Heading)
	assert.Equal(t, []string{"line one line two"}, got[1].Paragraphs)
	assert.Equal(t, []string{"a", "b"}, got[1].Items)

	assert.Equal(t, "Second", got[2].Heading)
	assert.Equal(t, []string{"closing"}, got[2].Paragraphs)
}

func TestDisplayTime(t *testing.T) {
	m := Message{CreatedAt: "2025-03-01T10:00:00Z", Source: SourceAPI}
	got, err := m.DisplayTime(APIClockOffset)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Hour())

	m.Source = SourceLocal
	got, err = m.DisplayTime(APIClockOffset)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = Message{CreatedAt: "yesterday"}.DisplayTime(time.Hour)
	assert.Error(t, err)
}

func TestMarkDocNeverReverts(t *testing.T) {
	c := NewConversation(Summary{ID: "c1"})
	assert.Equal(t, ModeEmpty, c.Mode)
	assert.Equal(t, DefaultTitle, c.Title)
	c.MarkDoc()
	c.MarkDoc()
	assert.Equal(t, ModeDoc, c.Mode)
}
