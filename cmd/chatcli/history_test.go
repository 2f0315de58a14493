package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"AkuChat/pkg/chat"
)

func TestPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	printMessage(&buf, chat.Message{
		Role:      chat.RoleAssistant,
		Content:   "## Greeting\n\nHi there!\n- one\n- two",
		CreatedAt: "not a time",
	})
	out := buf.String()
	assert.Contains(t, out, "[not a time] assistant")
	assert.Contains(t, out, "  # Greeting\n")
	assert.Contains(t, out, "  Hi there!\n")
	assert.Contains(t, out, "   * one\n   * two\n")

	buf.Reset()
	printMessage(&buf, chat.Message{Role: chat.RoleUser, Content: "hello"})
	assert.Contains(t, buf.String(), "  hello\n")
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "chats", "new", "send", "history"} {
		assert.True(t, names[want], want)
	}
}
