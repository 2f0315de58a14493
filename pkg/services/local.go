package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// LocalResponder streams a canned markdown answer. It is used when no model
// is configured and in tests.
type LocalResponder struct {
	// Delay between deltas; zero streams as fast as possible.
	Delay time.Duration
	rng   *rand.Rand
}

func NewLocalResponder(delay time.Duration) *LocalResponder {
	return &LocalResponder{Delay: delay, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (l *LocalResponder) Name() string { return "local" }

// Answer builds the full reply for the last user turn in history.
func (l *LocalResponder) Answer(history []ChatMessage) string {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			last = strings.TrimSpace(history[i].Text)
			break
		}
	}
	if last == "" {
		last = "your question"
	}
	topic := []rune(strings.Join(strings.Fields(last), " "))
	if len(topic) > 40 {
		topic = append(topic[:37], []rune("...")...)
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "## About %s\n\n", string(topic))
	fmt.Fprintln(b, "Here is a short overview.")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "- Start with the main idea behind the question.")
	fmt.Fprintln(b, "- Work through a small practical example.")
	fmt.Fprintln(b, "- Check the official documentation for exact details.")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "## Next steps")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "Share more detail and the answer can be more specific.")
	return b.String()
}

func (l *LocalResponder) Stream(ctx context.Context, history []ChatMessage, onDelta func(string)) (string, error) {
	full := []rune(l.Answer(history))
	var sent strings.Builder
	for i := 0; i < len(full); {
		if err := ctx.Err(); err != nil {
			return sent.String(), err
		}
		step := 16
		if l.rng != nil {
			step += l.rng.Intn(32)
		}
		step = min(step, len(full)-i)
		part := string(full[i : i+step])
		sent.WriteString(part)
		if onDelta != nil {
			onDelta(part)
		}
		i += step
		if l.Delay > 0 {
			sleepWithContext(ctx, l.Delay)
		}
	}
	return sent.String(), nil
}
