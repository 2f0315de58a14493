package conversation

import "errors"

var (
	ErrEmptyPrompt         = errors.New("prompt is empty")
	ErrTurnInFlight        = errors.New("a turn is already in flight for this conversation")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrLoadInFlight        = errors.New("older messages are already loading")
	ErrNoMoreMessages      = errors.New("no older messages")
)
