package main

import (
	"os"

	"github.com/spf13/pflag"

	"AkuChat/pkg/chatapi"
	"AkuChat/pkg/conversation"
	"AkuChat/pkg/stream"
)

const tokenEnv = "CHAT_API_TOKEN"

// ServerFlags selects the chat service and the credential used against it.
type ServerFlags struct {
	Server string
	Token  string
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		Server: chatapi.DefaultServerURL,
		Token:  os.Getenv(tokenEnv),
	}
}

func (f *ServerFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Server, "server", f.Server, "chat service base URL")
	fs.StringVar(&f.Token, "token", f.Token, "bearer token (defaults to $"+tokenEnv+")")
}

func (f *ServerFlags) Client() *chatapi.Client {
	return chatapi.New(chatapi.WithServerURL(f.Server), chatapi.WithToken(f.Token))
}

// Controller wires a conversation controller to the service. useWebSocket
// picks the WebSocket transport over SSE for turns.
func (f *ServerFlags) Controller(useWebSocket bool, opts ...conversation.Option) *conversation.Controller {
	client := f.Client()
	var streamer conversation.Streamer = stream.NewIngestor(f.Server)
	if useWebSocket {
		streamer = stream.NewWebSocketIngestor(f.Server)
	}
	return conversation.NewController(conversation.NewRegistry(), conversation.Deps{
		History:     client,
		Metadata:    client,
		Streamer:    streamer,
		Credentials: client,
	}, opts...)
}
