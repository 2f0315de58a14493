package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"AkuChat/pkg/conversation"
)

type SendFlags struct {
	Server    *ServerFlags
	ChatID    string
	WebSocket bool
	Timeout   time.Duration
}

func NewSendFlags() *SendFlags {
	return &SendFlags{Server: NewServerFlags(), Timeout: 2 * time.Minute}
}

func (f *SendFlags) BindFlags(fs *pflag.FlagSet) {
	f.Server.BindFlags(fs)
	fs.StringVar(&f.ChatID, "chat", f.ChatID, "chat id (default: reuse or create an empty chat)")
	fs.BoolVar(&f.WebSocket, "ws", f.WebSocket, "stream over WebSocket instead of SSE")
	fs.DurationVar(&f.Timeout, "timeout", f.Timeout, "give up on the reply after this long")
}

func init() {
	f := NewSendFlags()

	cmd := &cobra.Command{
		Use:   "send TEXT...",
		Short: "Send a prompt and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), f.Timeout)
			defer cancel()

			ctrl := f.Server.Controller(f.WebSocket)
			defer ctrl.Close()

			id, err := ctrl.Bootstrap(ctx, f.ChatID)
			if err != nil {
				return err
			}
			if err := ctrl.Hydrate(ctx, id); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			printed := 0
			view := ctrl.Attach(id, conversation.ViewHooks{
				OnStreamedText: func(text string) {
					mu.Lock()
					defer mu.Unlock()
					if len(text) > printed {
						fmt.Fprint(out, text[printed:])
						printed = len(text)
					}
				},
			})
			defer view.Detach()

			turn, err := ctrl.Submit(ctx, id, strings.Join(args, " "))
			if err != nil {
				return err
			}
			err = turn.Wait()
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			// let a pending title confirmation land before reading it
			ctrl.Close()
			if conv, ok := ctrl.Registry().Get(id); ok {
				fmt.Fprintf(out, "-- %s (%s)\n", conv.Title, id)
			}
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	rootCmd.AddCommand(cmd)
}
