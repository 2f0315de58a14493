package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/conversation"
)

func printMessage(w io.Writer, m chat.Message) {
	when := m.CreatedAt
	if t, err := m.DisplayTime(chat.APIClockOffset); err == nil {
		when = t.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "[%s] %s\n", when, m.Role)
	if m.Role != chat.RoleAssistant {
		fmt.Fprintf(w, "  %s\n\n", m.Content)
		return
	}
	for _, s := range chat.ParseSections(m.Content) {
		if s.Heading != "" {
			fmt.Fprintf(w, "  # %s\n", s.Heading)
		}
		for _, p := range s.Paragraphs {
			fmt.Fprintf(w, "  %s\n", p)
		}
		for _, item := range s.Items {
			fmt.Fprintf(w, "   * %s\n", item)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	f := NewServerFlags()
	var (
		chatID   string
		older    int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a chat's recent messages, optionally paging further back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctrl := f.Controller(false, conversation.WithPageSize(pageSize))
			defer ctrl.Close()

			id, err := ctrl.Bootstrap(ctx, chatID)
			if err != nil {
				return err
			}
			if err := ctrl.Hydrate(ctx, id); err != nil {
				return err
			}
			for i := 0; i < older; i++ {
				if err := ctrl.LoadOlderMessages(ctx, id); err != nil {
					if errors.Is(err, conversation.ErrNoMoreMessages) {
						break
					}
					return err
				}
			}

			conv, _ := ctrl.Registry().Get(id)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", conv.Title, conv.ID)
			for _, m := range conv.Messages {
				printMessage(out, m)
			}
			if conv.HasMoreMessages {
				fmt.Fprintf(out, "... older messages available (--older %d)\n", older+1)
			}
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	cmd.Flags().StringVar(&chatID, "chat", "", "chat id (default: the newest empty chat)")
	cmd.Flags().IntVar(&older, "older", 0, "number of older pages to load")
	cmd.Flags().IntVar(&pageSize, "page-size", conversation.DefaultPageSize, "messages per page")
	rootCmd.AddCommand(cmd)
}
