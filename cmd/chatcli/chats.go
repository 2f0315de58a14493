package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	f := NewServerFlags()

	login := &cobra.Command{
		Use:   "login EMAIL PASSWORD",
		Short: "Log in and print a bearer token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := f.Client().Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", tokenEnv, token)
			return nil
		},
	}
	f.BindFlags(login.Flags())
	rootCmd.AddCommand(login)

	lf := NewServerFlags()
	list := &cobra.Command{
		Use:   "chats",
		Short: "List chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := lf.Client().ListChats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCREATED")
			for _, c := range chats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Title, c.CreatedAt)
			}
			return w.Flush()
		},
	}
	lf.BindFlags(list.Flags())
	rootCmd.AddCommand(list)

	nf := NewServerFlags()
	var title string
	create := &cobra.Command{
		Use:   "new",
		Short: "Create a chat, or reuse an empty untitled one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, created, err := nf.Client().CreateChat(cmd.Context(), title)
			if err != nil {
				return err
			}
			state := "reused"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q\n", state, s.ID, s.Title)
			return nil
		},
	}
	nf.BindFlags(create.Flags())
	create.Flags().StringVar(&title, "title", "", "chat title")
	rootCmd.AddCommand(create)
}
