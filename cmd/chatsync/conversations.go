package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newConversationsCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations with unread counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startClient(g, false)
			if err != nil {
				return err
			}
			defer c.stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := c.manager.RefreshSummaries(ctx); err != nil {
				return err
			}
			list := c.manager.Summaries()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			role := c.manager.Identity().Role
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWITH\tUNREAD\tLAST ACTIVITY\tSTATE")
			for _, s := range list {
				state := "active"
				if s.PeerDeleted(role) {
					state = "deleted by peer"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ConversationID, s.CounterpartyName, s.UnreadCount,
					s.LastActivityAt.Local().Format(time.DateTime), state)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation for your side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := startClient(g, false)
			if err != nil {
				return err
			}
			defer c.stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := c.manager.DeleteConversation(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "conversation %s deleted\n", args[0])
			return nil
		},
	}
}
