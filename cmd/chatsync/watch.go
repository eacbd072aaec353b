package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/lifecycle"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/spf13/cobra"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Follow a conversation; lines typed on stdin are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := startClient(g, false)
			if err != nil {
				return err
			}
			defer c.stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := c.manager.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			go sendLines(ctx, s, os.Stdin, cmd.ErrOrStderr())
			return follow(ctx, c.manager, s, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newSendCmd(g *globalFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <conversation-id> <text>",
		Short: "Send one message and wait for the server to acknowledge it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := startClient(g, false)
			if err != nil {
				return err
			}
			defer c.stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			s, err := c.manager.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if err := waitUntil(ctx, s.CanSend); err != nil {
				if st, reason := s.Lifecycle(); st != lifecycle.Active {
					return fmt.Errorf("cannot send: %s", reason)
				}
				return fmt.Errorf("push channel not connected: %w", err)
			}
			if err := s.Send(ctx, args[1]); err != nil {
				return err
			}
			return waitUntil(ctx, func() bool {
				for _, m := range s.Messages() {
					if m.Provisional() {
						return false
					}
				}
				return true
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "give up after this long")
	return cmd
}

func waitUntil(ctx context.Context, cond func() bool) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// follow prints each message once it has a server id, plus connection and
// lifecycle changes, until ctx is done.
func follow(ctx context.Context, m *conversation.Manager, s *conversation.Session, out, errOut io.Writer) error {
	events, unsub := m.Bus().SubscribeConversation(s.ID(), 64,
		store.KindUpdated, status.KindChanged, lifecycle.KindChanged)
	defer unsub()

	printed := make(map[string]bool)
	flush := func() {
		for _, msg := range s.Messages() {
			if msg.Provisional() || printed[msg.ID] {
				continue
			}
			printed[msg.ID] = true
			fmt.Fprintf(out, "[%s] %s: %s\n", msg.SentAt.Local().Format(time.TimeOnly), msg.SenderName, msg.Content)
		}
	}
	flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-events:
			switch p := evt.Payload.(type) {
			case status.StatusChange:
				fmt.Fprintf(errOut, "-- %s\n", p.To)
			case lifecycle.Change:
				if p.To == lifecycle.PeerDeleted {
					fmt.Fprintf(errOut, "-- %s\n", p.Reason)
				} else {
					fmt.Fprintln(errOut, "-- conversation active again")
				}
			default:
				flush()
			}
		}
	}
}

func sendLines(ctx context.Context, s *conversation.Session, in io.Reader, errOut io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		text := sc.Text()
		if text == "" {
			continue
		}
		if err := s.Send(ctx, text); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintf(errOut, "-- send failed: %v\n", err)
		}
	}
}
