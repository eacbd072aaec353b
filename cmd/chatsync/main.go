package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const binary = "chatsync"

type globalFlags struct {
	profile    string
	configPath string
	debug      bool
}

func main() {
	// A .env in the working directory may carry CHATSYNC_TOKEN.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           binary,
		Short:         "Real-time chat client with push, polling and read-state sync",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(g)
		},
	}
	root.PersistentFlags().StringVar(&g.profile, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "global config file (default ~/.chatsync/config.toml)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "debug logging")

	root.AddCommand(
		newTUICmd(g),
		newConversationsCmd(g),
		newWatchCmd(g),
		newSendCmd(g),
		newDeleteCmd(g),
		newProfileCmd(g),
	)
	return root
}

func (g *globalFlags) profileName() (string, error) {
	name := profile.Resolve(g.profile, g.configPath)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// client is a started fx application for one-shot commands.
type client struct {
	app     *fx.App
	manager *conversation.Manager
	logger  *zap.Logger
}

func startClient(g *globalFlags, stderr bool) (*client, error) {
	name, err := g.profileName()
	if err != nil {
		return nil, err
	}
	c := &client{}
	c.app = fx.New(
		app.Module(app.Params{ProfileName: name, Binary: binary, Stderr: stderr, Debug: g.debug}),
		fx.Populate(&c.manager, &c.logger),
		fx.NopLogger,
	)
	if err := c.app.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return c, nil
}

func (c *client) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = c.app.Stop(ctx)
}
