package main

import (
	"github.com/matheus3301/chatsync/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(g)
		},
	}
}

func runTUI(g *globalFlags) error {
	c, err := startClient(g, false)
	if err != nil {
		return err
	}
	defer c.stop()

	name, _ := g.profileName()
	return tui.NewApp(c.manager, name, c.logger).Run()
}
