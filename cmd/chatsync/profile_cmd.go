package main

import (
	"fmt"

	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/spf13/cobra"
)

func newProfileCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
	}
	cmd.AddCommand(newProfileInitCmd(g), newProfileUseCmd(g), newProfileShowCmd(g))
	return cmd
}

func newProfileInitCmd(g *globalFlags) *cobra.Command {
	var (
		p        = config.Defaults()
		role     string
		baseURL  string
		wsURL    string
		override bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a profile.toml for the selected profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := g.profileName()
			if err != nil {
				return err
			}
			path := profile.ProfilePath(name)
			if existing, err := config.LoadProfile(path); err == nil && existing.Identity.UserID != "" && !override {
				return fmt.Errorf("profile %s already exists at %s (use --force)", name, path)
			}
			p.Identity.Role = store.Role(role)
			if baseURL != "" {
				p.Server.BaseURL = baseURL
			}
			if wsURL != "" {
				p.Server.WSURL = wsURL
			}
			if err := p.Validate(); err != nil {
				return err
			}
			if err := profile.EnsureDir(name); err != nil {
				return err
			}
			if err := config.SaveProfile(path, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Identity.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&p.Identity.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(store.RoleCustomer), "customer or performer")
	cmd.Flags().StringVar(&p.Identity.Token, "token", "", "bearer token (or set "+config.TokenEnv+")")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "REST base url")
	cmd.Flags().StringVar(&wsURL, "ws-url", "", "WebSocket url")
	cmd.Flags().BoolVar(&override, "force", false, "overwrite an existing profile")
	return cmd
}

func newProfileUseCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Make a profile the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := profile.ValidateName(args[0]); err != nil {
				return err
			}
			path := g.configPath
			if path == "" {
				path = profile.ConfigPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				cfg = &config.Config{}
			}
			cfg.DefaultProfile = args[0]
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default profile is now %s\n", args[0])
			return nil
		},
	}
}

func newProfileShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := g.profileName()
			if err != nil {
				return err
			}
			p, err := config.LoadProfile(profile.ProfilePath(name))
			if err != nil {
				return err
			}
			if p.Identity.Token != "" {
				p.Identity.Token = "********"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# profile %s\n", name)
			return config.Encode(cmd.OutOrStdout(), p)
		},
	}
}
