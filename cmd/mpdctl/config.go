package main

import (
	"fmt"

	"github.com/danmuck/mpdctl/internal/config"
	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "mpdctl.toml"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write, validate and show configuration",
		// Subcommands load files themselves.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			logging.ConfigureRuntime()
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := defaultConfigPath
			if len(args) == 1 {
				target = args[0]
			}
			if err := config.WriteTemplate(target, force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote config template to %s\n", target)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = defaultConfigPath
			}
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "validated config at %s\n", path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.Address = a.address
			}
			rendered, err := config.Template(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, rendered)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd, showCmd)
	return cmd
}
