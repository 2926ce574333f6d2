package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShifatiRabbi/ecommerce-project/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		source := cfg.ConfigPath
		if source == "" {
			source = "(defaults)"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config:   %s\n", source)
		fmt.Fprintf(out, "Listen:   http://%s\n", cfg.Server.Addr())
		fmt.Fprintf(out, "Upstream: %s\n", cfg.Upstream.BaseURL)
		fmt.Fprintf(out, "Forms:    %d\n", len(cfg.Forms))
		for _, f := range cfg.Forms {
			fmt.Fprintf(out, "  - %s -> %s (delay %s)\n", f.ID, cfg.Upstream.ResolveURL(f.SaveURL), f.Delay)
		}
		fmt.Fprintf(out, "Feed:     %v\n", cfg.Feed.Enabled)
		fmt.Fprintf(out, "Stats:    %v\n", cfg.Stats.Enabled)
		fmt.Fprintf(out, "Idle:     %v\n", cfg.Idle.Enabled)
		fmt.Fprintln(out, "OK")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "autosave.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		cfg := config.Default()
		cfg.Forms = []config.FormConfig{{
			ID:      "product",
			SaveURL: "/admin-dashboard/products/1/edit/",
			Delay:   config.DefaultFormDelay,
		}}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
