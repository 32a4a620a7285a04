package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/termsim-devserver/config"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "termsim-devserver",
		Short: "Development server for the terminal simulator",
		Long: "termsim-devserver serves the terminal page on :3000 and forwards its API " +
			"calls (/execute, /history, /clear-history) to the backend on :5000.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ./config/config.yaml or ./config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newExecCmd(opts),
		newHistoryCmd(opts),
		newClearHistoryCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
