package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/termsim-devserver/config"
	"github.com/angeloszaimis/termsim-devserver/internal/devserver"
	"github.com/angeloszaimis/termsim-devserver/pkg/logger"
)

type serveOptions struct {
	listen    string
	staticDir string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dev server",
		Long:  "Serve the terminal page and proxy API calls to the backend until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

			srv, err := devserver.New(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create dev server: %w", err)
			}

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "", "Listen address (default from config or :3000)")
	cmd.Flags().StringVar(&opts.staticDir, "static-dir", "", "Serve the page shell from this directory instead of the built-in one")

	return cmd
}

func (o *serveOptions) apply(cfg *config.Config) {
	if o.listen != "" {
		cfg.Server.Address = o.listen
	}
	if o.staticDir != "" {
		cfg.Static.Dir = o.staticDir
	}
}
