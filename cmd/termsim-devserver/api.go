package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/termsim-devserver/internal/bootstrap"
	"github.com/angeloszaimis/termsim-devserver/pkg/apiclient"
)

const defaultOrigin = "http://localhost:3000"

type apiOptions struct {
	root   *rootOptions
	origin string
}

func (o *apiOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.origin, "origin", defaultOrigin, "Dev server origin the calls go through")
}

// client applies the configured client defaults, as a page load would, and
// returns a client for the dev server.
func (o *apiOptions) client() (*apiclient.Client, error) {
	cfg, err := o.root.load()
	if err != nil {
		return nil, err
	}

	if err := bootstrap.New(cfg.Client.BaseURL, cfg.Client.MountPoint, nil).ConfigureClient(); err != nil {
		return nil, err
	}

	return apiclient.New(o.origin)
}

func newExecCmd(root *rootOptions) *cobra.Command {
	opts := &apiOptions{root: root}

	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run a command through the dev server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			res, err := client.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if res.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if res.Error != "" {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &apiOptions{root: root}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the commands the backend has recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			entries, err := client.History(cmd.Context())
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.Timestamp, e.Command)
			}
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

func newClearHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &apiOptions{root: root}

	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Forget every recorded command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			if err := client.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}
