// Package bootstrap runs the terminal page's startup sequence: configure the
// shared API client, then mount the root component.
package bootstrap

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/angeloszaimis/termsim-devserver/internal/ui"
	"github.com/angeloszaimis/termsim-devserver/pkg/apiclient"
)

// Bootstrap holds what one page load needs.
type Bootstrap struct {
	BaseURL    string
	MountPoint string
	Root       ui.Component
}

// New returns the page bootstrap for the given client settings.
func New(baseURL, mountPoint string, root ui.Component) *Bootstrap {
	return &Bootstrap{
		BaseURL:    baseURL,
		MountPoint: mountPoint,
		Root:       root,
	}
}

// ConfigureClient writes the process-wide client defaults.
func (b *Bootstrap) ConfigureClient() error {
	if err := apiclient.SetDefaults(apiclient.Config{BaseURL: b.BaseURL}); err != nil {
		return fmt.Errorf("configure client defaults: %w", err)
	}
	return nil
}

// Run configures the client and then mounts the root component into doc.
// A missing mount point is returned as ui.ErrMountPointNotFound.
func (b *Bootstrap) Run(doc *html.Node) error {
	if err := b.ConfigureClient(); err != nil {
		return err
	}
	return ui.Mount(doc, b.MountPoint, b.Root)
}
