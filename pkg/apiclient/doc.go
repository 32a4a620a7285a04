// Package apiclient is the shared HTTP client the terminal page uses to talk
// to its backend through the dev server.
//
// The process-wide Defaults hold the base URL every request is resolved
// against. They are written once during bootstrap and never change
// afterwards:
//
//	if err := apiclient.SetDefaults(apiclient.Config{BaseURL: "/"}); err != nil {
//		return err
//	}
//	c, err := apiclient.New("http://localhost:3000")
//	res, err := c.Execute(ctx, "pwd")
//
// Relative paths resolve as origin + base URL + path, so "/execute" issued
// against http://localhost:3000 with base URL "/" targets
// http://localhost:3000/execute. Absolute URLs bypass the base URL.
package apiclient
