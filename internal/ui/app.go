package ui

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// App is the terminal page's root component. It lays out the output pane and
// the command line; the browser drives both.
type App struct {
	Title   string
	BaseURL string
}

func (a App) Name() string { return "App" }

func (a App) Render(mountPoint *html.Node) error {
	title := a.Title
	if title == "" {
		title = "Terminal"
	}

	root := element(atom.Div, "class", "terminal", "data-base-url", a.BaseURL)

	header := element(atom.Header, "class", "terminal-header")
	header.AppendChild(text(title))
	root.AppendChild(header)

	root.AppendChild(element(atom.Div, "class", "terminal-output", "role", "log", "aria-live", "polite"))

	form := element(atom.Form, "class", "terminal-input", "autocomplete", "off")
	prompt := element(atom.Span, "class", "terminal-prompt")
	prompt.AppendChild(text("$"))
	form.AppendChild(prompt)
	form.AppendChild(element(atom.Input, "type", "text", "name", "command", "spellcheck", "false", "autofocus", ""))
	root.AppendChild(form)

	mountPoint.AppendChild(root)
	return nil
}
