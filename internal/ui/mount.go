package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrMountPointNotFound = errors.New("mount point not found")
	ErrInvalidSelector    = errors.New("mount selector must be an id selector")
)

// RootAttr marks the element a component was mounted into.
const RootAttr = "data-app-root"

// Component renders itself as children of its mount point.
type Component interface {
	Name() string
	Render(mountPoint *html.Node) error
}

// ParseDocument parses an HTML page.
func ParseDocument(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// RenderDocument writes doc back out as HTML.
func RenderDocument(w io.Writer, doc *html.Node) error {
	return html.Render(w, doc)
}

// Mount renders c into the first element matched by selector. The document is
// left untouched when the mount point is missing.
func Mount(doc *html.Node, selector string, c Component) error {
	id, err := parseSelector(selector)
	if err != nil {
		return err
	}

	target := FindByID(doc, id)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrMountPointNotFound, selector)
	}

	// Render into a detached copy so a failed render leaves doc as it was.
	staged := &html.Node{
		Type:      html.ElementNode,
		DataAtom:  target.DataAtom,
		Data:      target.Data,
		Namespace: target.Namespace,
		Attr:      append([]html.Attribute(nil), target.Attr...),
	}
	if err := c.Render(staged); err != nil {
		return fmt.Errorf("render %s: %w", c.Name(), err)
	}

	for child := target.FirstChild; child != nil; {
		next := child.NextSibling
		target.RemoveChild(child)
		child = next
	}
	for child := staged.FirstChild; child != nil; {
		next := child.NextSibling
		staged.RemoveChild(child)
		target.AppendChild(child)
		child = next
	}
	target.Attr = staged.Attr
	setAttr(target, RootAttr, c.Name())

	return nil
}

// FindByID returns the first element in document order whose id is id.
func FindByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := FindByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func parseSelector(selector string) (string, error) {
	id, ok := strings.CutPrefix(strings.TrimSpace(selector), "#")
	if !ok || id == "" || strings.ContainsAny(id, " .#[>:") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
	}
	return id, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// element builds an element node with alternating key/value attributes.
func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
