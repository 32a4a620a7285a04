// Package ui mounts the terminal page's root component into the page shell.
//
// The shell is parsed with golang.org/x/net/html; Mount locates the mount
// point by id selector, clears it and lets the component render its markup
// into it. Component behaviour lives in the browser and is not modelled here.
package ui
