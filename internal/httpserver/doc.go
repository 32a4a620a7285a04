// Package httpserver runs the dev server's listener with a graceful
// shutdown.
package httpserver
