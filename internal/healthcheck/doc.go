// Package healthcheck watches whether the backend behind each proxy target
// is accepting connections. The backend exposes no health endpoint, so a
// probe is a plain TCP dial to the target's host and port.
package healthcheck
