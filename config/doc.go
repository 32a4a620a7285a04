// Package config loads the dev server configuration from YAML files and
// environment variables. It defines the listen address, the ordered proxy
// rules that forward API paths to the backend, the client bootstrap values
// (base URL and mount point), static shell location and logging.
package config
