package apiclient

import (
	"errors"
	"sync"
)

// ErrDefaultsFrozen is returned when SetDefaults is called again with a
// different configuration.
var ErrDefaultsFrozen = errors.New("apiclient: defaults already configured")

// Config is the client configuration shared by every Client that does not
// carry its own base URL.
type Config struct {
	BaseURL string
}

var (
	defaultsMu  sync.RWMutex
	defaults    Config
	defaultsSet bool
)

// SetDefaults stores the process-wide defaults. The first call wins; a later
// call with an identical Config is a no-op and any other returns
// ErrDefaultsFrozen.
func SetDefaults(cfg Config) error {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()

	if defaultsSet {
		if defaults == cfg {
			return nil
		}
		return ErrDefaultsFrozen
	}

	defaults = cfg
	defaultsSet = true
	return nil
}

// Defaults returns the process-wide defaults and whether they were set.
func Defaults() (Config, bool) {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return defaults, defaultsSet
}

func resetDefaults() {
	defaultsMu.Lock()
	defaults = Config{}
	defaultsSet = false
	defaultsMu.Unlock()
}
