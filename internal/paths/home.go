// Package paths normalizes filesystem paths typed into the form by the user.
package paths

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	rootMu     sync.RWMutex
	homeRoot   string
	homeLoaded bool
)

// SetHome overrides the directory "~" expands to. An empty value restores the
// current user's home directory.
func SetHome(dir string) {
	rootMu.Lock()
	defer rootMu.Unlock()
	if strings.TrimSpace(dir) == "" {
		homeRoot = ""
		homeLoaded = false
		return
	}
	homeRoot = filepath.Clean(dir)
	homeLoaded = true
}

// Home returns the directory "~" expands to, or "" when it is unknown.
func Home() string {
	rootMu.RLock()
	if homeLoaded {
		defer rootMu.RUnlock()
		return homeRoot
	}
	rootMu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	rootMu.Lock()
	defer rootMu.Unlock()
	if !homeLoaded {
		homeRoot = home
		homeLoaded = true
	}
	return homeRoot
}

// Expand replaces a leading "~" or "~/" with the home directory. URLs, other
// users' homes ("~bob") and ordinary paths are returned unchanged.
func Expand(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") && !strings.HasPrefix(trimmed, `~\`) {
		return p
	}
	home := Home()
	if home == "" {
		return p
	}
	if trimmed == "~" {
		return home
	}
	return filepath.Join(home, trimmed[2:])
}

// ExpandAll applies Expand to each element and returns a new slice.
func ExpandAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Expand(v)
	}
	return out
}
