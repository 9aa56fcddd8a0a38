//go:build darwin

package postal

import (
	"os"
	"path/filepath"
)

// getDefaultCacheDir returns the default cache directory for macOS:
// ~/Library/Caches/<appName>/
func getDefaultCacheDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Caches", appName), nil
}
