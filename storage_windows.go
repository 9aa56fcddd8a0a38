//go:build windows

package postal

import (
	"fmt"
	"os"
	"path/filepath"
)

// getDefaultCacheDir returns the default cache directory for Windows:
// %LOCALAPPDATA%\<appName>\ with a %USERPROFILE% fallback.
func getDefaultCacheDir(appName string) (string, error) {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("LOCALAPPDATA not set and no home directory: %w", err)
	}
	return filepath.Join(home, "AppData", "Local", appName), nil
}
