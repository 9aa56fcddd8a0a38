// Command postal-data manages the versioned data models required by the
// libpostal address-parsing library.
//
// Configuration is loaded from ~/.config/postal-data/config.yaml (override
// with POSTAL_CONFIG), with environment overrides:
//   - POSTAL_MANIFEST_URL: manifest location
//   - POSTAL_CACHE_DIR: cache directory (LIBPOSTAL_CACHE_DIR also works)
//   - POSTAL_LOGGING_LEVEL / POSTAL_LOGGING_FORMAT: log settings
//
// A fully populated data directory can be supplied via LIBPOSTAL_DATA_DIR,
// which bypasses downloading entirely.
package main

import (
	"fmt"
	"os"

	postal "github.com/riordan/pypostal"
)

func main() {
	cfg, err := loadConfig(os.Getenv("POSTAL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.Logging)

	cmd := postal.NewCommand(postal.Config{
		ManifestURL: cfg.ManifestURL,
		CacheDir:    cfg.CacheDir,
	}, postal.WithLogger(logrusAdapter{log: log}))
	cmd.Use = "postal-data"

	if err := cmd.Execute(); err != nil {
		os.Exit(postal.ExitCode(err))
	}
}
