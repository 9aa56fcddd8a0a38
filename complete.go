package postal

import (
	"os"
	"path/filepath"
)

// isComplete reports whether versionDir contains every component of spec:
// each component's directory must exist and be non-empty. Absence of any one
// component makes the whole version incomplete.
//
// The check is structural only. Checksums were verified at download time and
// re-hashing gigabytes of model data on every process start would make the
// cache-hit path unusable.
func isComplete(versionDir string, spec ModelVersionSpec) bool {
	return len(missingComponents(versionDir, spec.ComponentNames())) == 0
}

// missingComponents returns the names from components whose directories are
// absent or empty under versionDir.
func missingComponents(versionDir string, components []string) []string {
	var missing []string
	for _, name := range components {
		if !dirNonEmpty(filepath.Join(versionDir, name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

// hasRequiredComponents reports whether dir contains the canonical libpostal
// component set. Used to validate a directory when no manifest is available,
// such as an explicit LIBPOSTAL_DATA_DIR override.
func hasRequiredComponents(dir string) bool {
	return len(missingComponents(dir, requiredComponents)) == 0
}

// dirNonEmpty reports whether path is a directory with at least one entry.
func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) > 0
}
