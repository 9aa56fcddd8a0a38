package postal

import (
	"os"
	"path/filepath"
	"testing"
)

// populate creates non-empty component directories under dir.
func populate(t *testing.T, dir string, components ...string) {
	t.Helper()
	for _, comp := range components {
		compDir := filepath.Join(dir, comp)
		if err := os.MkdirAll(compDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(compDir, "data.dat"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMissingComponents(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, ComponentBase, ComponentParser)

	missing := missingComponents(dir, requiredComponents)
	if len(missing) != 1 || missing[0] != ComponentLanguageClassifier {
		t.Errorf("missing = %v, want [%s]", missing, ComponentLanguageClassifier)
	}

	populate(t, dir, ComponentLanguageClassifier)
	if missing := missingComponents(dir, requiredComponents); len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestMissingComponentsEmptyDirCounts(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, ComponentBase, ComponentParser, ComponentLanguageClassifier)

	// An existing but empty component directory is as good as absent.
	empty := filepath.Join(dir, ComponentParser)
	if err := os.RemoveAll(empty); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	missing := missingComponents(dir, requiredComponents)
	if len(missing) != 1 || missing[0] != ComponentParser {
		t.Errorf("missing = %v, want [%s]", missing, ComponentParser)
	}
}

func TestHasRequiredComponents(t *testing.T) {
	dir := t.TempDir()
	if hasRequiredComponents(dir) {
		t.Error("empty directory reported complete")
	}
	if hasRequiredComponents(filepath.Join(dir, "does-not-exist")) {
		t.Error("nonexistent directory reported complete")
	}

	populate(t, dir, requiredComponents...)
	if !hasRequiredComponents(dir) {
		t.Error("fully populated directory reported incomplete")
	}
}

func TestIsComplete(t *testing.T) {
	spec := ModelVersionSpec{
		Version: "v1",
		Components: []ComponentSpec{
			{Name: "base"},
			{Name: "parser"},
			{Name: "custom_extra"},
		},
	}

	dir := t.TempDir()
	populate(t, dir, "base", "parser")
	if isComplete(dir, spec) {
		t.Error("incomplete install reported complete")
	}

	populate(t, dir, "custom_extra")
	if !isComplete(dir, spec) {
		t.Error("complete install reported incomplete")
	}
}
