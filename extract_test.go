package postal

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeArchive writes raw tar entries (any header shape) to a gzipped tar
// file on disk and returns its path.
func writeArchive(t *testing.T, headers []*tar.Header, bodies map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range headers {
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if body, ok := bodies[hdr.Name]; ok {
			if _, err := tw.Write([]byte(body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractTarGz(t *testing.T) {
	archive := writeArchive(t, []*tar.Header{
		{Name: "sub/", Typeflag: tar.TypeDir, Mode: 0o755},
		{Name: "sub/inner.dat", Typeflag: tar.TypeReg, Mode: 0o644, Size: 5},
		{Name: "top.dat", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3},
	}, map[string]string{
		"sub/inner.dat": "inner",
		"top.dat":       "top",
	})

	dest := t.TempDir()
	if err := extractTarGz(archive, dest); err != nil {
		t.Fatalf("extractTarGz: %v", err)
	}

	for path, want := range map[string]string{
		"sub/inner.dat": "inner",
		"top.dat":       "top",
	} {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(path)))
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", path, data, want)
		}
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../escape.dat", "sub/../../escape.dat", "/abs.dat"} {
		archive := writeArchive(t, []*tar.Header{
			{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: 1},
		}, map[string]string{name: "x"})

		parent := t.TempDir()
		dest := filepath.Join(parent, "dest")
		if err := os.MkdirAll(dest, 0o755); err != nil {
			t.Fatal(err)
		}

		err := extractTarGz(archive, dest)
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("entry %q: err = %v, want ErrIntegrity", name, err)
		}
		if _, statErr := os.Stat(filepath.Join(parent, "escape.dat")); !os.IsNotExist(statErr) {
			t.Errorf("entry %q escaped the destination", name)
		}
	}
}

func TestExtractTarGzSkipsSymlinks(t *testing.T) {
	archive := writeArchive(t, []*tar.Header{
		{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd", Mode: 0o777},
		{Name: "ok.dat", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2},
	}, map[string]string{"ok.dat": "ok"})

	dest := t.TempDir()
	if err := extractTarGz(archive, dest); err != nil {
		t.Fatalf("extractTarGz: %v", err)
	}

	if _, err := os.Lstat(filepath.Join(dest, "link")); !os.IsNotExist(err) {
		t.Error("symlink entry was materialized")
	}
	if _, err := os.Stat(filepath.Join(dest, "ok.dat")); err != nil {
		t.Errorf("regular entry after symlink not extracted: %v", err)
	}
}

func TestExtractTarGzRejectsCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(path, []byte("this is not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := extractTarGz(path, t.TempDir())
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}
