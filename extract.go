package postal

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTarGz unpacks a gzipped tar archive into destDir.
//
// The archive is parsed as untrusted input even though its checksum was
// already verified: entry names must stay inside destDir, and entry types
// other than regular files and directories (symlinks, devices) are skipped.
func extractTarGz(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: opening archive: %v", ErrStorage, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: archive is not valid gzip: %v", ErrIntegrity, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading archive: %v", ErrIntegrity, err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: creating directory %s: %v", ErrStorage, header.Name, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("%w: creating directory for %s: %v", ErrStorage, header.Name, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("%w: creating file %s: %v", ErrStorage, header.Name, err)
			}
			_, err = io.Copy(out, tr)
			closeErr := out.Close()
			if err != nil {
				return fmt.Errorf("%w: writing file %s: %v", ErrStorage, header.Name, err)
			}
			if closeErr != nil {
				return fmt.Errorf("%w: closing file %s: %v", ErrStorage, header.Name, closeErr)
			}

		default:
			// Links and special files have no place in a model archive.
			continue
		}
	}
}

// safeJoin joins an archive entry name onto destDir, rejecting absolute
// paths and any entry that would escape destDir.
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if cleaned == "." {
		return destDir, nil
	}
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: archive entry escapes destination: %q", ErrIntegrity, name)
	}
	return filepath.Join(destDir, cleaned), nil
}
