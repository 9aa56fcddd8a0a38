package postal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DownloadModel resolves a model version to a complete data directory.
func (m *manager) DownloadModel(ctx context.Context, version string, opts ...DownloadOption) (string, error) {
	cfg := newDownloadConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return m.ensureModel(ctx, version, cfg)
}

// ensureModel implements the resolution algorithm: completeness fast path,
// manifest lookup, per-component download of what is missing, final
// completeness re-check.
func (m *manager) ensureModel(ctx context.Context, version string, cfg *downloadConfig) (string, error) {
	versionDir, err := m.storage.versionDir(version)
	if err != nil {
		return "", err
	}

	// Cache hit: no network access. The marker is only a hint; the
	// component directories it names are verified structurally.
	if !cfg.force {
		if _, _, ok := m.installedComponents(versionDir); ok {
			if m.logger != nil {
				m.logger.Debug("model complete in cache", "version", version, "path", versionDir)
			}
			return versionDir, nil
		}
	}

	// Look the version up before touching the filesystem, so an unknown
	// version fails without creating anything.
	manifest, err := m.manifests.fetch(ctx)
	if err != nil {
		return "", err
	}
	spec, ok := manifest[version]
	if !ok {
		return "", fmt.Errorf("%w: %q (available: %v)", ErrUnknownModelVersion, version, manifest.Versions())
	}

	m.downloadMu.Lock()
	defer m.downloadMu.Unlock()

	if err := m.storage.ensureDir(versionDir); err != nil {
		return "", err
	}

	// Advisory cross-process lock. Correctness does not depend on it (all
	// publishes are atomic renames); it only avoids redundant downloads
	// when several processes race to populate the same version.
	lock, err := newFileLock(filepath.Join(versionDir, ".download.lock"), DefaultLockTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: creating download lock: %v", ErrStorage, err)
	}
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("%w: acquiring download lock: %v", ErrStorage, err)
	}
	defer lock.Unlock()

	// Another process may have finished the install while we waited.
	if !cfg.force && isComplete(versionDir, spec) {
		return versionDir, nil
	}

	var jobs []componentJob
	for _, comp := range spec.Components {
		destDir := filepath.Join(versionDir, comp.Name)
		if !cfg.force && dirNonEmpty(destDir) {
			continue
		}
		jobs = append(jobs, componentJob{spec: comp, destDir: destDir})
	}

	fetcher := newComponentFetcher(m.httpClient, m.storage, m.logger)
	if err := fetcher.fetchAll(ctx, version, jobs, cfg.concurrency, cfg.progressFn); err != nil {
		return "", fmt.Errorf("downloading model %s: %w", version, err)
	}

	// Never report an incomplete installation as success.
	if missing := missingComponents(versionDir, spec.ComponentNames()); len(missing) > 0 {
		return "", fmt.Errorf("%w: version %s missing components %v", ErrIncompleteInstallation, version, missing)
	}

	marker := completeMarker{
		Version:     version,
		Components:  spec.ComponentNames(),
		InstalledAt: time.Now().UTC(),
	}
	if err := m.storage.writeMarker(versionDir, marker); err != nil {
		// Advisory only; the structural check still recognizes the install.
		if m.logger != nil {
			m.logger.Warn("failed to write completeness marker", "version", version, "error", err)
		}
	}

	if m.logger != nil {
		m.logger.Info("model installed", "version", version, "path", versionDir)
	}
	return versionDir, nil
}

// installedComponents reports whether versionDir holds a complete install,
// returning the component names and install time when it does. Prefers the
// marker's component list (cross-checked against the directories it names);
// falls back to the canonical component set for marker-less directories.
func (m *manager) installedComponents(versionDir string) ([]string, time.Time, bool) {
	if marker, ok := m.storage.readMarker(versionDir); ok && len(marker.Components) > 0 {
		if len(missingComponents(versionDir, marker.Components)) == 0 {
			return marker.Components, marker.InstalledAt, true
		}
		// Marker without matching content: treated as absent, re-download
		// resolves it.
	}
	if hasRequiredComponents(versionDir) {
		return append([]string(nil), requiredComponents...), time.Time{}, true
	}
	return nil, time.Time{}, false
}

// ListAvailable returns the model versions declared in the manifest, sorted.
func (m *manager) ListAvailable(ctx context.Context) ([]string, error) {
	manifest, err := m.manifests.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return manifest.Versions(), nil
}

// ListInstalled returns the complete model versions found in the cache.
func (m *manager) ListInstalled() ([]InstalledModel, error) {
	entries, err := os.ReadDir(m.storage.cacheRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: scanning cache: %v", ErrStorage, err)
	}

	var installed []InstalledModel
	for _, entry := range entries {
		if !entry.IsDir() || validateVersion(entry.Name()) != nil {
			continue
		}
		versionDir := filepath.Join(m.storage.cacheRoot(), entry.Name())
		components, installedAt, ok := m.installedComponents(versionDir)
		if !ok {
			continue
		}
		installed = append(installed, InstalledModel{
			Version:     entry.Name(),
			Path:        versionDir,
			Components:  components,
			InstalledAt: installedAt,
		})
	}
	return installed, nil
}

// Path returns the data directory of an installed, complete model version.
func (m *manager) Path(version string) (string, error) {
	versionDir, err := m.storage.versionDir(version)
	if err != nil {
		return "", err
	}
	if _, _, ok := m.installedComponents(versionDir); !ok {
		return "", fmt.Errorf("%w: version %q", ErrDataNotFound, version)
	}
	return versionDir, nil
}

// Verify re-checks a cached version structurally.
func (m *manager) Verify(version string) error {
	versionDir, err := m.storage.versionDir(version)
	if err != nil {
		return err
	}
	if !dirNonEmpty(versionDir) {
		return fmt.Errorf("%w: version %q", ErrDataNotFound, version)
	}

	components := requiredComponents
	if marker, ok := m.storage.readMarker(versionDir); ok && len(marker.Components) > 0 {
		components = marker.Components
	}
	if missing := missingComponents(versionDir, components); len(missing) > 0 {
		return fmt.Errorf("%w: version %s missing components %v", ErrIncompleteInstallation, version, missing)
	}
	return nil
}

// Remove deletes a cached model version.
func (m *manager) Remove(version string) error {
	versionDir, err := m.storage.versionDir(version)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(versionDir); os.IsNotExist(statErr) {
		return fmt.Errorf("%w: version %q", ErrDataNotFound, version)
	}
	if err := m.storage.removeVersionDir(versionDir); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Info("model removed", "version", version, "path", versionDir)
	}
	return nil
}

// CacheRoot returns the resolved cache root directory.
func (m *manager) CacheRoot() string {
	return m.storage.cacheRoot()
}
