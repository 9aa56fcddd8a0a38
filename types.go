package postal

import (
	"sort"
	"time"
)

// DefaultManifestURL is the hosted manifest describing available model
// versions and their component archives.
const DefaultManifestURL = "https://raw.githubusercontent.com/riordan/pypostal/master/metadata/models.json"

// DefaultVersion is the model version used when none is specified.
const DefaultVersion = "default"

// FormatTarGz is the only archive format currently produced for model
// components.
const FormatTarGz = "tar.gz"

// Canonical component names of a libpostal model version. Every version in
// the manifest carries these three; they are also the structural check
// applied to an explicit LIBPOSTAL_DATA_DIR override, where no manifest is
// consulted.
const (
	ComponentBase               = "base"
	ComponentParser             = "parser"
	ComponentLanguageClassifier = "language_classifier"
)

// requiredComponents is the component set a data directory must contain to
// be considered usable without a manifest lookup.
var requiredComponents = []string{ComponentBase, ComponentParser, ComponentLanguageClassifier}

// Config configures the models module.
type Config struct {
	// AppName determines the cache directory name.
	// Defaults to "libpostal" so independent bindings can share one cache.
	AppName string

	// ManifestURL is the URL of the model manifest.
	// Defaults to DefaultManifestURL.
	ManifestURL string

	// CacheDir overrides the default cache directory.
	// If empty, uses the platform-appropriate default.
	// Can also be set via the LIBPOSTAL_CACHE_DIR environment variable.
	CacheDir string
}

// ComponentSpec describes one downloadable component of a model version.
type ComponentSpec struct {
	// Name is the component name, unique within a version. It is also the
	// subdirectory the component extracts into.
	Name string

	// URL is the archive download location.
	URL string

	// SHA256 is the lowercase hex-encoded digest of the archive. Mandatory;
	// a component without a checksum is rejected as malformed.
	SHA256 string

	// Format is the archive format, currently always FormatTarGz.
	Format string
}

// ModelVersionSpec is the ordered component list for one model version.
// A version is complete iff every component is present on disk; partial
// installation is never valid.
type ModelVersionSpec struct {
	// Version is the manifest key this spec was loaded from.
	Version string

	// Components lists the version's components in canonical order.
	Components []ComponentSpec
}

// Component returns the named component spec, or false if absent.
func (s ModelVersionSpec) Component(name string) (ComponentSpec, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentSpec{}, false
}

// ComponentNames returns the component names in spec order.
func (s ModelVersionSpec) ComponentNames() []string {
	names := make([]string, len(s.Components))
	for i, c := range s.Components {
		names[i] = c.Name
	}
	return names
}

// ModelManifest maps model version identifiers to their specs.
// Immutable once fetched; re-fetched on demand rather than cached in memory,
// because the manifest is updated independently of the installed package.
type ModelManifest map[string]ModelVersionSpec

// Versions returns the available version identifiers in sorted order.
func (m ModelManifest) Versions() []string {
	versions := make([]string, 0, len(m))
	for v := range m {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// InstalledModel describes a complete model version found in the cache.
type InstalledModel struct {
	// Version is the model version identifier.
	Version string

	// Path is the absolute path to the version's data directory.
	Path string

	// Components lists the component subdirectories present.
	Components []string

	// InstalledAt is when the completeness marker was written.
	// Zero if the marker is missing (contents were verified structurally).
	InstalledAt time.Time
}

// DownloadProgress reports progress during a model download.
type DownloadProgress struct {
	// Version is the model version being downloaded.
	Version string

	// Component is the component currently being processed.
	Component string

	// Phase indicates the current phase: "download", "verify", or "extract".
	Phase string

	// BytesTotal is the total bytes to download for this component.
	// Zero when the server does not report a length.
	BytesTotal int64

	// BytesCompleted is the bytes downloaded so far for this component.
	BytesCompleted int64
}

// InitState is the process-wide initialization state of the native library.
type InitState struct {
	// Initialized reports whether the native library has been set up.
	Initialized bool

	// Version is the model version the library was initialized with.
	Version string

	// Path is the data directory handed to the native library.
	Path string

	// Source is where the path came from: "environment" or "cache".
	Source string
}
