package postal

import (
	"context"
	"sync"
)

// Manager provides programmatic access to libpostal model management.
// All methods are safe for concurrent use.
// For CLI integration, use NewCommand instead.
type Manager interface {
	// DownloadModel resolves a model version to a complete data directory,
	// downloading, verifying, and extracting any missing components.
	// Returns the directory immediately, with no network access, when the
	// version is already complete in the cache (unless WithForce is given).
	DownloadModel(ctx context.Context, version string, opts ...DownloadOption) (string, error)

	// Initialize resolves the effective data directory and hands it to the
	// native libpostal library, exactly once per process. Resolution order:
	// the LIBPOSTAL_DATA_DIR environment variable (which must name a
	// complete directory, else ErrDataNotFound), then DownloadModel.
	// A repeat call with the same version is a no-op; a repeat call with a
	// different version returns ErrAlreadyInitialized.
	Initialize(ctx context.Context, version string, opts ...DownloadOption) error

	// InitializationState returns the process-wide initialization state.
	InitializationState() InitState

	// ListAvailable returns the model versions declared in the manifest,
	// sorted.
	ListAvailable(ctx context.Context) ([]string, error)

	// ListInstalled returns the complete model versions found in the cache.
	// Purely local; never touches the network.
	ListInstalled() ([]InstalledModel, error)

	// Path returns the data directory of an installed, complete model
	// version. Returns ErrDataNotFound if the version is absent or
	// incomplete.
	Path(version string) (string, error)

	// Verify re-checks a cached version structurally and reports missing
	// components as ErrIncompleteInstallation. Re-download with WithForce
	// to repair.
	Verify(version string) error

	// Remove deletes a cached model version.
	Remove(version string) error

	// CacheRoot returns the resolved cache root directory.
	CacheRoot() string
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// cfg holds the module configuration.
	cfg Config

	// httpClient is used for all HTTP requests.
	httpClient HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// storage handles local cache filesystem operations.
	storage storageInterface

	// manifests fetches and validates the remote manifest.
	manifests *manifestClient

	// setup hands the resolved data directory to the native library.
	setup SetupFunc

	// downloadMu serializes in-process download operations.
	downloadMu sync.Mutex
}

// Ensure manager implements Manager.
var _ Manager = (*manager)(nil)

// NewManager creates a new Manager with the given configuration.
func NewManager(cfg Config, opts ...ManagerOption) (Manager, error) {
	if cfg.AppName == "" {
		cfg.AppName = "libpostal"
	}
	if cfg.ManifestURL == "" {
		cfg.ManifestURL = DefaultManifestURL
	}

	mcfg := newManagerConfig()
	for _, opt := range opts {
		opt(mcfg)
	}

	storage, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	return &manager{
		cfg:        cfg,
		httpClient: mcfg.httpClient,
		logger:     mcfg.logger,
		storage:    storage,
		manifests:  newManifestClient(cfg.ManifestURL, mcfg.httpClient, mcfg.logger),
		setup:      mcfg.setup,
	}, nil
}
