package postal

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// EnvDataDir short-circuits the model resolver entirely when set: the named
// directory is used as-is, and must already be complete. An explicit
// override is a promise the caller made; if the directory is missing or
// incomplete, initialization fails fast rather than silently falling back.
const EnvDataDir = "LIBPOSTAL_DATA_DIR"

// Initialization path sources reported in InitState.
const (
	SourceEnvironment = "environment"
	SourceCache       = "cache"
)

// initGate holds the process-wide initialization state. The native library
// can only be configured once safely, so the gate is shared by every Manager
// in the process.
type initGate struct {
	mu    sync.Mutex
	state InitState
}

var gate initGate

// Initialize resolves the effective data directory and hands it to the
// native libpostal setup entry point, exactly once per process.
func (m *manager) Initialize(ctx context.Context, version string, opts ...DownloadOption) error {
	if version == "" {
		version = DefaultVersion
	}

	gate.mu.Lock()
	defer gate.mu.Unlock()

	if gate.state.Initialized {
		if gate.state.Version == version {
			// First successful call wins; same version is a no-op.
			return nil
		}
		return fmt.Errorf("%w: initialized with %q, requested %q",
			ErrAlreadyInitialized, gate.state.Version, version)
	}

	datadir, source, err := m.resolveDataDir(ctx, version, opts)
	if err != nil {
		return err
	}

	if m.logger != nil {
		m.logger.Info("initializing libpostal", "version", version, "path", datadir, "source", source)
	}

	// Not cancellable once invoked; loads every model into memory.
	if err := m.setup(datadir); err != nil {
		return fmt.Errorf("%w: data directory %s: %v", ErrNativeSetup, datadir, err)
	}

	gate.state = InitState{
		Initialized: true,
		Version:     version,
		Path:        datadir,
		Source:      source,
	}
	return nil
}

// resolveDataDir centralizes the data directory resolution order:
// environment override first, then the model resolver. First match wins.
func (m *manager) resolveDataDir(ctx context.Context, version string, opts []DownloadOption) (string, string, error) {
	if envDir := os.Getenv(EnvDataDir); envDir != "" {
		if !hasRequiredComponents(envDir) {
			return "", "", fmt.Errorf(
				"%w: %s is set to %q but it is missing required components %v",
				ErrDataNotFound, EnvDataDir, envDir, missingComponents(envDir, requiredComponents))
		}
		return envDir, SourceEnvironment, nil
	}

	cfg := newDownloadConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	dir, err := m.ensureModel(ctx, version, cfg)
	if err != nil {
		return "", "", err
	}
	return dir, SourceCache, nil
}

// InitializationState returns a copy of the process-wide initialization
// state, for inspection and testing.
func (m *manager) InitializationState() InitState {
	gate.mu.Lock()
	defer gate.mu.Unlock()
	return gate.state
}
