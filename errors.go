package postal

import "errors"

// Sentinel errors for model management operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrManifestUnavailable indicates the model manifest could not be
	// fetched and no usable embedded fallback exists.
	ErrManifestUnavailable = errors.New("postal: model manifest unavailable")

	// ErrManifestMalformed indicates the manifest was retrieved but does not
	// conform to the expected schema (missing url, missing sha256, etc).
	ErrManifestMalformed = errors.New("postal: model manifest malformed")

	// ErrUnknownModelVersion indicates the requested version does not exist
	// in the manifest.
	ErrUnknownModelVersion = errors.New("postal: unknown model version")

	// ErrInvalidVersionIdentifier indicates a version identifier that is
	// empty or contains path separators or other unsafe characters.
	ErrInvalidVersionIdentifier = errors.New("postal: invalid model version identifier")

	// ErrIntegrity indicates downloaded data failed SHA-256 verification.
	// Never retried automatically; re-fetch the manifest and retry at a
	// higher level if the mismatch may be caused by a stale manifest entry.
	ErrIntegrity = errors.New("postal: checksum verification failed")

	// ErrIncompleteInstallation indicates a model version is still missing
	// components after all downloads were processed.
	ErrIncompleteInstallation = errors.New("postal: model installation incomplete")

	// ErrDataNotFound indicates no usable libpostal data directory could be
	// resolved. Download the model with DownloadModel (or the postal-data
	// CLI), or point LIBPOSTAL_DATA_DIR at a complete data directory.
	ErrDataNotFound = errors.New("postal: libpostal data directory not found (run DownloadModel or set LIBPOSTAL_DATA_DIR)")

	// ErrNativeSetup indicates the native libpostal setup call failed for
	// the resolved data directory. Check that the directory contains intact
	// model files; re-download with force to replace corrupted data.
	ErrNativeSetup = errors.New("postal: native libpostal setup failed (check data file integrity, or re-download with force)")

	// ErrAlreadyInitialized indicates Initialize was called a second time
	// with a different model version in the same process.
	ErrAlreadyInitialized = errors.New("postal: already initialized with a different model version")

	// ErrNetwork indicates a network or connection failure.
	ErrNetwork = errors.New("postal: network error")

	// ErrStorage indicates a filesystem operation failed.
	ErrStorage = errors.New("postal: storage error")
)
