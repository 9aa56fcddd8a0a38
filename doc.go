// Package postal manages the versioned data models required by the libpostal
// address-parsing library.
//
// libpostal cannot operate without several hundred megabytes of trained model
// data on local disk. This package resolves a symbolic model version (such as
// "default" or "senzing") to a validated, complete directory of model
// artifacts, downloading, checksum-verifying, and extracting them on demand,
// and hands that directory to the native library exactly once per process.
//
// The package serves two primary use cases:
//
//  1. Programmatic API via the Manager interface - Applications call
//     NewManager and then Initialize (or DownloadModel for download-only use).
//
//  2. Embeddable CLI via NewCommand - Parent CLI tools can attach a complete
//     "data" subcommand tree to their Cobra root command, providing commands
//     like "mytool data download", "mytool data list", etc.
//
// # Thread Safety
//
// The Manager interface is fully thread-safe, and the on-disk cache is safe
// against concurrent population by independent processes: all writes go
// through a temporary-then-atomic-rename pattern, so readers see either the
// old complete state or the new complete state, never an intermediate one.
//
// # Content Verification
//
// Every component archive is verified against the SHA-256 digest declared in
// the model manifest before it is extracted. A checksum mismatch is never
// retried automatically; it is surfaced as ErrIntegrity.
//
// # Storage
//
// Models are cached in platform-appropriate directories:
//   - Linux: $XDG_CACHE_HOME/libpostal/ or ~/.cache/libpostal/
//   - macOS: ~/Library/Caches/libpostal/
//   - Windows: %LOCALAPPDATA%\libpostal\
//
// The cache location can be overridden via Config.CacheDir or the
// LIBPOSTAL_CACHE_DIR environment variable. A fully populated data directory
// can be supplied directly via LIBPOSTAL_DATA_DIR, which bypasses the
// resolver entirely.
package postal
