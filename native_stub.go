//go:build !cgo

package postal

import "fmt"

// nativeSetup is unavailable without cgo. Builds that cannot link the
// libpostal C library must inject their own setup entry point via
// WithNativeSetup.
func nativeSetup(datadir string) error {
	return fmt.Errorf("built without cgo: cannot hand %s to libpostal (rebuild with CGO_ENABLED=1 or use WithNativeSetup)", datadir)
}
