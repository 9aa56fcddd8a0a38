//go:build cgo

package postal

/*
#cgo LDFLAGS: -lpostal
#include <stdlib.h>
#include <libpostal/libpostal.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// nativeSetup hands a data directory to libpostal and loads the base,
// parser, and language-classifier models into memory. Any step failing
// aborts the whole call; libpostal keeps no partial state worth recovering.
func nativeSetup(datadir string) error {
	cdir := C.CString(datadir)
	defer C.free(unsafe.Pointer(cdir))

	if !bool(C.libpostal_setup_datadir(cdir)) {
		return fmt.Errorf("libpostal_setup_datadir failed for %s", datadir)
	}
	if !bool(C.libpostal_setup_parser_datadir(cdir)) {
		return fmt.Errorf("libpostal_setup_parser_datadir failed for %s", datadir)
	}
	if !bool(C.libpostal_setup_language_classifier_datadir(cdir)) {
		return fmt.Errorf("libpostal_setup_language_classifier_datadir failed for %s", datadir)
	}
	return nil
}
