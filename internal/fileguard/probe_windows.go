//go:build windows

package fileguard

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// probeExclusive opens the file with no sharing allowed. Windows refuses
// the open with a sharing violation while any other handle is open.
func probeExclusive(path string, write bool) error {
	access := uint32(windows.GENERIC_READ)
	if write {
		access |= windows.GENERIC_WRITE
	}

	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}

	h, err := windows.CreateFile(
		name,
		access,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return fmt.Errorf("%w: %v", errHeld, err)
		}
		return err
	}

	return windows.CloseHandle(h)
}
