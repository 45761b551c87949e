//go:build unix

package fileguard

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// probeExclusive tries a non-blocking exclusive advisory lock and releases
// it immediately. flock accepts LOCK_EX on a read-only descriptor.
func probeExclusive(path string, write bool) error {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errHeld
		}
		return fmt.Errorf("flock: %w", err)
	}

	return unix.Flock(fd, unix.LOCK_UN)
}
