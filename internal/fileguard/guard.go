// Package fileguard refuses to start a run while any file it will touch is
// held open by another process, typically a spreadsheet left open in a
// desktop office suite.
package fileguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LockedError names the first path found locked.
type LockedError struct {
	Path   string
	Reason string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("file %s is open in another program (%s); close it and run again", e.Path, e.Reason)
}

// IsLocked reports whether err (or any error in its chain) is a LockedError.
func IsLocked(err error) bool {
	var lockedErr *LockedError
	return errors.As(err, &lockedErr)
}

// errHeld is returned by probe implementations when another process holds
// the file.
var errHeld = errors.New("held by another process")

// Guard checks files before a run touches them.
type Guard struct {
	probe    func(path string, write bool) error
	writable map[string]bool
}

// New returns a Guard using the platform exclusive-open probe. Files the run
// only reads are probed read-only; the paths listed in writable are also
// probed for write access.
func New(writable ...string) *Guard {
	g := &Guard{probe: probeExclusive, writable: make(map[string]bool, len(writable))}
	for _, p := range writable {
		if p != "" {
			g.writable[filepath.Clean(p)] = true
		}
	}
	return g
}

// Check probes each path in order and returns a *LockedError for the first
// one that is locked. Paths that do not exist yet pass. Empty paths are
// skipped.
func (g *Guard) Check(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}

		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("checking %s: is a directory", p)
		}

		if owner := ownerFile(p); owner != "" {
			return &LockedError{Path: p, Reason: "lock file " + filepath.Base(owner) + " present"}
		}

		if err := g.probe(p, g.writable[filepath.Clean(p)]); err != nil {
			if errors.Is(err, errHeld) {
				return &LockedError{Path: p, Reason: err.Error()}
			}
			return fmt.Errorf("probing %s: %w", p, err)
		}
	}
	return nil
}

// ownerFile returns the office-suite owner file that marks path as open,
// or "" when there is none. MS Office writes "~$name" (replacing the first
// two characters on long names); LibreOffice writes ".~lock.name#".
func ownerFile(path string) string {
	dir, name := filepath.Split(path)

	candidates := []string{
		filepath.Join(dir, "~$"+name),
		filepath.Join(dir, ".~lock."+name+"#"),
	}
	if len([]rune(name)) > 2 {
		candidates = append(candidates, filepath.Join(dir, "~$"+string([]rune(name)[2:])))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
