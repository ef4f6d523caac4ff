package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
)

// The Guard functions are the only sanctioned way to touch the filesystem
// for a Resolved path. Each one re-resolves the path right before the call.

// Open opens the file for reading.
func Open(r *Resolved) (*os.File, error) {
	return OpenFile(r, os.O_RDONLY, 0)
}

// OpenFile opens the file with the given flags. The open itself refuses to
// follow symlinks out of r.IORoot().
func OpenFile(r *Resolved, flag int, perm fs.FileMode) (*os.File, error) {
	physical, err := r.Recheck()
	if err != nil {
		return nil, err
	}
	root := r.IORoot()
	rel, err := filepath.Rel(root, physical)
	if err != nil {
		return nil, err
	}
	return openBeneath(root, rel, flag, perm)
}

// Stat returns file info without following a final symlink.
func Stat(r *Resolved) (fs.FileInfo, error) {
	physical, err := r.Recheck()
	if err != nil {
		return nil, err
	}
	return os.Lstat(physical)
}

// ReadDir lists the directory.
func ReadDir(r *Resolved) ([]fs.DirEntry, error) {
	f, err := OpenFile(r, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return f.ReadDir(-1)
}

// Remove removes a file or empty directory. A symlink is removed itself,
// never its target.
func Remove(r *Resolved) error {
	physical, err := r.Recheck()
	if err != nil {
		return err
	}
	return os.Remove(physical)
}

// MkdirAll creates the directory and its parents, then verifies the result
// is still contained.
func MkdirAll(r *Resolved, perm fs.FileMode) error {
	physical, err := r.Recheck()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(physical, perm); err != nil {
		return err
	}
	_, err = r.Recheck()
	return err
}

// Rename moves from to to. Both must be resolved in the same pool.
func Rename(from, to *Resolved) error {
	src, err := from.Recheck()
	if err != nil {
		return err
	}
	dst, err := to.Recheck()
	if err != nil {
		return err
	}
	return os.Rename(src, dst)
}
