//go:build !linux

package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
)

// openBeneath opens the rechecked path. Platforms without openat2 rely on
// the Recheck performed just before.
func openBeneath(root, rel string, flag int, perm fs.FileMode) (*os.File, error) {
	return os.OpenFile(filepath.Join(root, rel), flag, perm)
}
