//go:build linux || darwin || freebsd

package diskstats

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Statfs measures filesystems with statfs(2).
type Statfs struct{}

// Stats implements Provider. Free counts the blocks available to
// unprivileged users, so reserved root blocks show up as used.
func (Statfs) Stats(path string) (Stats, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return Stats{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := int64(fs.Bsize)
	total := int64(fs.Blocks) * bsize
	free := int64(fs.Bavail) * bsize
	used := total - int64(fs.Bfree)*bsize
	return Stats{Total: total, Used: used, Free: free}, nil
}
