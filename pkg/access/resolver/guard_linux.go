//go:build linux

package resolver

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
)

// openBeneath opens rel relative to root with openat2(RESOLVE_BENEATH), so
// the kernel rejects any symlink or ".." that would leave root, closing the
// window between Recheck and the open. Kernels (or seccomp profiles) without
// openat2 fall back to an O_NOFOLLOW open of the rechecked path.
func openBeneath(root, rel string, flag int, perm fs.FileMode) (*os.File, error) {
	dirfd, err := unix.Open(root, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: root, Err: err}
	}
	defer func() { _ = unix.Close(dirfd) }()

	how := &unix.OpenHow{
		Flags:   uint64(flag) | unix.O_CLOEXEC,
		Mode:    uint64(syscallMode(perm)),
		Resolve: unix.RESOLVE_BENEATH | unix.RESOLVE_NO_MAGICLINKS,
	}
	fd, err := unix.Openat2(dirfd, rel, how)
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), filepath.Join(root, rel)), nil
	case errors.Is(err, unix.EXDEV):
		return nil, accesserrors.NewPathEscapeError(rel)
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EPERM):
		return os.OpenFile(filepath.Join(root, rel), flag|unix.O_NOFOLLOW, perm)
	default:
		return nil, &os.PathError{Op: "openat2", Path: filepath.Join(root, rel), Err: err}
	}
}

func syscallMode(perm fs.FileMode) uint32 {
	return uint32(perm.Perm())
}
