// Package resolver maps (pool root, zone path, virtual path) triples to
// canonical physical paths and guarantees containment.
//
// A virtual path is what users see inside a zone ("/alice/report.pdf").
// Resolution normalizes it lexically, joins it below the zone root and then
// walks the result component by component, following symlinks the way the
// kernel would. The final real path must be the zone root or lie below it,
// and the zone root must lie inside the pool root. Anything else is a
// PathEscape.
//
// Symlinks can change between authorization and I/O, so every Guard
// operation re-runs the check immediately before touching the filesystem.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
)

// maxSymlinkHops matches the Linux MAXSYMLINKS limit.
const maxSymlinkHops = 40

// Root is the virtual path of a zone's top-level directory.
const Root = "/"

// NormalizeVirtual returns the canonical form of a virtual path: a leading
// "/", no "." or ".." segments and no trailing slash (except for the root).
//
// NUL bytes and empty segments ("/a//b") are rejected as InvalidPath; a
// single trailing slash is tolerated. A ".." that would climb above the
// root is a PathEscape.
func NormalizeVirtual(p string) (string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", accesserrors.NewInvalidPathError(strings.ReplaceAll(p, "\x00", "\\0"), "path contains NUL byte")
	}

	trimmed := strings.TrimPrefix(p, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		if strings.HasPrefix(p, "//") {
			return "", accesserrors.NewInvalidPathError(p, "empty path segment")
		}
		return Root, nil
	}

	segments := strings.Split(trimmed, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "":
			return "", accesserrors.NewInvalidPathError(p, "empty path segment")
		case ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", accesserrors.NewPathEscapeError(p)
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}

// Join appends name to a normalized virtual directory path. name must be
// a single path element.
func Join(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return "", accesserrors.NewInvalidPathError(name, "invalid path element")
	}
	if dir == Root {
		return "/" + name, nil
	}
	return dir + "/" + name, nil
}

// Within reports whether virtual path p equals base or lies below it,
// comparing whole segments: "/team" contains "/team/docs" but not "/team2".
// Both arguments must be normalized.
func Within(p, base string) bool {
	return contained(p, base)
}

// contained compares with a "/" boundary so that /srv/data does not
// contain /srv/data2.
func contained(p, root string) bool {
	if root == "/" {
		return strings.HasPrefix(p, "/")
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	// Virtual is the normalized zone-relative path.
	Virtual string
	// Physical is the real path at resolution time. Do not use it for I/O
	// directly; go through Guard or call Recheck first.
	Physical string
	// ZoneRoot and PoolRoot are the real roots.
	ZoneRoot string
	PoolRoot string

	poolInput string
	zoneInput string

	// scope is the folder a Child result must stay inside.
	scope *Resolved
}

// IORoot is the directory Guard opens beneath: the enclosing folder for a
// Child result, the zone root otherwise.
func (r *Resolved) IORoot() string {
	if r.scope != nil {
		return r.scope.Physical
	}
	return r.ZoneRoot
}

// Resolve maps a virtual path inside a zone to its contained physical path.
func Resolve(poolRoot, zonePath, virtualPath string) (*Resolved, error) {
	virtual, err := NormalizeVirtual(virtualPath)
	if err != nil {
		return nil, err
	}

	realPool, realZone, zoneLexical, err := resolveRoots(poolRoot, zonePath)
	if err != nil {
		return nil, err
	}

	target := zoneLexical
	if virtual != Root {
		target = filepath.Join(zoneLexical, filepath.FromSlash(virtual[1:]))
	}
	realTarget, err := realPath(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", virtual, err)
	}
	if !contained(realTarget, realZone) || !contained(realTarget, realPool) {
		return nil, accesserrors.NewPathEscapeError(virtual)
	}

	return &Resolved{
		Virtual:   virtual,
		Physical:  realTarget,
		ZoneRoot:  realZone,
		PoolRoot:  realPool,
		poolInput: poolRoot,
		zoneInput: zonePath,
	}, nil
}

// ResolveZoneRoot validates a zone path against its pool and returns the
// real zone root. The zone directory need not exist yet.
func ResolveZoneRoot(poolRoot, zonePath string) (string, error) {
	_, realZone, _, err := resolveRoots(poolRoot, zonePath)
	return realZone, err
}

func resolveRoots(poolRoot, zonePath string) (realPool, realZone, zoneLexical string, err error) {
	if !filepath.IsAbs(poolRoot) {
		return "", "", "", fmt.Errorf("pool root %q is not absolute", poolRoot)
	}
	poolClean := filepath.Clean(poolRoot)

	zoneVirtual, err := NormalizeVirtual("/" + strings.TrimPrefix(filepath.ToSlash(zonePath), "/"))
	if err != nil {
		return "", "", "", err
	}

	realPool, err = realPath(poolClean)
	if err != nil {
		return "", "", "", fmt.Errorf("resolve pool root: %w", err)
	}

	zoneLexical = poolClean
	if zoneVirtual != Root {
		zoneLexical = filepath.Join(poolClean, filepath.FromSlash(zoneVirtual[1:]))
	}
	realZone, err = realPath(zoneLexical)
	if err != nil {
		return "", "", "", fmt.Errorf("resolve zone root: %w", err)
	}
	if !contained(realZone, realPool) {
		return "", "", "", accesserrors.NewPathEscapeError(zoneVirtual)
	}
	return realPool, realZone, zoneLexical, nil
}

// Recheck re-resolves the path against the current filesystem state and
// returns the physical path to use for I/O right now.
func (r *Resolved) Recheck() (string, error) {
	fresh, err := Resolve(r.poolInput, r.zoneInput, r.Virtual)
	if err != nil {
		return "", err
	}
	if fresh.ZoneRoot != r.ZoneRoot || fresh.PoolRoot != r.PoolRoot {
		return "", accesserrors.NewPathEscapeError(r.Virtual)
	}
	if r.scope != nil {
		folder, err := r.scope.Recheck()
		if err != nil {
			return "", err
		}
		if folder != r.scope.Physical || !contained(fresh.Physical, folder) {
			return "", accesserrors.NewPathEscapeError(r.Virtual)
		}
	}
	return fresh.Physical, nil
}

// Child resolves rel below r, for nested access under a folder. The result
// must stay inside r both lexically and physically, so a symlink inside the
// folder cannot reach a sibling elsewhere in the zone.
func (r *Resolved) Child(rel string) (*Resolved, error) {
	relNorm, err := NormalizeVirtual(rel)
	if err != nil {
		return nil, err
	}

	if relNorm == Root {
		return r, nil
	}
	virtual := r.Virtual + relNorm
	if r.Virtual == Root {
		virtual = relNorm
	}

	child, err := Resolve(r.poolInput, r.zoneInput, virtual)
	if err != nil {
		return nil, err
	}
	if !contained(child.Physical, r.Physical) {
		return nil, accesserrors.NewPathEscapeError(virtual)
	}
	child.scope = r
	return child, nil
}

// realPath evaluates symlinks in an absolute path. Components that do not
// exist yet are appended lexically, so the result for a file about to be
// created is where it will be created.
func realPath(p string) (string, error) {
	resolved := "/"
	pending := splitComponents(p)
	hops := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		switch name {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, name)
		fi, err := os.Lstat(next)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				resolved = next
				continue
			}
			return "", err
		}

		if fi.Mode()&fs.ModeSymlink == 0 {
			resolved = next
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return "", fmt.Errorf("too many levels of symbolic links: %s", p)
		}
		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(target) {
			resolved = "/"
		}
		pending = append(splitComponents(target), pending...)
	}
	return resolved, nil
}

func splitComponents(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}
