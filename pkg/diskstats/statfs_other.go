//go:build !linux && !darwin && !freebsd

package diskstats

// Statfs is unavailable on this platform.
type Statfs struct{}

// Stats always fails with ErrUnsupported.
func (Statfs) Stats(string) (Stats, error) {
	return Stats{}, ErrUnsupported
}
