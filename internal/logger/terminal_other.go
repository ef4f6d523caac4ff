//go:build !linux && !darwin

package logger

// isTerminal always reports false; colored output is only enabled on
// platforms where the terminal check is implemented.
func isTerminal(uintptr) bool {
	return false
}
