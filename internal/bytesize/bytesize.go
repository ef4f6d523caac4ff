// Package bytesize parses and formats human-readable byte quantities such
// as "10Gi" or "500MB". It is used for quota and size limits in the
// configuration file and on the command line.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a size in bytes.
//
// Accepted forms: plain numbers ("1024"), binary units ×1024 (Ki, KiB, Mi,
// MiB, Gi, GiB, Ti, TiB), decimal units ×1000 (K, KB, M, MB, G, GB, T, TB)
// and "B". Units are case-insensitive and fractions are allowed ("1.5Gi").
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"": B, "b": B,
	"k": KB, "kb": KB, "m": MB, "mb": MB, "g": GB, "gb": GB, "t": TB, "tb": TB,
	"ki": KiB, "kib": KiB, "mi": MiB, "mib": MiB, "gi": GiB, "gib": GiB, "ti": TiB, "tib": TiB,
}

// Parse parses a human-readable byte size.
func Parse(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	numPart, unitPart := trimmed, ""
	if split >= 0 {
		numPart, unitPart = trimmed[:split], strings.TrimSpace(trimmed[split:])
	}
	if numPart == "" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	multiplier, ok := units[strings.ToLower(unitPart)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit %q in %q", unitPart, s)
	}

	if !strings.Contains(numPart, ".") {
		n, err := strconv.ParseUint(numPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		if n != 0 && uint64(multiplier) > math.MaxUint64/n {
			return 0, fmt.Errorf("byte size %q overflows", s)
		}
		return ByteSize(n) * multiplier, nil
	}

	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	total := f * float64(multiplier)
	if total >= math.MaxUint64 {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize(total), nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) ByteSize {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// UnmarshalText implements encoding.TextUnmarshaler, so ByteSize fields
// decode directly from YAML and mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler using the exact byte count
// so a saved config parses back to the same value.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a rounded binary-unit representation such as "1.50GiB".
func (b ByteSize) String() string {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		if b >= u.size {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}

// Int64 returns the size as int64, saturating at math.MaxInt64.
func (b ByteSize) Int64() int64 {
	if uint64(b) > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(b)
}

// Format renders n bytes for display; non-positive values print as "-" when
// unlimited is true, which is how quotas of 0 are shown.
func Format(n int64, unlimited bool) string {
	if n <= 0 && unlimited {
		return "-"
	}
	if n < 0 {
		n = 0
	}
	return ByteSize(n).String()
}
