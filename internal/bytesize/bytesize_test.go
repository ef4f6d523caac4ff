package bytesize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "512B", 512, false},
		{"kibibytes", "1Ki", KiB, false},
		{"mebibytes long", "100MiB", 100 * MiB, false},
		{"gibibytes", "10Gi", 10 * GiB, false},
		{"tebibytes", "2TiB", 2 * TiB, false},
		{"kilobytes", "1KB", KB, false},
		{"megabytes", "100M", 100 * MB, false},
		{"gigabytes", "1GB", GB, false},
		{"case insensitive", "1gi", GiB, false},
		{"surrounding space", "  1Gi  ", GiB, false},
		{"space before unit", "5 MiB", 5 * MiB, false},
		{"fraction", "1.5Gi", GiB + GiB/2, false},
		{"empty", "", 0, true},
		{"unit only", "Gi", 0, true},
		{"unknown unit", "10XB", 0, true},
		{"negative", "-1Gi", 0, true},
		{"overflow", "99999999999TiB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("3Gi")))

	text, err := b.MarshalText()
	require.NoError(t, err)

	var back ByteSize
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, b, back)
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1.00KiB", KiB.String())
	assert.Equal(t, "1.50GiB", (GiB + GiB/2).String())
	assert.Equal(t, "2.00TiB", (2 * TiB).String())
}

func TestInt64Saturates(t *testing.T) {
	assert.Equal(t, int64(42), ByteSize(42).Int64())
	assert.Equal(t, int64(math.MaxInt64), ByteSize(math.MaxUint64).Int64())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "-", Format(0, true))
	assert.Equal(t, "0B", Format(0, false))
	assert.Equal(t, "1.00MiB", Format(int64(MiB), true))
}

func TestMustParsePanics(t *testing.T) {
	assert.Equal(t, 4*GiB, MustParse("4Gi"))
	assert.Panics(t, func() { MustParse("lots") })
}
