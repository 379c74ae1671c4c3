package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePosition(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want int
	}{
		{"windows path", `C:\logs\3-20240101-xyz.log`, 2},
		{"unix path", "/mnt/ict/logs/1-20240101-abc.log", 0},
		{"bare name", "12-anything", 11},
		{"mixed separators", `\\server\share/logs\4-x.log`, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePosition(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerivePositionMalformed(t *testing.T) {
	refs := []string{
		"nodash.log",
		"",
		`C:\logs\`,
		"x-20240101.log",
		"-20240101.log",
		"0-20240101.log",
		"+2-20240101.log",
		"/logs/3/nodash.log",
	}

	for _, ref := range refs {
		_, err := DerivePosition(ref)
		assert.ErrorIs(t, err, ErrMalformedReference, "ref %q", ref)
	}
}

func TestGenerateSiblingsContainsScannedSerial(t *testing.T) {
	serial := "ABCDEF0001234GHI"

	for n := 1; n <= 6; n++ {
		for p := 0; p < n; p++ {
			serials, err := GenerateSiblings(serial, p, n)
			require.NoError(t, err)
			require.Len(t, serials, n)
			assert.Equal(t, serial, serials[p])
		}
	}
}

func TestGenerateSiblingsIncreasingSequence(t *testing.T) {
	serials, err := GenerateSiblings("ABCDEF0001234GHI", 2, 4)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ABCDEF0001232GHI",
		"ABCDEF0001233GHI",
		"ABCDEF0001234GHI",
		"ABCDEF0001235GHI",
	}, serials)

	prev := -1
	for _, s := range serials {
		seq, err := Sequence(s)
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		assert.Len(t, s[6:13], 7)
		prev = seq
	}
}

func TestGenerateSiblingsKeepsPadding(t *testing.T) {
	serials, err := GenerateSiblings("XXXXXX0000001P", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"XXXXXX0000000P", "XXXXXX0000001P", "XXXXXX0000002P"}, serials)
}

func TestGenerateSiblingsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		serial   string
		position int
		size     int
	}{
		{"too short", "ABCDEF00012", 0, 2},
		{"non numeric", "ABCDEF00A1234GHI", 0, 2},
		{"signed", "ABCDEF+001234GHI", 0, 2},
		{"below position", "ABCDEF0000001GHI", 3, 4},
		{"position outside panel", "ABCDEF0001234GHI", 4, 4},
		{"negative position", "ABCDEF0001234GHI", -1, 4},
		{"zero panel", "ABCDEF0001234GHI", 0, 0},
		{"overflow", "ABCDEF9999999GHI", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSiblings(tt.serial, tt.position, tt.size)
			assert.ErrorIs(t, err, ErrMalformedSerial)
		})
	}
}
