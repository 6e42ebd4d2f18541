package conf

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joelmire/DESAttack/pkg/differential"
)

const builtin = `# S-box 1, 0xC -> 0xD
1
0080800260000000
c
d
0x60000000

# S-box 2, 0x4 -> 0x7
2
4000401002000000
4   # input
7   # output
02000000
`

func TestParse(t *testing.T) {
	t.Parallel()

	conf, err := Parse("builtin", strings.NewReader(builtin))
	require.NoError(t, err)
	require.Equal(t, differential.Builtin(), conf.Characteristics)
}

func TestNewConf(t *testing.T) {
	t.Parallel()

	name := filepath.Join(t.TempDir(), "characteristics.conf")
	require.NoError(t, os.WriteFile(name, []byte(builtin), 0o600))

	conf, err := NewConf(name)
	require.NoError(t, err)
	require.Len(t, conf.Characteristics, 2)

	_, err = NewConf(filepath.Join(t.TempDir(), "missing.conf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{
			name:  "empty",
			input: "# nothing here\n\n",
			err:   ErrEmpty,
		},
		{
			name:  "truncated",
			input: "1\n0080800260000000\nc\n",
			err:   io.ErrUnexpectedEOF,
		},
		{
			name:  "sbox out of range",
			input: "9\n0\nc\nd\n0\n",
			err:   differential.ErrInvalidSBox,
		},
		{
			name:  "huge sbox",
			input: "ffff\n0\nc\nd\n0\n",
			err:   differential.ErrInvalidSBox,
		},
		{
			name:  "zero input difference",
			input: "1\n0\n0\nd\n0\n",
			err:   differential.ErrZeroInputDifference,
		},
		{
			name:  "wide output difference",
			input: "1\n0\nc\n1d\n0\n",
			err:   differential.ErrDifferenceRange,
		},
		{
			name:  "oversized difference",
			input: "1\n0\n100\nd\n0\n",
			err:   differential.ErrDifferenceRange,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(test.name,
				strings.NewReader(test.input))
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestParseMalformedHex(t *testing.T) {
	t.Parallel()

	_, err := Parse("bad.conf", strings.NewReader("1\nnot hex\n"))
	require.Error(t, err)
	require.ErrorContains(t, err, "bad.conf:2")
	require.ErrorContains(t, err, "ΔP")
}
