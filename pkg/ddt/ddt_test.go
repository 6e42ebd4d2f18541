package ddt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joelmire/DESAttack/pkg/des"
)

func TestBuildInvariants(t *testing.T) {
	t.Parallel()

	for box := 1; box <= des.SBoxes; box++ {
		tbl, err := Build(box)
		require.NoError(t, err)
		require.Equal(t, box, tbl.SBox)

		for din := 0; din < Inputs; din++ {
			require.Equalf(t, Inputs, tbl.RowSum(uint8(din)),
				"box=%d din=%d", box, din)

			// Pairs are counted from both ends, so every count is
			// even.
			for dout := 0; dout < Outputs; dout++ {
				require.Zero(t, tbl.Counts[din][dout]%2)
			}
		}

		require.Equal(t, Inputs, tbl.Counts[0][0])
		for dout := 1; dout < Outputs; dout++ {
			require.Zero(t, tbl.Counts[0][dout])
		}
	}
}

func TestBuildInvalid(t *testing.T) {
	t.Parallel()

	for _, box := range []int{0, 9} {
		_, err := Build(box)
		require.ErrorIs(t, err, des.ErrInvalidSBox)
	}
}

func TestKnownRows(t *testing.T) {
	t.Parallel()

	t1, err := Build(1)
	require.NoError(t, err)
	require.Equal(t, [Outputs]int{
		0, 2, 0, 4, 4, 8, 6, 4, 0, 6, 2, 4, 0, 14, 0, 10,
	}, t1.Counts[0xC])

	dout, count := t1.Best(0xC)
	require.Equal(t, uint8(0xD), dout)
	require.Equal(t, 14, count)
	require.InDelta(t, 14.0/64, t1.Probability(0xC, 0xD), 1e-12)

	t2, err := Build(2)
	require.NoError(t, err)
	require.Equal(t, [Outputs]int{
		0, 0, 0, 2, 0, 4, 6, 12, 0, 6, 8, 4, 10, 4, 8, 0,
	}, t2.Counts[0x4])

	dout, count = t2.Best(0x4)
	require.Equal(t, uint8(0x7), dout)
	require.Equal(t, 12, count)

	// Row 0 is a single peak at column 0.
	dout, count = t2.Best(0)
	require.Zero(t, dout)
	require.Equal(t, Inputs, count)

	require.Zero(t, t2.Count(64, 0))
	require.Zero(t, t2.Count(0, 16))
}

func TestRender(t *testing.T) {
	t.Parallel()

	tbl, err := Build(1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf))

	out := buf.String()
	require.Contains(t, strings.ToLower(out),
		"s-box 1 differential distribution")
	require.Contains(t, out, "14")

	// Title, header and 64 rows at least.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), Inputs+2)
}
