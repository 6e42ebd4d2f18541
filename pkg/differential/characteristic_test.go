package differential

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joelmire/DESAttack/pkg/ddt"
	"github.com/joelmire/DESAttack/pkg/des"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(*Characteristic)
		err  error
	}{
		{
			name: "builtin",
			mod:  func(*Characteristic) {},
		},
		{
			name: "sbox zero",
			mod:  func(c *Characteristic) { c.SBox = 0 },
			err:  ErrInvalidSBox,
		},
		{
			name: "sbox nine",
			mod:  func(c *Characteristic) { c.SBox = 9 },
			err:  ErrInvalidSBox,
		},
		{
			name: "zero input difference",
			mod:  func(c *Characteristic) { c.DeltaIn = 0 },
			err:  ErrZeroInputDifference,
		},
		{
			name: "wide input difference",
			mod:  func(c *Characteristic) { c.DeltaIn = 64 },
			err:  ErrDifferenceRange,
		},
		{
			name: "wide output difference",
			mod:  func(c *Characteristic) { c.DeltaOut = 16 },
			err:  ErrDifferenceRange,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := SBox1
			test.mod(&c)

			err := c.Validate()
			if test.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, test.err)

			_, err = CompatibleInputs(c)
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestCompatibleInputsKnown(t *testing.T) {
	t.Parallel()

	pi, err := CompatibleInputs(SBox1)
	require.NoError(t, err)

	got := pi.ToSlice()
	slices.Sort(got)
	require.Equal(t, []uint8{
		2, 6, 7, 10, 11, 14, 19, 31, 49, 52, 54, 56, 58, 61,
	}, got)

	// Inputs come in pairs s, s^DeltaIn.
	for _, s := range got {
		require.True(t, pi.Contains(s^SBox1.DeltaIn))
	}

	pi, err = CompatibleInputs(SBox2)
	require.NoError(t, err)

	got = pi.ToSlice()
	slices.Sort(got)
	require.Equal(t, []uint8{
		3, 7, 11, 15, 18, 22, 26, 30, 40, 43, 44, 47,
	}, got)
}

// Every compatible input set has as many members as its distribution table
// entry.
func TestCompatibleInputsMatchTable(t *testing.T) {
	t.Parallel()

	for box := 1; box <= des.SBoxes; box++ {
		tbl, err := ddt.Build(box)
		require.NoError(t, err)

		for din := uint8(1); din < ddt.Inputs; din++ {
			for dout := uint8(0); dout < ddt.Outputs; dout++ {
				pi, err := CompatibleInputs(Characteristic{
					SBox:     box,
					DeltaIn:  din,
					DeltaOut: dout,
				})
				require.NoError(t, err)
				require.Equalf(t, tbl.Count(din, dout), len(pi),
					"box=%d din=%d dout=%d", box, din, dout)
			}
		}
	}
}

// The builtin characteristics use the most likely entry of their rows.
func TestBuiltinBestEntries(t *testing.T) {
	t.Parallel()

	for _, c := range Builtin() {
		require.NoError(t, c.Validate())

		tbl, err := ddt.Build(c.SBox)
		require.NoError(t, err)

		dout, _ := tbl.Best(c.DeltaIn)
		require.Equal(t, c.DeltaOut, dout, "%v", c)
	}

	require.Equal(t, 14, mustTable(t, 1).Count(0xC, 0xD))
	require.Equal(t, 12, mustTable(t, 2).Count(0x4, 0x7))
}

// Following each characteristic by hand: only the target S-box sees a
// non-zero input difference, its output difference permutes to the left
// half difference, and round 2 sees no difference at all.
func TestBuiltinTrails(t *testing.T) {
	t.Parallel()

	for _, c := range Builtin() {
		dl0 := uint32(c.DeltaP >> 32)
		dr0 := uint32(c.DeltaP)

		de := des.Expand(dr0)
		for box := 1; box <= des.SBoxes; box++ {
			exp := uint8(0)
			if box == c.SBox {
				exp = c.DeltaIn
			}
			require.Equal(t, exp, des.Chunk(de, box), "%v box %d",
				c, box)
		}

		do := uint32(c.DeltaOut) << (32 - 4*uint(c.SBox))
		require.Equal(t, dl0, des.Permute(do), "%v", c)

		// dR1 = dL0 ^ dF1 = 0, so dL2 = 0 and dR2 = dL1 = dR0.
		require.Equal(t, uint64(dr0), c.DeltaC, "%v", c)
	}
}

func mustTable(t *testing.T, box int) *ddt.Table {
	t.Helper()

	tbl, err := ddt.Build(box)
	require.NoError(t, err)

	return tbl
}
