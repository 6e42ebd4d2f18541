package differential

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joelmire/DESAttack/pkg/des"
)

var (
	// ErrInvalidSBox is returned for an S-box index outside [1, 8].
	ErrInvalidSBox = des.ErrInvalidSBox

	// ErrZeroInputDifference is returned for a characteristic whose S-box
	// input difference is zero. Every input maps to a zero output
	// difference, so nothing can be learned.
	ErrZeroInputDifference = errors.New("s-box input difference is zero")

	// ErrDifferenceRange is returned when an S-box difference does not fit
	// the box: six bits in, four bits out.
	ErrDifferenceRange = errors.New("s-box difference out of range")
)

// Characteristic is a differential trail through the first round, targeting
// one S-box. Plaintext pairs differing by DeltaP whose S-box inputs differ by
// DeltaIn produce outputs differing by DeltaOut with the probability given
// by the distribution table, and those pairs show ciphertexts differing by
// DeltaC.
type Characteristic struct {
	SBox     int
	DeltaP   uint64
	DeltaIn  uint8
	DeltaOut uint8
	DeltaC   uint64
}

var (
	// SBox1 follows 0xC -> 0xD through S-box 1, probability 14/64.
	SBox1 = Characteristic{
		SBox:     1,
		DeltaP:   0x0080800260000000,
		DeltaIn:  0xC,
		DeltaOut: 0xD,
		DeltaC:   0x0000000060000000,
	}

	// SBox2 follows 0x4 -> 0x7 through S-box 2, probability 12/64.
	SBox2 = Characteristic{
		SBox:     2,
		DeltaP:   0x4000401002000000,
		DeltaIn:  0x4,
		DeltaOut: 0x7,
		DeltaC:   0x0000000002000000,
	}
)

// Builtin returns the worked characteristics.
func Builtin() []Characteristic {
	return []Characteristic{SBox1, SBox2}
}

// Validate rejects characteristics the reducer cannot use.
func (c Characteristic) Validate() error {
	if err := des.ValidSBox(c.SBox); err != nil {
		return err
	}

	switch {
	case c.DeltaIn == 0:
		return ErrZeroInputDifference

	case uint64(c.DeltaIn) > des.Mask6:
		return fmt.Errorf("%w: input=%#x", ErrDifferenceRange,
			c.DeltaIn)

	case c.DeltaOut > 0xf:
		return fmt.Errorf("%w: output=%#x", ErrDifferenceRange,
			c.DeltaOut)
	}

	return nil
}

func (c Characteristic) String() string {
	return fmt.Sprintf("S%d(ΔP=%016x %#x->%#x ΔC=%016x)", c.SBox,
		c.DeltaP, c.DeltaIn, c.DeltaOut, c.DeltaC)
}

// CompatibleInputs returns the S-box inputs s for which
// S[s] ^ S[s^DeltaIn] == DeltaOut. Its size equals the distribution table
// entry for (DeltaIn, DeltaOut).
func CompatibleInputs(c Characteristic) (fn.Set[uint8], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s, err := des.SBox(c.SBox)
	if err != nil {
		return nil, err
	}

	pi := fn.NewSet[uint8]()
	for x := uint8(0); x < 64; x++ {
		if s[x]^s[x^c.DeltaIn] == c.DeltaOut {
			pi.Add(x)
		}
	}

	return pi, nil
}
