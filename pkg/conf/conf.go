// Package conf loads differential characteristics from a conf file. Each
// characteristic takes five hex values, one per line: the S-box, the
// plaintext difference, the S-box input and output differences and the
// expected ciphertext difference. Blank lines and # comments are ignored.
package conf

import (
	"errors"
	"fmt"
	"io"

	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/differential"
	"github.com/joelmire/DESAttack/pkg/file"
	"github.com/joelmire/DESAttack/pkg/utils"
)

// ErrEmpty is returned for a conf file holding no characteristics.
var ErrEmpty = errors.New("no characteristics found")

// Conf is the set of characteristics to attack with.
type Conf struct {
	Characteristics []differential.Characteristic
}

// Initialise new Conf struct from the named file
func NewConf(fileName string) (*Conf, error) {
	fr, err := file.NewFileReader(fileName)
	if err != nil {
		return nil, err
	}
	defer fr.CloseFile()

	return read(fr)
}

// Parse reads a Conf from r. name is used in error messages.
func Parse(name string, r io.Reader) (*Conf, error) {
	return read(file.NewReader(name, r))
}

func read(fr *file.FileReader) (*Conf, error) {
	conf := new(Conf)

	for {
		n := len(conf.Characteristics) + 1

		c, err := readCharacteristic(fr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, utils.Error(fmt.Sprintf("failed to get "+
				"characteristic %d", n), err)
		}

		if err := c.Validate(); err != nil {
			return nil, utils.Error(fmt.Sprintf("invalid "+
				"characteristic %d ending on line %d", n,
				fr.Line()), err)
		}

		conf.Characteristics = append(conf.Characteristics, c)
	}

	if len(conf.Characteristics) == 0 {
		return nil, ErrEmpty
	}

	return conf, nil
}

// readCharacteristic returns an unwrapped io.EOF only if the input ends
// before the first of its five values.
func readCharacteristic(fr *file.FileReader) (differential.Characteristic,
	error) {

	var (
		c    differential.Characteristic
		vals [5]uint64
	)

	names := [5]string{"s-box", "ΔP", "ΔIn", "ΔOut", "ΔC"}
	for i := range vals {
		v, err := fr.ReadUint64()
		switch {
		case i == 0 && errors.Is(err, io.EOF):
			return c, io.EOF

		case errors.Is(err, io.EOF):
			return c, fmt.Errorf("missing %s: %w", names[i],
				io.ErrUnexpectedEOF)

		case err != nil:
			return c, utils.Error(fmt.Sprintf("failed to get %s",
				names[i]), err)
		}

		vals[i] = v
	}

	if vals[0] > des.SBoxes {
		return c, fmt.Errorf("%w: got=%d", differential.ErrInvalidSBox,
			vals[0])
	}
	if vals[2] > 0xff || vals[3] > 0xff {
		return c, fmt.Errorf("%w: input=%#x output=%#x",
			differential.ErrDifferenceRange, vals[2], vals[3])
	}

	c.SBox = int(vals[0])
	c.DeltaP = vals[1]
	c.DeltaIn = uint8(vals[2])
	c.DeltaOut = uint8(vals[3])
	c.DeltaC = vals[4]

	return c, nil
}
