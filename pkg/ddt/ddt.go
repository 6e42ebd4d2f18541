// Package ddt builds differential distribution tables for the S-boxes of the
// two round cipher in package des.
package ddt

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/joelmire/DESAttack/pkg/des"
)

const (
	// Inputs is the number of 6-bit S-box inputs, and so of input
	// differences.
	Inputs = 64

	// Outputs is the number of 4-bit S-box output differences.
	Outputs = 16
)

// Table maps an input difference to a count per output difference. Entry
// [din][dout] is the number of inputs x for which S[x] ^ S[x^din] == dout.
type Table struct {
	SBox   int
	Counts [Inputs][Outputs]int
}

// Build computes the distribution table of S-box box.
func Build(box int) (*Table, error) {
	s, err := des.SBox(box)
	if err != nil {
		return nil, err
	}

	t := &Table{SBox: box}
	for din := 0; din < Inputs; din++ {
		for x := 0; x < Inputs; x++ {
			dout := s[x] ^ s[x^din]
			t.Counts[din][dout]++
		}
	}

	return t, nil
}

// Count returns the number of inputs with difference din mapping to dout.
func (t *Table) Count(din, dout uint8) int {
	if int(din) >= Inputs || int(dout) >= Outputs {
		return 0
	}

	return t.Counts[din][dout]
}

// RowSum is the total of row din. Every row of a well formed table sums to
// Inputs.
func (t *Table) RowSum(din uint8) int {
	sum := 0
	for _, c := range t.Counts[din&0x3f] {
		sum += c
	}

	return sum
}

// Best returns the most likely output difference for din, with its count.
// Ties go to the lowest output difference.
func (t *Table) Best(din uint8) (uint8, int) {
	var (
		best  uint8
		count = -1
	)
	for dout, c := range t.Counts[din&0x3f] {
		if c > count {
			best, count = uint8(dout), c
		}
	}

	return best, count
}

// Probability is the chance that a random input pair with difference din
// produces output difference dout.
func (t *Table) Probability(din, dout uint8) float64 {
	return float64(t.Count(din, dout)) / Inputs
}

// Render writes the table as text: one row per input difference, one column
// per output difference.
func (t *Table) Render(w io.Writer) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(fmt.Sprintf("S-box %d differential distribution", t.SBox))

	header := table.Row{"Δin"}
	for dout := 0; dout < Outputs; dout++ {
		header = append(header, dout)
	}
	tw.AppendHeader(header)

	for din := 0; din < Inputs; din++ {
		row := table.Row{strconv.Itoa(din)}
		for _, c := range t.Counts[din] {
			row = append(row, c)
		}
		tw.AppendRow(row)
	}

	if _, err := io.WriteString(w, tw.Render()+"\n"); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	return nil
}
