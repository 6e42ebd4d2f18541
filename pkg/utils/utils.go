package utils

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	Base = 16

	// SecondsPerYear is a Julian year.
	SecondsPerYear = 31557600
)

var ErrHexFormat = errors.New("malformed hex value")

func NewError(err string) error { return errors.New(err) }

// Error wraps err with a description of what was being done.
func Error(str string, err error) error {
	return fmt.Errorf("%s: %w", str, err)
}

func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}

// HexToUint64 parses a hex string of at most 64 bits. Surrounding whitespace
// and a 0x prefix are accepted.
func HexToUint64(s string) (uint64, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrHexFormat)
	}

	z, err := strconv.ParseUint(h, Base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrHexFormat, s, err)
	}

	return z, nil
}

// Uint64ToHex formats z as lower case hex without padding.
func Uint64ToHex(z uint64) string {
	return strconv.FormatUint(z, Base)
}

// ExhaustionYears estimates the average time, in whole years, to find a key
// of keyBits bits by exhaustive search, given that samples encryptions took
// elapsed. On average the key turns up after half the key space.
func ExhaustionYears(elapsed time.Duration, samples int,
	keyBits uint) (*big.Int, error) {

	if samples <= 0 {
		return nil, fmt.Errorf("expected positive sample count, got=%d",
			samples)
	}
	if keyBits == 0 {
		return nil, NewError("expected non-zero key size")
	}

	half := new(big.Int).Lsh(big.NewInt(1), keyBits-1)

	years := new(big.Int).Mul(big.NewInt(int64(elapsed)), half)

	div := big.NewInt(int64(samples))
	div.Mul(div, big.NewInt(int64(time.Second)))
	div.Mul(div, big.NewInt(SecondsPerYear))

	return years.Div(years, div), nil
}
