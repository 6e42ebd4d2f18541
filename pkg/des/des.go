// Package des implements a two round variant of DES with a simplified key
// schedule. Subkey 2 is the key shifted right by one byte, and the low 32
// bits of each subkey are folded into the round output after the P-box.
// Neither matches the DES standard and both must be preserved, the
// differential characteristics used against this cipher depend on them.
package des

import (
	"errors"
	"fmt"
)

const (
	// SBoxes is the number of substitution boxes in a round.
	SBoxes = 8

	Mask6  = uint64(0x3f)
	Mask32 = uint64(0xffffffff)
	Mask48 = uint64(0xffffffffffff)
	Mask56 = uint64(0xffffffffffffff)

	// KnownKey, KnownPlaintext and KnownCiphertext form the known answer
	// used to validate the implementation before running an attack.
	KnownKey        = uint64(0x33333333333333)
	KnownPlaintext  = uint64(0x1234567887654321)
	KnownCiphertext = uint64(0xC844E31B90953751)
)

var (
	// ErrInvalidSBox is returned when an S-box index is outside [1, 8].
	ErrInvalidSBox = errors.New("s-box index out of range")

	// ErrSelfTest is returned when the known answer test fails.
	ErrSelfTest = errors.New("known answer test failed")
)

// ValidSBox returns ErrInvalidSBox if box is not in [1, 8].
func ValidSBox(box int) error {
	if box < 1 || box > SBoxes {
		return fmt.Errorf("%w: got=%d", ErrInvalidSBox, box)
	}

	return nil
}

// SBox returns a copy of the lookup table for S-box box.
func SBox(box int) ([64]uint8, error) {
	if err := ValidSBox(box); err != nil {
		return [64]uint8{}, err
	}

	return sTables[box-1], nil
}

// Expand applies the E-box to a 32-bit half block, giving 48 bits.
func Expand(r uint32) uint64 {
	R := uint64(r)

	ea := (R>>27)&31 | (R&1)<<5
	eb := (R >> 23) & 63
	ec := (R >> 19) & 63
	ed := (R >> 15) & 63
	ee := (R >> 11) & 63
	ef := (R >> 7) & 63
	eg := (R >> 3) & 63
	eh := (R>>31)&1 | (R&31)<<1

	return ea<<42 | eb<<36 | ec<<30 | ed<<24 | ee<<18 | ef<<12 | eg<<6 | eh
}

// Chunk returns the six bits of a 48-bit value that feed S-box box. box must
// already be valid.
func Chunk(e uint64, box int) uint8 {
	return uint8((e >> (48 - 6*uint(box))) & Mask6)
}

// Substitute runs each 6-bit chunk of s through its S-box and concatenates
// the eight 4-bit outputs.
func Substitute(s uint64) uint32 {
	var o uint32
	for i := 0; i < SBoxes; i++ {
		o = o<<4 | uint32(sTables[i][Chunk(s, i+1)])
	}

	return o
}

// Permute applies the P-box.
func Permute(o uint32) uint32 {
	var p uint32
	for i, b := range pBits {
		p |= ((o >> (32 - b)) & 1) << (31 - uint(i))
	}

	return p
}

// Feistel is the round function for a 32-bit half block and a 48-bit subkey.
func Feistel(r uint32, k uint64) uint32 {
	k &= Mask48

	f := Expand(r) ^ k
	p := Permute(Substitute(f))

	return p ^ uint32(k&Mask32)
}

// Subkeys derives both round subkeys from a 56-bit key.
func Subkeys(key uint64) (k1, k2 uint64) {
	key &= Mask56
	return key & Mask48, (key >> 8) & Mask48
}

// Encrypt enciphers a 64-bit block under a 56-bit key.
func Encrypt(key, plaintext uint64) uint64 {
	k1, k2 := Subkeys(key)

	l0 := uint32(plaintext >> 32)
	r0 := uint32(plaintext)

	l1, r1 := r0, l0^Feistel(r0, k1)
	l2, r2 := r1, l1^Feistel(r1, k2)

	return uint64(l2)<<32 | uint64(r2)
}

// Decrypt inverts Encrypt.
func Decrypt(key, ciphertext uint64) uint64 {
	k1, k2 := Subkeys(key)

	l2 := uint32(ciphertext >> 32)
	r2 := uint32(ciphertext)

	r1 := l2
	l1 := r2 ^ Feistel(r1, k2)
	r0 := l1
	l0 := r1 ^ Feistel(r0, k1)

	return uint64(l0)<<32 | uint64(r0)
}

// RoundOneNibble returns the six bits of the round 1 subkey consumed by
// S-box box. This is what a differential attack on that box recovers.
func RoundOneNibble(key uint64, box int) (uint8, error) {
	if err := ValidSBox(box); err != nil {
		return 0, err
	}

	k1, _ := Subkeys(key)

	return Chunk(k1, box), nil
}

// SelfTest checks Encrypt against the known answer.
func SelfTest() error {
	return Verify(KnownKey, KnownPlaintext, KnownCiphertext)
}

// Verify checks that key enciphers plaintext to ciphertext.
func Verify(key, plaintext, ciphertext uint64) error {
	if got := Encrypt(key, plaintext); got != ciphertext {
		return fmt.Errorf("%w: key=%014x plaintext=%016x exp=%016x "+
			"got=%016x", ErrSelfTest, key, plaintext, ciphertext,
			got)
	}

	return nil
}
