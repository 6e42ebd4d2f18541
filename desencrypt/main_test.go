package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/utils"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"desencrypt"}, args...))

	return out.String(), err
}

func TestOneShot(t *testing.T) {
	out, err := run(t, "", "1234567887654321")
	require.NoError(t, err)
	require.Equal(t, "c844e31b90953751\n", out)
}

func TestKeyFlag(t *testing.T) {
	out, err := run(t, "", "--key", "0123456789abcd", "0")
	require.NoError(t, err)

	c, err := utils.HexToUint64(out)
	require.NoError(t, err)
	require.Equal(t, des.Encrypt(0x0123456789abcd, 0), c)
}

func TestKeyEnv(t *testing.T) {
	t.Setenv("DESENCRYPT_KEY", "0123456789abcd")

	out, err := run(t, "", "0")
	require.NoError(t, err)
	require.Equal(t, mustRun(t, "--key=0123456789abcd", "0"), out)
	require.NotEqual(t, mustRun(t, "--key="+defaultKey, "0"), out)
}

func TestServe(t *testing.T) {
	out, err := run(t, "1234567887654321\n\n0\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "c844e31b90953751", lines[0])

	c, err := utils.HexToUint64(lines[1])
	require.NoError(t, err)
	require.Equal(t, des.Encrypt(des.KnownKey, 0), c)
}

func TestErrors(t *testing.T) {
	_, err := run(t, "", "--key=zz", "0")
	require.ErrorContains(t, err, "invalid key")

	_, err = run(t, "", "--key=1ffffffffffffff", "0")
	require.ErrorContains(t, err, "longer than 56 bits")

	_, err = run(t, "", "nothex")
	require.ErrorIs(t, err, utils.ErrHexFormat)

	_, err = run(t, "12\nnothex\n")
	require.ErrorIs(t, err, utils.ErrHexFormat)
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, err := run(t, "", args...)
	require.NoError(t, err)

	return out
}
