// Command desencrypt is an encryption oracle for the two round DES variant.
// Given a hex plaintext it prints the ciphertext. Without one it reads
// plaintexts from stdin, one per line, answering each on its own line.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/utils"
)

const defaultKey = "33333333333333"

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "desencrypt"
	app.Usage = "encrypt 64-bit blocks under a fixed 56-bit key"
	app.ArgsUsage = "[plaintext]"
	app.Writer = stdout
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "key",
			Value:  defaultKey,
			EnvVar: "DESENCRYPT_KEY",
			Usage:  "The hex key to encrypt under.",
		},
	}
	app.Action = func(ctx *cli.Context) error {
		key, err := utils.HexToUint64(ctx.String("key"))
		if err != nil {
			return utils.Error("invalid key", err)
		}
		if key > des.Mask56 {
			return fmt.Errorf("key %x is longer than 56 bits", key)
		}

		switch ctx.NArg() {
		case 0:
			return serve(key, stdin, stdout)

		case 1:
			p, err := utils.HexToUint64(ctx.Args().First())
			if err != nil {
				return utils.Error("invalid plaintext", err)
			}
			_, err = fmt.Fprintf(stdout, "%016x\n",
				des.Encrypt(key, p))
			return err

		default:
			return cli.ShowAppHelp(ctx)
		}
	}

	return app
}

// serve answers plaintexts read from r until it is closed.
func serve(key uint64, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		p, err := utils.HexToUint64(scanner.Text())
		if err != nil {
			return utils.Error("invalid plaintext", err)
		}

		fmt.Fprintf(out, "%016x\n", des.Encrypt(key, p))

		// The reader is waiting on this answer before sending more.
		if err := out.Flush(); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		utils.Fatal(err)
	}
}
