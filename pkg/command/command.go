// Package command runs an external encryption oracle binary.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/joelmire/DESAttack/pkg/utils"
)

// Mode selects how plaintexts are handed to the binary.
type Mode int

const (
	// ModeExec runs the binary once per query with the plaintext as its
	// last argument, and reads the ciphertext from the first line of
	// stdout.
	ModeExec Mode = iota

	// ModePipe runs the binary once and exchanges one hex line per query
	// over stdin and stdout.
	ModePipe
)

func (m Mode) String() string {
	switch m {
	case ModeExec:
		return "exec"
	case ModePipe:
		return "pipe"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exec":
		return ModeExec, nil
	case "pipe":
		return ModePipe, nil
	default:
		return 0, fmt.Errorf("unknown oracle mode %q", s)
	}
}

var (
	// ErrNotRunning is returned by pipe mode queries before Run or after
	// Kill.
	ErrNotRunning = errors.New("command not running")

	// ErrMalformedResponse is returned when the binary answers with
	// something other than a hex ciphertext.
	ErrMalformedResponse = errors.New("malformed oracle response")
)

type Command struct {
	file string
	args []string
	env  []string
	mode Mode

	// mu serialises pipe mode queries so each reply is matched to its
	// plaintext.
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// Option configures a Command.
type Option func(*Command)

// WithMode sets the query mode, ModeExec by default.
func WithMode(m Mode) Option {
	return func(c *Command) {
		c.mode = m
	}
}

// WithArgs passes args to the binary ahead of any plaintext.
func WithArgs(args ...string) Option {
	return func(c *Command) {
		c.args = append(c.args, args...)
	}
}

// WithEnv adds environment variables, as "KEY=value", to those inherited
// from this process.
func WithEnv(env ...string) Option {
	return func(c *Command) {
		c.env = append(c.env, env...)
	}
}

// Initialise new Command struct
func NewCommand(file string, opts ...Option) (*Command, error) {
	path, err := exec.LookPath(file)
	if err != nil {
		return nil, utils.Error(fmt.Sprintf("error looking up binary "+
			"file '%s'", file), err)
	}

	c := &Command{file: path}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Command) Mode() Mode {
	return c.mode
}

func (c *Command) command(ctx context.Context, args ...string) *exec.Cmd {
	args = append(c.args[:len(c.args):len(c.args)], args...)

	cmd := exec.CommandContext(ctx, c.file, args...)
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	return cmd
}

// Run starts the binary in pipe mode. It does nothing in exec mode.
func (c *Command) Run() error {
	if c.mode != ModePipe {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("command '%s' already running", c.file)
	}

	cmd := c.command(context.Background())

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return utils.Error("error opening command stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return utils.Error("error opening command stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return utils.Error(fmt.Sprintf("error running command '%s'",
			c.file), err)
	}

	log.Infof("Started oracle %s (pid %d)", c.file, cmd.Process.Pid)

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)

	return nil
}

// Write bytes to command stdin
func writeStdin(stdin io.Writer, b []byte) error {
	if _, err := stdin.Write(b); err != nil {
		return utils.Error("error writing bytes to command stdin", err)
	}

	return nil
}

// Read a line from command stdout
func readStdout(stdout *bufio.Reader) (string, error) {
	l, err := stdout.ReadString('\n')
	if err != nil {
		return "", utils.Error("error reading command stdout", err)
	}

	return l, nil
}

// Encrypt asks the binary for the ciphertext of plaintext.
func (c *Command) Encrypt(ctx context.Context,
	plaintext uint64) (uint64, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var (
		reply string
		err   error
	)
	switch c.mode {
	case ModePipe:
		reply, err = c.interact(ctx, plaintext)

	default:
		reply, err = c.exec(ctx, plaintext)
	}
	if err != nil {
		return 0, err
	}

	z, err := utils.HexToUint64(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return z, nil
}

func (c *Command) exec(ctx context.Context, plaintext uint64) (string, error) {
	var stderr bytes.Buffer

	cmd := c.command(ctx, utils.Uint64ToHex(plaintext))
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := fmt.Sprintf("error running command '%s' (%s)", c.file,
			strings.TrimSpace(stderr.String()))
		return "", utils.Error(msg, err)
	}

	line, _, _ := strings.Cut(string(out), "\n")

	return line, nil
}

// interact exchanges one line with the running binary. If ctx ends first the
// binary is killed, since its late reply would be taken as the answer to the
// next query.
func (c *Command) interact(ctx context.Context,
	plaintext uint64) (string, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil {
		return "", ErrNotRunning
	}

	type reply struct {
		line string
		err  error
	}

	stdin, stdout := c.stdin, c.stdout
	done := make(chan reply, 1)
	go func() {
		line := utils.Uint64ToHex(plaintext) + "\n"
		if err := writeStdin(stdin, []byte(line)); err != nil {
			done <- reply{err: err}
			return
		}

		l, err := readStdout(stdout)
		done <- reply{line: l, err: err}
	}()

	select {
	case r := <-done:
		return r.line, r.err

	case <-ctx.Done():
		log.Warnf("Query %016x abandoned, stopping oracle %s: %v",
			plaintext, c.file, ctx.Err())

		if err := c.kill(); err != nil {
			return "", err
		}
		<-done

		return "", ctx.Err()
	}
}

// Kill stops a binary started by Run. It is a no-op in exec mode or when the
// binary is not running.
func (c *Command) Kill() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.kill()
}

// kill must be called with mu held.
func (c *Command) kill() error {
	if c.cmd == nil {
		return nil
	}

	cmd := c.cmd
	c.cmd, c.stdin, c.stdout = nil, nil, nil

	err := cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return utils.Error("error closing running command", err)
	}

	// The exit status of a killed process is not interesting.
	_ = cmd.Wait()

	log.Debugf("Stopped oracle %s", c.file)

	return nil
}
