package main

import (
	"errors"
	"fmt"
	"time"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joelmire/DESAttack/pkg/command"
	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/differential"
	"github.com/joelmire/DESAttack/pkg/utils"
)

const (
	defaultMode             = "exec"
	defaultBurst            = 1
	defaultSamples          = 1000
	defaultDebugLevel       = "info"
	defaultProgressInterval = 10 * time.Second
)

type oracleConfig struct {
	Binary    string  `long:"binary" description:"Encryption oracle executable; may also be given as the first argument"`
	Mode      string  `long:"mode" description:"How plaintexts are passed to the binary" choice:"exec" choice:"pipe"`
	Key       string  `long:"key" description:"Hex key of an in-process oracle, used instead of a binary"`
	RateLimit float64 `long:"ratelimit" description:"Maximum oracle queries per second; 0 for no limit"`
	Burst     int     `long:"burst" description:"Queries allowed in a burst when rate limited"`
}

type budgetConfig struct {
	Trials   uint64        `long:"trials" description:"Maximum plaintext pairs per S-box; 0 for no limit"`
	Duration time.Duration `long:"duration" description:"Maximum time per S-box; 0 for no limit"`
}

type timingConfig struct {
	Samples int `long:"samples" description:"Encryptions timed for the exhaustive search estimate"`
}

type prometheusConfig struct {
	Listen string `long:"listen" description:"Serve Prometheus metrics on this address"`
}

type config struct {
	Oracle     *oracleConfig     `group:"oracle" namespace:"oracle"`
	Budget     *budgetConfig     `group:"budget" namespace:"budget"`
	Timing     *timingConfig     `group:"timing" namespace:"timing"`
	Prometheus *prometheusConfig `group:"prometheus" namespace:"prometheus"`

	Conf     string `long:"conf" description:"Characteristics file, used instead of the builtin characteristics; may also be given as the second argument"`
	Parallel int    `long:"parallel" description:"S-boxes attacked at once; 0 attacks all together"`
	Seed     string `long:"seed" description:"Hex seed making the chosen plaintexts reproducible"`
	NoTables bool   `long:"notables" description:"Do not print the difference distribution tables"`

	Progress   time.Duration `long:"progress" description:"Interval between progress reports"`
	DebugLevel string        `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`

	// Parsed from the above by validate.
	mode  command.Mode
	key   fn.Option[uint64]
	seed  fn.Option[uint64]
	level btclogv1.Level
}

func defaultConfig() *config {
	return &config{
		Oracle: &oracleConfig{
			Mode:  defaultMode,
			Burst: defaultBurst,
		},
		Budget: &budgetConfig{},
		Timing: &timingConfig{
			Samples: defaultSamples,
		},
		Prometheus: &prometheusConfig{},
		Progress:   defaultProgressInterval,
		DebugLevel: defaultDebugLevel,
	}
}

// loadConfig parses args over the defaults. As with the other attacks the
// oracle binary and conf file may be given as positional arguments.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	parser.Usage = "[OPTIONS] [binary [conf]]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(rest) > 2 {
		return nil, fmt.Errorf("expected at most 2 arguments, got=%d",
			len(rest))
	}
	if len(rest) > 0 {
		if cfg.Oracle.Binary != "" {
			return nil, errors.New("oracle binary given twice")
		}
		cfg.Oracle.Binary = rest[0]
	}
	if len(rest) > 1 {
		if cfg.Conf != "" {
			return nil, errors.New("conf file given twice")
		}
		cfg.Conf = rest[1]
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *config) validate() error {
	switch {
	case c.Oracle.Binary == "" && c.Oracle.Key == "":
		return errors.New("either an oracle binary or an oracle key " +
			"is required")

	case c.Oracle.Binary != "" && c.Oracle.Key != "":
		return errors.New("oracle binary and oracle key are mutually " +
			"exclusive")
	}

	mode, err := command.ParseMode(c.Oracle.Mode)
	if err != nil {
		return err
	}
	c.mode = mode

	if c.Oracle.Key != "" {
		key, err := utils.HexToUint64(c.Oracle.Key)
		if err != nil {
			return utils.Error("invalid oracle key", err)
		}
		if key > des.Mask56 {
			return fmt.Errorf("oracle key %x is longer than 56 "+
				"bits", key)
		}
		c.key = fn.Some(key)
	}

	if c.Seed != "" {
		seed, err := utils.HexToUint64(c.Seed)
		if err != nil {
			return utils.Error("invalid seed", err)
		}
		c.seed = fn.Some(seed)
	}

	switch {
	case c.Oracle.RateLimit < 0:
		return fmt.Errorf("negative rate limit: %v", c.Oracle.RateLimit)

	case c.Oracle.RateLimit > 0 && c.Oracle.Burst < 1:
		return fmt.Errorf("rate limit burst must be positive, got=%d",
			c.Oracle.Burst)

	case c.Budget.Duration < 0:
		return fmt.Errorf("negative time budget: %v", c.Budget.Duration)

	case c.Timing.Samples < 1:
		return fmt.Errorf("timing needs at least one sample, got=%d",
			c.Timing.Samples)

	case c.Parallel < 0:
		return fmt.Errorf("negative parallelism: %d", c.Parallel)

	case c.Progress <= 0:
		return fmt.Errorf("progress interval must be positive, got=%v",
			c.Progress)
	}

	level, ok := btclogv1.LevelFromString(c.DebugLevel)
	if !ok {
		return fmt.Errorf("invalid debug level %q", c.DebugLevel)
	}
	c.level = level

	return nil
}

// budget converts the zero-means-unlimited flags into a reduction budget.
func (c *config) budget() differential.Budget {
	var b differential.Budget
	if c.Budget.Trials > 0 {
		b.MaxTrials = fn.Some(c.Budget.Trials)
	}
	if c.Budget.Duration > 0 {
		b.MaxDuration = fn.Some(c.Budget.Duration)
	}

	return b
}
