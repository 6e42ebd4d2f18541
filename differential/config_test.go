package main

import (
	"testing"
	"time"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/joelmire/DESAttack/pkg/command"
	"github.com/joelmire/DESAttack/pkg/des"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig([]string{"./desencrypt"})
	require.NoError(t, err)

	require.Equal(t, "./desencrypt", cfg.Oracle.Binary)
	require.Equal(t, command.ModeExec, cfg.mode)
	require.True(t, cfg.key.IsNone())
	require.True(t, cfg.seed.IsNone())
	require.Equal(t, defaultSamples, cfg.Timing.Samples)
	require.Equal(t, btclogv1.LevelInfo, cfg.level)
	require.Empty(t, cfg.Conf)

	b := cfg.budget()
	require.True(t, b.MaxTrials.IsNone())
	require.True(t, b.MaxDuration.IsNone())
}

func TestLoadConfigFlags(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig([]string{
		"--oracle.key=33333333333333",
		"--oracle.mode=pipe",
		"--oracle.ratelimit=100",
		"--oracle.burst=4",
		"--budget.trials=500",
		"--budget.duration=1m",
		"--timing.samples=10",
		"--seed=0xff",
		"--parallel=1",
		"--notables",
		"--debuglevel=debug",
		"--conf=characteristics.conf",
	})
	require.NoError(t, err)

	require.Equal(t, fn.Some(des.KnownKey), cfg.key)
	require.Equal(t, fn.Some[uint64](0xff), cfg.seed)
	require.Equal(t, command.ModePipe, cfg.mode)
	require.Equal(t, 4, cfg.Oracle.Burst)
	require.Equal(t, 10, cfg.Timing.Samples)
	require.Equal(t, 1, cfg.Parallel)
	require.True(t, cfg.NoTables)
	require.Equal(t, btclogv1.LevelDebug, cfg.level)
	require.Equal(t, "characteristics.conf", cfg.Conf)

	b := cfg.budget()
	require.Equal(t, fn.Some[uint64](500), b.MaxTrials)
	require.Equal(t, fn.Some(time.Minute), b.MaxDuration)
}

func TestLoadConfigPositional(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig([]string{"oracle", "characteristics.conf"})
	require.NoError(t, err)
	require.Equal(t, "oracle", cfg.Oracle.Binary)
	require.Equal(t, "characteristics.conf", cfg.Conf)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{
			name: "no oracle",
			args: []string{},
			msg:  "either an oracle binary or an oracle key",
		},
		{
			name: "binary and key",
			args: []string{"--oracle.key=1", "oracle"},
			msg:  "mutually exclusive",
		},
		{
			name: "binary twice",
			args: []string{"--oracle.binary=a", "b"},
			msg:  "oracle binary given twice",
		},
		{
			name: "conf twice",
			args: []string{"--conf=a", "oracle", "b"},
			msg:  "conf file given twice",
		},
		{
			name: "too many arguments",
			args: []string{"a", "b", "c"},
			msg:  "expected at most 2 arguments",
		},
		{
			name: "bad key",
			args: []string{"--oracle.key=xyz"},
			msg:  "invalid oracle key",
		},
		{
			name: "long key",
			args: []string{"--oracle.key=1ffffffffffffff"},
			msg:  "longer than 56 bits",
		},
		{
			name: "bad seed",
			args: []string{"oracle", "--seed=nope"},
			msg:  "invalid seed",
		},
		{
			name: "bad mode",
			args: []string{"oracle", "--oracle.mode=socket"},
			msg:  "socket",
		},
		{
			name: "negative duration",
			args: []string{"oracle", "--budget.duration=-1s"},
			msg:  "negative time budget",
		},
		{
			name: "no samples",
			args: []string{"oracle", "--timing.samples=0"},
			msg:  "at least one sample",
		},
		{
			name: "zero burst",
			args: []string{"oracle", "--oracle.ratelimit=5",
				"--oracle.burst=0"},
			msg: "burst must be positive",
		},
		{
			name: "bad level",
			args: []string{"oracle", "--debuglevel=loud"},
			msg:  "invalid debug level",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadConfig(test.args)
			require.ErrorContains(t, err, test.msg)
		})
	}
}

func TestSetLogLevels(t *testing.T) {
	cfg, err := loadConfig([]string{"oracle", "--debuglevel=trace"})
	require.NoError(t, err)

	setLogLevels(cfg.level)
	t.Cleanup(func() {
		setLogLevels(btclogv1.LevelInfo)
	})

	require.Len(t, subsystemLoggers, 4)
	for subsystem, logger := range subsystemLoggers {
		require.Equal(t, btclogv1.LevelTrace, logger.Level(), subsystem)
	}
}
