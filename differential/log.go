package main

import (
	"os"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"

	"github.com/joelmire/DESAttack/pkg/command"
	"github.com/joelmire/DESAttack/pkg/differential"
	"github.com/joelmire/DESAttack/pkg/oracle"
)

var (
	rootLogger = btclog.NewSLogger(btclog.NewDefaultHandler(os.Stdout))

	// subsystemLoggers maps each subsystem identifier to its logger.
	subsystemLoggers = make(map[string]btclog.Logger)

	atckLog = addSubLogger("ATCK", nil)
)

func init() {
	addSubLogger(differential.Subsystem, differential.UseLogger)
	addSubLogger(oracle.Subsystem, oracle.UseLogger)
	addSubLogger(command.Subsystem, command.UseLogger)

	setLogLevels(btclogv1.LevelInfo)
}

// addSubLogger creates a logger for subsystem and, if useLogger is set, hands
// it to the package that owns the subsystem.
func addSubLogger(subsystem string,
	useLogger func(btclog.Logger)) btclog.Logger {

	logger := rootLogger.SubSystem(subsystem)
	if useLogger != nil {
		useLogger(logger)
	}
	subsystemLoggers[subsystem] = logger

	return logger
}

// setLogLevels sets the logging level of every subsystem.
func setLogLevels(level btclogv1.Level) {
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
