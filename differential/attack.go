package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/joelmire/DESAttack/pkg/command"
	"github.com/joelmire/DESAttack/pkg/conf"
	"github.com/joelmire/DESAttack/pkg/ddt"
	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/differential"
	"github.com/joelmire/DESAttack/pkg/oracle"
	"github.com/joelmire/DESAttack/pkg/utils"
)

// KeyBits is the size of the key an exhaustive search has to cover.
const KeyBits = 56

type Attack struct {
	cfg *config
	out io.Writer

	cmd    *command.Command
	oracle *oracle.Counting

	characteristics []differential.Characteristic

	clock    clock.Clock
	progress ticker.Ticker

	registry *prometheus.Registry
	keyspace *prometheus.GaugeVec
	trials   *prometheus.GaugeVec

	// mu guards latest, the most recent snapshot of each reduction by
	// characteristic index.
	mu     sync.Mutex
	latest map[int]differential.Snapshot
}

// Initialise new Attack struct. The oracle binary, if any, is started here
// and must be stopped with Close.
func NewAttack(cfg *config, out io.Writer) (*Attack, error) {
	a := &Attack{
		cfg:      cfg,
		out:      out,
		clock:    clock.NewDefaultClock(),
		progress: ticker.New(cfg.Progress),
		registry: prometheus.NewRegistry(),
		latest:   make(map[int]differential.Snapshot),
	}

	a.characteristics = differential.Builtin()
	if cfg.Conf != "" {
		c, err := conf.NewConf(cfg.Conf)
		if err != nil {
			return nil, utils.Error("failed to load "+
				"characteristics", err)
		}
		a.characteristics = c.Characteristics
	}

	a.keyspace = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "desattack",
		Subsystem: "reducer",
		Name:      "keyspace_size",
		Help:      "Subkey candidates remaining per characteristic.",
	}, []string{"characteristic", "sbox"})
	a.trials = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "desattack",
		Subsystem: "reducer",
		Name:      "trials",
		Help:      "Plaintext pairs tried per characteristic.",
	}, []string{"characteristic", "sbox"})
	if err := a.registry.Register(a.keyspace); err != nil {
		return nil, err
	}
	if err := a.registry.Register(a.trials); err != nil {
		return nil, err
	}

	metrics, err := oracle.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	var o oracle.Oracle
	if cfg.key.IsSome() {
		atckLog.Infof("Using in-process oracle")
		o = oracle.NewLocal(cfg.key.UnsafeFromSome())
	} else {
		cmd, err := command.NewCommand(cfg.Oracle.Binary,
			command.WithMode(cfg.mode))
		if err != nil {
			return nil, err
		}
		if err := cmd.Run(); err != nil {
			return nil, err
		}

		a.cmd = cmd
		o = cmd
	}

	if cfg.Oracle.RateLimit > 0 {
		o = oracle.RateLimit(o, rate.NewLimiter(
			rate.Limit(cfg.Oracle.RateLimit), cfg.Oracle.Burst,
		))
	}

	a.oracle = oracle.NewCounting(oracle.Instrument(o, metrics))

	return a, nil
}

// Close stops the oracle binary if one was started.
func (a *Attack) Close() error {
	a.progress.Stop()

	if a.cmd == nil {
		return nil
	}

	return a.cmd.Kill()
}

func (a *Attack) Run(ctx context.Context) error {
	now := a.clock.Now()

	fmt.Fprintf(a.out, "Testing cipher...")
	if err := des.SelfTest(); err != nil {
		return utils.Error("cipher self test failed", err)
	}
	fmt.Fprintf(a.out, "done.\n")

	if err := a.timeOracle(ctx); err != nil {
		return utils.Error("failed to time oracle", err)
	}

	if !a.cfg.NoTables {
		if err := a.printTables(); err != nil {
			return err
		}
	}

	fmt.Fprintf(a.out, "Reducing subkey candidates...\n")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.reportProgress(done)
	}()

	results, err := differential.Attack(ctx, &differential.AttackConfig{
		Oracle:   a.oracle,
		Budget:   a.cfg.budget(),
		Parallel: a.cfg.Parallel,
		Seed:     a.cfg.seed,
		Clock:    a.clock,
		Observe:  a.observe,
	}, a.characteristics...)

	close(done)
	wg.Wait()

	if err != nil {
		return utils.Error("error reducing keyspace", err)
	}

	for _, res := range results {
		a.printResult(res)
	}

	fmt.Fprintf(a.out, "Attack Complete.\n")
	fmt.Fprintf(a.out, "Elapsed time: %.2fs\n*********\n",
		a.clock.Now().Sub(now).Seconds())
	fmt.Fprintf(a.out, "Interactions: %d\n", a.oracle.Interactions())

	return nil
}

// timeOracle measures the oracle on the known plaintext and estimates how
// long an exhaustive key search would take at that rate.
func (a *Attack) timeOracle(ctx context.Context) error {
	samples := a.cfg.Timing.Samples

	start := a.clock.Now()
	for i := 0; i < samples; i++ {
		_, err := oracle.Query(ctx, a.oracle, des.KnownPlaintext)
		if err != nil {
			return err
		}
	}
	elapsed := a.clock.Now().Sub(start)

	years, err := utils.ExhaustionYears(elapsed, samples, KeyBits)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Timing %d encryptions: %dns\n", samples,
		elapsed.Nanoseconds())
	fmt.Fprintf(a.out, "Average exhaustive search: %s years\n",
		years.String())

	return nil
}

func (a *Attack) printTables() error {
	seen := make(map[int]bool)
	for _, c := range a.characteristics {
		t, err := ddt.Build(c.SBox)
		if err != nil {
			return err
		}

		if !seen[c.SBox] {
			seen[c.SBox] = true
			if err := t.Render(a.out); err != nil {
				return utils.Error("failed to print table", err)
			}
		}

		fmt.Fprintf(a.out, "%v: probability %.4f\n", c,
			t.Probability(c.DeltaIn, c.DeltaOut))
	}

	return nil
}

func (a *Attack) observe(i int, c differential.Characteristic,
	s differential.Snapshot) {

	labels := []string{strconv.Itoa(i), strconv.Itoa(c.SBox)}
	a.keyspace.WithLabelValues(labels...).Set(float64(len(s.Keyspace)))
	a.trials.WithLabelValues(labels...).Set(float64(s.Trial))

	a.mu.Lock()
	a.latest[i] = s
	a.mu.Unlock()
}

func (a *Attack) reportProgress(done <-chan struct{}) {
	a.progress.Resume()
	defer a.progress.Pause()

	for {
		select {
		case <-a.progress.Ticks():
			a.mu.Lock()
			for i, c := range a.characteristics {
				s, ok := a.latest[i]
				if !ok {
					continue
				}
				atckLog.Infof("%v: %d trials, %d right pairs, "+
					"%d candidates", c, s.Trial,
					s.RightPairs, len(s.Keyspace))
			}
			a.mu.Unlock()

			atckLog.Infof("%d oracle interactions",
				a.oracle.Interactions())

		case <-done:
			return
		}
	}
}

func (a *Attack) printResult(res *differential.Result) {
	c := res.Characteristic

	status := "converged"
	if !res.Converged {
		status = "budget exhausted"
	}

	fmt.Fprintf(a.out, "S-box %d (%s after %d trials, %d right "+
		"pairs, %v):\n", c.SBox, status, res.Trials, res.RightPairs,
		res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(a.out, "\tcandidates: %s\n",
		formatKeyspace(res.Keyspace))
	fmt.Fprintf(a.out, "\tsize: %d\n", len(res.Keyspace))
}

func formatKeyspace(ks []uint8) string {
	s := "["
	for i, k := range ks {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%02x", k)
	}

	return s + "]"
}
