package differential

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"

	"github.com/joelmire/DESAttack/pkg/oracle"
)

// AttackConfig holds what the reducers of an Attack share.
type AttackConfig struct {
	// Oracle answers the queries of every reducer.
	Oracle oracle.Oracle

	// Budget applies to each reducer separately.
	Budget Budget

	// Parallel caps the reducers running at once. Zero or less runs them
	// all together.
	Parallel int

	// Seed makes the plaintexts drawn reproducible. Reducer i is seeded
	// with Seed+i.
	Seed fn.Option[uint64]

	// Clock is used for time budgets. The system clock when nil.
	Clock clock.Clock

	// Observe, if set, is called with every snapshot of every reducer,
	// along with the index of its characteristic in the arguments to
	// Attack. Calls come from several goroutines at once.
	Observe func(int, Characteristic, Snapshot)
}

// Attack runs one reducer per characteristic, concurrently, and returns
// their results in the order given. The characteristics are all checked
// before the first query. The first reducer to fail cancels the others; the
// results gathered so far are returned with its error.
func Attack(ctx context.Context, cfg *AttackConfig,
	cs ...Characteristic) ([]*Result, error) {

	reducers := make([]*Reducer, len(cs))
	for i, c := range cs {
		opts := []Option{}

		cfg.Seed.WhenSome(func(seed uint64) {
			opts = append(opts, WithSeed(seed+uint64(i)))
		})
		if cfg.Clock != nil {
			opts = append(opts, WithClock(cfg.Clock))
		}
		if cfg.Observe != nil {
			opts = append(opts, WithObserver(func(s Snapshot) {
				cfg.Observe(i, c, s)
			}))
		}

		r, err := NewReducer(c, cfg.Oracle, opts...)
		if err != nil {
			return nil, fmt.Errorf("characteristic %d (%v): %w", i,
				c, err)
		}
		reducers[i] = r
	}

	results := make([]*Result, len(cs))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallel > 0 {
		g.SetLimit(cfg.Parallel)
	}

	for i, r := range reducers {
		g.Go(func() error {
			log.Debugf("Starting reduction of S-box %d", r.c.SBox)

			res, err := r.Reduce(gctx, cfg.Budget)
			results[i] = res
			if err != nil {
				return fmt.Errorf("S-box %d: %w", r.c.SBox, err)
			}

			return nil
		})
	}

	return results, g.Wait()
}
