// Package differential recovers round 1 subkey bits of the two round cipher
// from an encryption oracle, one S-box at a time, by chosen plaintext
// differential cryptanalysis.
package differential

import (
	"context"
	"errors"
	"iter"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joelmire/DESAttack/pkg/des"
	"github.com/joelmire/DESAttack/pkg/oracle"
)

const (
	// Candidates is the size of the initial keyspace: every 6-bit subkey
	// nibble.
	Candidates = 64

	// ConvergedSize is the keyspace size at which reduction stops. The true
	// nibble k and k ^ DeltaIn always pass the same tests, so two
	// candidates is the best a single characteristic can do.
	ConvergedSize = 2
)

// ErrKeyspaceExhausted is returned when every candidate has been ruled out.
// This cannot happen when the oracle is the cipher the characteristic was
// built for.
var ErrKeyspaceExhausted = errors.New("no subkey candidates remain")

// Snapshot is the state of a reduction after one trial.
type Snapshot struct {
	// Trial counts the plaintext pairs tried so far, this one included.
	Trial uint64

	// RightPairs counts the pairs that matched the expected ciphertext
	// difference.
	RightPairs uint64

	// RightPair is set if this trial's pair matched.
	RightPair bool

	// Keyspace is a sorted copy of the remaining candidates.
	Keyspace []uint8
}

// Budget bounds a reduction. Unset limits do not apply, so the zero Budget
// runs until convergence.
type Budget struct {
	MaxTrials   fn.Option[uint64]
	MaxDuration fn.Option[time.Duration]
}

func (b Budget) exhausted(trials uint64, elapsed time.Duration) bool {
	return fn.MapOptionZ(b.MaxTrials, func(limit uint64) bool {
		return trials >= limit
	}) || fn.MapOptionZ(b.MaxDuration, func(limit time.Duration) bool {
		return elapsed >= limit
	})
}

// Result is the outcome of Reduce.
type Result struct {
	Characteristic Characteristic
	Keyspace       []uint8
	Trials         uint64
	RightPairs     uint64

	// Converged is false when the budget ran out first.
	Converged bool
	Elapsed   time.Duration
}

// Reducer narrows the candidate subkey nibbles for one characteristic. It is
// not safe for concurrent use; run one Reducer per goroutine.
type Reducer struct {
	c      Characteristic
	oracle oracle.Oracle

	pi       fn.Set[uint8]
	keyspace fn.Set[uint8]

	rng     *rand.Rand
	clock   clock.Clock
	observe func(Snapshot)

	trials     uint64
	rightPairs uint64
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithRand sets the source of plaintexts.
func WithRand(rng *rand.Rand) Option {
	return func(r *Reducer) {
		r.rng = rng
	}
}

// WithSeed draws plaintexts from a PCG generator seeded with seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithClock sets the clock used for time budgets.
func WithClock(c clock.Clock) Option {
	return func(r *Reducer) {
		r.clock = c
	}
}

// WithObserver has Reduce pass every snapshot to f.
func WithObserver(f func(Snapshot)) Option {
	return func(r *Reducer) {
		r.observe = f
	}
}

// NewReducer checks c and precomputes its compatible inputs. No oracle
// query is made for an invalid characteristic.
func NewReducer(c Characteristic, o oracle.Oracle, opts ...Option) (*Reducer,
	error) {

	pi, err := CompatibleInputs(c)
	if err != nil {
		return nil, err
	}

	keyspace := fn.NewSet[uint8]()
	for k := uint8(0); k < Candidates; k++ {
		keyspace.Add(k)
	}

	r := &Reducer{
		c:        c,
		oracle:   o,
		pi:       pi,
		keyspace: keyspace,
		clock:    clock.NewDefaultClock(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return r, nil
}

// Characteristic returns the trail being followed.
func (r *Reducer) Characteristic() Characteristic {
	return r.c
}

// Keyspace returns the remaining candidates in ascending order.
func (r *Reducer) Keyspace() []uint8 {
	ks := r.keyspace.ToSlice()
	slices.Sort(ks)

	return ks
}

// Done reports whether the keyspace is down to ConvergedSize candidates or
// fewer.
func (r *Reducer) Done() bool {
	return len(r.keyspace) <= ConvergedSize
}

// Step tries one random plaintext pair. A pair whose ciphertext difference
// is not the expected one tells us nothing and leaves the keyspace alone. A
// right pair rules out every candidate k for which the known S-box input
// bits, XORed with k, fall outside the compatible inputs.
func (r *Reducer) Step(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return r.snapshot(false), err
	}

	p := r.rng.Uint64()

	c, err := oracle.Query(ctx, r.oracle, p)
	if err != nil {
		return r.snapshot(false), err
	}
	cc, err := oracle.Query(ctx, r.oracle, p^r.c.DeltaP)
	if err != nil {
		return r.snapshot(false), err
	}

	r.trials++

	if c^cc != r.c.DeltaC {
		return r.snapshot(false), nil
	}

	r.rightPairs++

	eSub := des.Chunk(des.Expand(uint32(p&des.Mask32)), r.c.SBox)
	for k := range r.keyspace {
		if !r.pi.Contains(eSub ^ k) {
			r.keyspace.Remove(k)
		}
	}

	log.Debugf("%v: right pair %d at trial %d, %d candidates remain",
		r.c, r.rightPairs, r.trials, len(r.keyspace))

	return r.snapshot(true), nil
}

// Trials yields a snapshot after every trial until the keyspace converges.
// A failed query or a cancelled context is yielded as an error and ends the
// sequence. Callers stop early by breaking out of the loop, which is how a
// trial or time limit is imposed.
func (r *Reducer) Trials(ctx context.Context) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		for !r.Done() {
			s, err := r.Step(ctx)
			if err != nil {
				yield(s, err)
				return
			}

			if !yield(s, nil) {
				return
			}
		}
	}
}

// Reduce runs trials until the keyspace converges or b is used up. Running
// out of budget is not an error: the result has Converged unset and holds
// whatever candidates remain.
func (r *Reducer) Reduce(ctx context.Context, b Budget) (*Result, error) {
	start := r.clock.Now()

	if !b.exhausted(r.trials, 0) {
		for s, err := range r.Trials(ctx) {
			if err != nil {
				return r.result(start), err
			}

			if r.observe != nil {
				r.observe(s)
			}

			if b.exhausted(s.Trial, r.clock.Now().Sub(start)) {
				break
			}
		}
	}

	res := r.result(start)
	switch {
	case len(res.Keyspace) == 0:
		return res, ErrKeyspaceExhausted

	case !res.Converged:
		log.Warnf("%v: budget exhausted after %d trials with %d "+
			"candidates remaining", r.c, res.Trials,
			len(res.Keyspace))

	default:
		log.Infof("%v: converged to %v after %d trials (%d right "+
			"pairs)", r.c, res.Keyspace, res.Trials, res.RightPairs)
	}

	return res, nil
}

func (r *Reducer) snapshot(right bool) Snapshot {
	return Snapshot{
		Trial:      r.trials,
		RightPairs: r.rightPairs,
		RightPair:  right,
		Keyspace:   r.Keyspace(),
	}
}

func (r *Reducer) result(start time.Time) *Result {
	return &Result{
		Characteristic: r.c,
		Keyspace:       r.Keyspace(),
		Trials:         r.trials,
		RightPairs:     r.rightPairs,
		Converged:      r.Done(),
		Elapsed:        r.clock.Now().Sub(start),
	}
}
