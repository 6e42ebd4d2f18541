// Package oracle defines the black box an attack queries for ciphertexts,
// along with an in-process implementation and decorators that count, meter
// and rate limit queries.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/joelmire/DESAttack/pkg/des"
)

// Oracle enciphers plaintexts under a fixed key the caller does not know.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Encrypt(ctx context.Context, plaintext uint64) (uint64, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, plaintext uint64) (uint64, error)

func (f Func) Encrypt(ctx context.Context, plaintext uint64) (uint64, error) {
	return f(ctx, plaintext)
}

// QueryError is returned when an oracle fails to answer. No ciphertext is
// ever substituted for a failed query.
type QueryError struct {
	Plaintext uint64
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("oracle query %016x failed: %v", e.Plaintext, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Query asks o for the ciphertext of plaintext, wrapping any failure in a
// *QueryError.
func Query(ctx context.Context, o Oracle, plaintext uint64) (uint64, error) {
	c, err := o.Encrypt(ctx, plaintext)
	if err == nil {
		return c, nil
	}

	log.Debugf("Query %016x failed: %v", plaintext, err)

	var qErr *QueryError
	if errors.As(err, &qErr) {
		return 0, err
	}

	return 0, &QueryError{Plaintext: plaintext, Err: err}
}

// Local enciphers in process under a key it holds. It stands in for the
// external oracle in tests and benchmarks.
type Local struct {
	key uint64
}

func NewLocal(key uint64) *Local {
	return &Local{key: key & des.Mask56}
}

func (l *Local) Encrypt(ctx context.Context, plaintext uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return des.Encrypt(l.key, plaintext), nil
}

// Counting counts the queries passed through to the wrapped oracle.
type Counting struct {
	Oracle

	interactions atomic.Uint64
}

func NewCounting(o Oracle) *Counting {
	return &Counting{Oracle: o}
}

func (c *Counting) Encrypt(ctx context.Context,
	plaintext uint64) (uint64, error) {

	c.interactions.Add(1)
	return c.Oracle.Encrypt(ctx, plaintext)
}

// Interactions is the number of queries made so far, failed ones included.
func (c *Counting) Interactions() uint64 {
	return c.interactions.Load()
}

type rateLimited struct {
	Oracle
	limiter *rate.Limiter
}

// RateLimit waits on limiter before every query to o.
func RateLimit(o Oracle, limiter *rate.Limiter) Oracle {
	return &rateLimited{Oracle: o, limiter: limiter}
}

func (r *rateLimited) Encrypt(ctx context.Context,
	plaintext uint64) (uint64, error) {

	if err := r.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}

	return r.Oracle.Encrypt(ctx, plaintext)
}
