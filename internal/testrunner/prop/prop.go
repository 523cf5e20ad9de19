// Package prop is a small property checker: random inputs from a Generator,
// trials spread over a bounded worker pool, and greedy shrinking of the
// first failing input.
package prop

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	stderrors "errors"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Generator produces a value of type T from a PRNG and a size hint.
type Generator[T any] func(r *rand.Rand, size int) T

// Shrinker returns candidates smaller than v. Order matters: the first
// candidate that still fails is taken.
type Shrinker[T any] func(v T) []T

// Property1 is a unary property predicate.
type Property1[A any] func(a A) bool

// Options control property checking. Zero fields take defaults.
type Options struct {
	Trials          int           // default 200
	Seed            int64         // 0 means time.Now().UnixNano()
	Size            int           // size hint for generators, default 30
	Parallelism     int           // <=0 means GOMAXPROCS
	MaxShrinkRounds int           // default 200
	MaxShrinkTime   time.Duration // 0 disables the limit
}

func (o Options) withDefaults() Options {
	if o.Trials <= 0 {
		o.Trials = 200
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Size <= 0 {
		o.Size = 30
	}
	if o.Parallelism <= 0 {
		o.Parallelism = max(runtime.GOMAXPROCS(0), 1)
	}
	if o.MaxShrinkRounds <= 0 {
		o.MaxShrinkRounds = 200
	}
	return o
}

// Result is the outcome of a property check.
type Result struct {
	PassedTrials int
	Failed       bool
	// FailingTrial is the index of the lowest failing trial seen. Together
	// with Seed it reproduces FailingInput.
	FailingTrial int
	FailingInput any
	ShrunkInput  any
	Seed         int64
	Duration     time.Duration
	ShrinkRounds int
}

var errTrialFailed = stderrors.New("prop: trial failed")

// ForAll1 checks prop against opts.Trials generated inputs. Trial i always
// draws from the same PRNG stream for a given seed, so a failure is
// reproducible regardless of Parallelism.
func ForAll1[A any](gen Generator[A], shrink Shrinker[A], prop Property1[A], opts Options) Result {
	start := time.Now()
	opts = opts.withDefaults()
	res := Result{Seed: opts.Seed, FailingTrial: -1}

	var (
		mu      sync.Mutex
		failing A
		passed  atomic.Int64
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Parallelism)
	for i := 0; i < opts.Trials && ctx.Err() == nil; i++ {
		g.Go(func() error {
			a := gen(newTrialRand(opts.Seed, i), opts.Size)
			if prop(a) {
				passed.Add(1)
				return nil
			}
			mu.Lock()
			if res.FailingTrial < 0 || i < res.FailingTrial {
				res.FailingTrial, failing = i, a
			}
			mu.Unlock()
			return errTrialFailed
		})
	}
	res.Failed = g.Wait() != nil
	res.PassedTrials = int(passed.Load())

	if res.Failed {
		res.FailingInput = failing
		if shrink != nil {
			var best A
			best, res.ShrinkRounds = shrinkFailure(failing, shrink, prop, opts)
			res.ShrunkInput = best
		}
	}
	res.Duration = time.Since(start)
	return res
}

func shrinkFailure[A any](a A, shrink Shrinker[A], prop Property1[A], opts Options) (A, int) {
	var deadline time.Time
	if opts.MaxShrinkTime > 0 {
		deadline = time.Now().Add(opts.MaxShrinkTime)
	}
	best, rounds := a, 0
	for rounds < opts.MaxShrinkRounds {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		next, ok := lo.Find(shrink(best), func(c A) bool { return !prop(c) })
		rounds++
		if !ok {
			break
		}
		best = next
	}
	return best, rounds
}

// Check1 runs ForAll1 and fails t with everything needed to reproduce.
func Check1[A any](t testing.TB, name string, gen Generator[A], shrink Shrinker[A], prop Property1[A], opts Options) Result {
	t.Helper()
	res := ForAll1(gen, shrink, prop, opts)
	if res.Failed {
		input := res.FailingInput
		if res.ShrunkInput != nil {
			input = res.ShrunkInput
		}
		t.Fatalf("%s: property failed at trial %d (seed=%d): input=%+v", name, res.FailingTrial, res.Seed, input)
	}
	return res
}

// newTrialRand returns the PRNG used for trial idx of a run seeded with base.
func newTrialRand(base int64, idx int) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(base, idx)))
}

// deriveSeed mixes the base seed with the trial index.
func deriveSeed(base int64, idx int) int64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(base))
	binary.LittleEndian.PutUint64(b[8:16], uint64(idx))
	h := sha256.Sum256(b[:])
	return int64(binary.LittleEndian.Uint64(h[0:8]))
}
