package prop

import (
	"math/rand"

	"github.com/samber/lo"
)

// GenIntRange returns a generator for ints uniformly drawn from [lo, hi].
func GenIntRange(lo, hi int) Generator[int] {
	return func(r *rand.Rand, _ int) int {
		if hi <= lo {
			return lo
		}
		return lo + r.Intn(hi-lo+1)
	}
}

// ShrinkIntToward reduces v toward floor.
func ShrinkIntToward(floor int) Shrinker[int] {
	return func(v int) []int {
		if v == floor {
			return nil
		}
		out := []int{floor, floor + (v-floor)/2}
		if v > floor {
			out = append(out, v-1)
		} else {
			out = append(out, v+1)
		}
		return lo.Without(lo.Uniq(out), v)
	}
}

// GenUint32 returns a generator for 32 bit words. One draw in four is taken
// from boundary values (0, all ones, sign and half-word sign bits).
func GenUint32() Generator[uint32] {
	edges := []uint32{0, 1, 0x7fff, 0x8000, 0xffff, 0x7fffffff, 0x80000000, 0xffff8000, 0xffffffff}
	return func(r *rand.Rand, _ int) uint32 {
		if r.Intn(4) == 0 {
			return edges[r.Intn(len(edges))]
		}
		return r.Uint32()
	}
}

// ShrinkUint32 clears bits from the top down.
func ShrinkUint32() Shrinker[uint32] {
	return func(v uint32) []uint32 {
		if v == 0 {
			return nil
		}
		out := []uint32{0, v >> 1, v & 0xffff, v &^ 0xffff}
		return lo.Without(lo.Uniq(out), v)
	}
}

// GenUint64 returns a generator for 64 bit values built from two GenUint32 halves.
func GenUint64() Generator[uint64] {
	g := GenUint32()
	return func(r *rand.Rand, size int) uint64 {
		return uint64(g(r, size))<<32 | uint64(g(r, size))
	}
}

// GenOneOf picks one of the given values.
func GenOneOf[T any](vals ...T) Generator[T] {
	return func(r *rand.Rand, _ int) T { return vals[r.Intn(len(vals))] }
}

// GenBool returns a boolean generator.
func GenBool() Generator[bool] {
	return func(r *rand.Rand, _ int) bool { return r.Intn(2) == 0 }
}

// Pair is a generated two-tuple.
type Pair[A, B any] struct {
	A A
	B B
}

// GenPair combines two generators.
func GenPair[A, B any](ga Generator[A], gb Generator[B]) Generator[Pair[A, B]] {
	return func(r *rand.Rand, size int) Pair[A, B] {
		return Pair[A, B]{A: ga(r, size), B: gb(r, size)}
	}
}

// GenSlice returns a slice generator using the element generator.
func GenSlice[T any](elem Generator[T]) Generator[[]T] {
	return func(r *rand.Rand, size int) []T {
		n := r.Intn(max(0, size) + 1)
		out := make([]T, n)
		for i := 0; i < n; i++ {
			out[i] = elem(r, size)
		}
		return out
	}
}

// ShrinkSlice tries each half, the slice without its last element, and
// finally shrinks the first element.
func ShrinkSlice[T any](elem Shrinker[T]) Shrinker[[]T] {
	return func(v []T) []([]T) {
		if len(v) == 0 {
			return nil
		}
		mid := len(v) / 2
		candidates := [][]T{
			append([]T(nil), v[:mid]...),
			append([]T(nil), v[mid:]...),
			append([]T(nil), v[:len(v)-1]...),
		}
		if elem == nil {
			return candidates
		}
		// then the same slice with a smaller head
		for _, h := range elem(v[0]) {
			candidates = append(candidates, append([]T{h}, v[1:]...))
		}
		return candidates
	}
}
