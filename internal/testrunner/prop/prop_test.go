package prop

import (
	"math/rand"
	"testing"
	"time"
)

// Sign extending the low half of a word and adding back the rest is the identity.
func TestForAll1_HalfWordRecombination(t *testing.T) {
	prop := func(v uint32) bool {
		lo := uint32(int32(int16(v & 0xffff)))
		rest := v - lo
		return rest+lo == v && rest&0xffff == 0
	}

	res := ForAll1(GenUint32(), ShrinkUint32(), prop, Options{Trials: 500, MaxShrinkTime: 2 * time.Second})
	if res.Failed {
		t.Fatalf("property failed: seed=%d input=%v shrunk=%v", res.Seed, res.FailingInput, res.ShrunkInput)
	}
}

// Negative property to exercise shrinking: no word has bit 15 set.
func TestForAll1_NegativeShrinksTowardSmallest(t *testing.T) {
	propBad := func(v uint32) bool { return v&0x8000 == 0 }

	res := ForAll1(GenUint32(), ShrinkUint32(), propBad, Options{Trials: 200, MaxShrinkRounds: 50, MaxShrinkTime: 2 * time.Second})
	if !res.Failed {
		t.Fatalf("expected failure to trigger shrinking")
	}
	shrunk, ok := res.ShrunkInput.(uint32)
	if !ok || shrunk&0x8000 == 0 {
		t.Fatalf("shrunk input %v does not fail the property", res.ShrunkInput)
	}
}

func TestForAll1_SlicesOfRangesStayInRange(t *testing.T) {
	gen := GenSlice(GenIntRange(0, 6))
	shrink := ShrinkSlice(ShrinkIntToward(0))
	prop := func(xs []int) bool {
		for _, x := range xs {
			if x < 0 || x > 6 {
				return false
			}
		}
		return true
	}

	res := ForAll1(gen, shrink, prop, Options{Trials: 200, Size: 10, Seed: 42})
	if res.Failed {
		t.Fatalf("property failed: seed=%d input=%v", res.Seed, res.FailingInput)
	}
	if res.PassedTrials != 200 {
		t.Fatalf("passed %d trials, want 200", res.PassedTrials)
	}
}

func TestGenPairIsDeterministicPerSeed(t *testing.T) {
	g := GenPair(GenUint64(), GenIntRange(0, 63))
	for i := 0; i < 20; i++ {
		a := g(newTrialRand(7, i), 30)
		b := g(newTrialRand(7, i), 30)
		if a != b {
			t.Fatalf("trial %d differs between runs: %v vs %v", i, a, b)
		}
		if a.B < 0 || a.B > 63 {
			t.Fatalf("trial %d: shift amount %d out of range", i, a.B)
		}
	}
}

func TestForAll1_ReportsLowestFailingTrial(t *testing.T) {
	gen := func(r *rand.Rand, _ int) int { return r.Intn(10) }
	never7 := func(v int) bool { return v != 7 }

	serial := ForAll1(gen, nil, never7, Options{Trials: 300, Seed: 99, Parallelism: 1})
	wide := ForAll1(gen, nil, never7, Options{Trials: 300, Seed: 99, Parallelism: 8})
	if !serial.Failed || !wide.Failed {
		t.Fatalf("expected both runs to fail")
	}
	// a serial run stops at its first failure; wider runs may see later
	// ones too but must report the same lowest trial
	if serial.FailingTrial != wide.FailingTrial {
		t.Fatalf("failing trial %d with one worker, %d with eight", serial.FailingTrial, wide.FailingTrial)
	}
	if got := gen(newTrialRand(99, serial.FailingTrial), 0); got != 7 {
		t.Fatalf("trial %d replays to %d", serial.FailingTrial, got)
	}
	if serial.ShrunkInput != nil {
		t.Fatalf("no shrinker, got shrunk input %v", serial.ShrunkInput)
	}
}

func TestCheck1Passes(t *testing.T) {
	res := Check1(t, "bool", GenBool(), nil, func(bool) bool { return true }, Options{Trials: 50})
	if res.PassedTrials != 50 || res.FailingTrial != -1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
