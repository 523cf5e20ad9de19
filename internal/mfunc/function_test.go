package mfunc

import (
	"testing"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
)

func TestFixedObjectsHaveNegativeIndices(t *testing.T) {
	f := New("f", false, false)
	a := f.CreateFixedObject(4, 0, true)
	b := f.CreateFixedObject(8, 4, true)
	c := f.CreateStackObject(16, 8)

	assert.Equal(t, a, -1)
	assert.Equal(t, b, -2)
	assert.Equal(t, c, 0)
	assert.Equal(t, f.ObjectOffset(b), 4)
	assert.Equal(t, f.ObjectSize(b), 8)
	assert.Equal(t, f.NumFixedObjects(), 2)

	f.SetObjectOffset(a, 24)
	assert.Equal(t, f.ObjectOffset(a), 24)

	_, ok := f.Object(-3)
	assert.False(t, ok)
	assert.Panics(t, func() { f.ObjectOffset(5) })
}

func TestSRetReturnRegSetOnce(t *testing.T) {
	f := New("make_pair", false, true)
	assert.Equal(t, f.SRetReturnReg(), target.NoReg)

	r := f.CreateVirtualRegister(target.CPURegs)
	assert.NoError(t, f.SetSRetReturnReg(r))
	assert.NoError(t, f.SetSRetReturnReg(r), "setting the same register again is harmless")

	other := f.CreateVirtualRegister(target.CPURegs)
	err := f.SetSRetReturnReg(other)
	assert.Invariant(t, err, cerrors.CodeSRetAlreadyCreated)
	assert.Equal(t, f.SRetReturnReg(), r)
}

func TestMaxCallFrameSizeIsMonotonic(t *testing.T) {
	f := New("f", false, false)
	steps := []struct {
		n    int
		grew bool
		max  int
	}{
		{12, true, 12},
		{8, false, 12},
		{12, false, 12},
		{20, true, 20},
		{0, false, 20},
	}
	for _, s := range steps {
		assert.Equal(t, f.NoteCallFrameSize(s.n), s.grew, "size", s.n)
		assert.Equal(t, f.MaxCallFrameSize(), s.max)
	}
}

func TestLiveInsAreShared(t *testing.T) {
	f := New("f", false, false)
	v1 := f.AddLiveIn(target.A0, target.CPURegs)
	v2 := f.AddLiveIn(target.A1, target.CPURegs)
	v3 := f.AddLiveIn(target.A0, target.CPURegs)

	assert.True(t, v1.IsVirtual())
	assert.Equal(t, v1, v3)
	assert.NotEqual(t, v1, v2)
	assert.Len(t, f.LiveIns(), 2)
	assert.Equal(t, f.RegClassOf(v2), target.CPURegs)
	assert.Equal(t, f.NumVirtRegs(), 2)
}

func TestLazySlots(t *testing.T) {
	f := New("f", false, false)
	assert.False(t, f.NeedGPSaveRestore())

	fi := f.DynAllocFI()
	assert.Equal(t, f.DynAllocFI(), fi)
	assert.True(t, fi < 0)

	assert.Equal(t, f.GlobalBaseReg(), target.GP)
	f.SetGlobalBaseRegFixed(false)
	gb := f.GlobalBaseReg()
	assert.True(t, gb.IsVirtual())
	assert.Equal(t, f.GlobalBaseReg(), gb)
}

func TestOutArgRange(t *testing.T) {
	f := New("f", false, false)
	assert.False(t, f.IsOutArgFI(-1))

	f.ExtendOutArgFIRange(-2, -3)
	f.ExtendOutArgFIRange(-4, -6)
	first, last := f.OutArgFIRange()
	assert.Equal(t, first, -2)
	assert.Equal(t, last, -6)
	assert.True(t, f.IsOutArgFI(-5))
	assert.False(t, f.IsOutArgFI(-1))

	f.SetLastInArgFI(-2)
	assert.True(t, f.IsInArgFI(-1))
	assert.False(t, f.IsInArgFI(-3))
}

func TestHomeArgRegsDeduplicates(t *testing.T) {
	f := New("f", true, false)
	f.HomeArgRegs(target.A0)
	f.HomeArgRegs(target.A0, target.A1)
	assert.SliceEqual(t, f.HomedArgRegs(), []target.Reg{target.A0, target.A1})
}
