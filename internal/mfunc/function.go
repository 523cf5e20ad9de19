// Package mfunc holds the per-function state the lowering pass creates and
// hands to the prologue/epilogue emitter: frame objects, virtual registers,
// live-in registers and the Cpu0 specific function info.
package mfunc

import (
	"fmt"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// FrameObject is a stack slot. Fixed objects live at a known offset from the
// incoming stack pointer; ordinary objects are placed by frame lowering.
type FrameObject struct {
	Size      int
	Offset    int
	Align     int
	Fixed     bool
	Immutable bool
}

// LiveIn pairs a physical register live on entry with the virtual register
// that receives it.
type LiveIn struct {
	Phys target.Reg
	Virt target.Reg
}

// Function is the lowering state of one function. It is owned by the
// goroutine lowering that function and must not be shared.
type Function struct {
	Name         string
	IsVarArg     bool
	HasStructRet bool

	fixed   []FrameObject // frame index -1-i
	objects []FrameObject // frame index i
	vregs   []*target.RegClass
	liveIns []LiveIn

	sretReg          target.Reg
	maxCallFrameSize int
	varArgsFI        int
	dynAllocFI       int
	gpFI             int
	globalBaseReg    target.Reg
	globalBaseFixed  bool
	emitNOAT         bool

	outArgFIRange [2]int
	lastInArgFI   int
	homedArgRegs  []target.Reg
}

// New creates the state of a function.
func New(name string, isVarArg, hasStructRet bool) *Function {
	return &Function{Name: name, IsVarArg: isVarArg, HasStructRet: hasStructRet, globalBaseFixed: true}
}

// CreateFixedObject creates an object at a fixed offset and returns its
// (negative) frame index.
func (f *Function) CreateFixedObject(size, offset int, immutable bool) int {
	f.fixed = append(f.fixed, FrameObject{Size: size, Offset: offset, Align: 4, Fixed: true, Immutable: immutable})
	return -len(f.fixed)
}

// CreateStackObject creates an ordinary object and returns its frame index.
func (f *Function) CreateStackObject(size, align int) int {
	f.objects = append(f.objects, FrameObject{Size: size, Align: align, Offset: -1})
	return len(f.objects) - 1
}

// Object returns the frame object with index fi.
func (f *Function) Object(fi int) (*FrameObject, bool) {
	if fi < 0 {
		i := -fi - 1
		if i < len(f.fixed) {
			return &f.fixed[i], true
		}
		return nil, false
	}
	if fi < len(f.objects) {
		return &f.objects[fi], true
	}
	return nil, false
}

func (f *Function) mustObject(fi int) *FrameObject {
	o, ok := f.Object(fi)
	if !ok {
		panic(fmt.Sprintf("mfunc: frame index %d out of range in %s", fi, f.Name))
	}
	return o
}

// ObjectOffset returns the offset of frame object fi.
func (f *Function) ObjectOffset(fi int) int { return f.mustObject(fi).Offset }

// SetObjectOffset moves frame object fi.
func (f *Function) SetObjectOffset(fi, offset int) { f.mustObject(fi).Offset = offset }

// ObjectSize returns the size of frame object fi.
func (f *Function) ObjectSize(fi int) int { return f.mustObject(fi).Size }

// NumFixedObjects returns how many fixed objects exist.
func (f *Function) NumFixedObjects() int { return len(f.fixed) }

// CreateVirtualRegister allocates a new virtual register of class rc.
func (f *Function) CreateVirtualRegister(rc *target.RegClass) target.Reg {
	f.vregs = append(f.vregs, rc)
	return target.VirtReg(uint32(len(f.vregs) - 1))
}

// NumVirtRegs returns how many virtual registers exist.
func (f *Function) NumVirtRegs() int { return len(f.vregs) }

// RegClassOf returns the class of virtual register r.
func (f *Function) RegClassOf(r target.Reg) *target.RegClass {
	if !r.IsVirtual() || int(r.VirtIndex()) >= len(f.vregs) {
		return nil
	}
	return f.vregs[r.VirtIndex()]
}

// AddLiveIn records phys as live on entry and returns the virtual register
// holding its value. Asking twice for the same register returns the same
// virtual register.
func (f *Function) AddLiveIn(phys target.Reg, rc *target.RegClass) target.Reg {
	for _, li := range f.liveIns {
		if li.Phys == phys {
			return li.Virt
		}
	}
	v := f.CreateVirtualRegister(rc)
	f.liveIns = append(f.liveIns, LiveIn{Phys: phys, Virt: v})
	return v
}

// LiveIns returns the live-in registers in the order they were added.
func (f *Function) LiveIns() []LiveIn { return f.liveIns }

// SRetReturnReg returns the virtual register holding the struct return
// pointer, or NoReg.
func (f *Function) SRetReturnReg() target.Reg { return f.sretReg }

// SetSRetReturnReg records the struct return register. It may be set once.
func (f *Function) SetSRetReturnReg(r target.Reg) error {
	if f.sretReg != target.NoReg && f.sretReg != r {
		return cerrors.SRetRegisterReassigned(f.Name, f.sretReg.VirtIndex())
	}
	f.sretReg = r
	return nil
}

// MaxCallFrameSize returns the largest outgoing argument area seen so far.
func (f *Function) MaxCallFrameSize() int { return f.maxCallFrameSize }

// NoteCallFrameSize raises the maximum call frame size to n. It reports
// whether the maximum grew.
func (f *Function) NoteCallFrameSize(n int) bool {
	if n <= f.maxCallFrameSize {
		return false
	}
	f.maxCallFrameSize = n
	return true
}

func (f *Function) VarArgsFrameIndex() int      { return f.varArgsFI }
func (f *Function) SetVarArgsFrameIndex(fi int) { f.varArgsFI = fi }
func (f *Function) LastInArgFI() int            { return f.lastInArgFI }
func (f *Function) SetLastInArgFI(fi int)       { f.lastInArgFI = fi }
func (f *Function) EmitNOAT() bool              { return f.emitNOAT }
func (f *Function) SetEmitNOAT()                { f.emitNOAT = true }
func (f *Function) HomedArgRegs() []target.Reg  { return f.homedArgRegs }
func (f *Function) OutArgFIRange() (int, int)   { return f.outArgFIRange[0], f.outArgFIRange[1] }

// HomeArgRegs records argument registers the prologue must store to their
// home slots. Duplicates are ignored.
func (f *Function) HomeArgRegs(regs ...target.Reg) {
	for _, r := range regs {
		dup := false
		for _, h := range f.homedArgRegs {
			if h == r {
				dup = true
				break
			}
		}
		if !dup {
			f.homedArgRegs = append(f.homedArgRegs, r)
		}
	}
}

// DynAllocFI returns the frame object marking the dynamically allocated
// area, creating it on first use.
func (f *Function) DynAllocFI() int {
	if f.dynAllocFI == 0 {
		f.dynAllocFI = f.CreateFixedObject(4, 0, true)
	}
	return f.dynAllocFI
}

// GPFI returns the $gp restore slot, or 0 when none exists.
func (f *Function) GPFI() int               { return f.gpFI }
func (f *Function) SetGPFI(fi int)          { f.gpFI = fi }
func (f *Function) NeedGPSaveRestore() bool { return f.gpFI != 0 }

// GlobalBaseReg returns the register holding the global base. With a fixed
// base it is $gp itself; otherwise a virtual register created on first use.
func (f *Function) GlobalBaseReg() target.Reg {
	if f.globalBaseFixed {
		return target.GP
	}
	if f.globalBaseReg == target.NoReg {
		f.globalBaseReg = f.CreateVirtualRegister(target.CPURegs)
	}
	return f.globalBaseReg
}

// GlobalBaseRegFixed reports whether $gp itself is used as the global base.
func (f *Function) GlobalBaseRegFixed() bool { return f.globalBaseFixed }

// SetGlobalBaseRegFixed selects between $gp and a virtual global base.
func (f *Function) SetGlobalBaseRegFixed(fixed bool) { f.globalBaseFixed = fixed }

// ExtendOutArgFIRange widens the range of frame indices used for outgoing
// arguments to include [first, last].
func (f *Function) ExtendOutArgFIRange(first, last int) {
	if f.outArgFIRange[0] == 0 && f.outArgFIRange[1] == 0 {
		f.outArgFIRange = [2]int{first, last}
		return
	}
	f.outArgFIRange[0] = max(f.outArgFIRange[0], first)
	f.outArgFIRange[1] = min(f.outArgFIRange[1], last)
}

// IsOutArgFI reports whether fi belongs to an outgoing argument.
func (f *Function) IsOutArgFI(fi int) bool {
	first, last := f.OutArgFIRange()
	return first != 0 && fi <= first && fi >= last
}

// IsInArgFI reports whether fi belongs to an incoming argument.
func (f *Function) IsInArgFI(fi int) bool {
	return f.lastInArgFI != 0 && fi < 0 && fi >= f.lastInArgFI
}
