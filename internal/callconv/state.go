package callconv

import (
	"github.com/samber/lo"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// State accumulates the locations of one argument or return list.
type State struct {
	argRegs []target.Reg
	used    target.RegMask
	stack   int
	locs    []Assignment

	homed []target.Reg
}

// NewState creates an empty state for the given ABI.
func NewState(abi *target.ABI) *State {
	return &State{argRegs: abi.ArgRegs}
}

func (s *State) add(a Assignment) { s.locs = append(s.locs, a) }

// AllocateReg marks and returns the first register of regs not yet taken.
func (s *State) AllocateReg(regs ...target.Reg) (target.Reg, bool) {
	for _, r := range regs {
		if !s.used.Has(r) {
			s.used |= target.MaskOf(r)
			return r, true
		}
	}
	return target.NoReg, false
}

// IsAllocated reports whether r has been handed out.
func (s *State) IsAllocated(r target.Reg) bool { return s.used.Has(r) }

// AllocateStack reserves size bytes aligned to align and returns the offset.
func (s *State) AllocateStack(size, align int) int {
	if align > 1 {
		s.stack = (s.stack + align - 1) / align * align
	}
	off := s.stack
	s.stack += size
	return off
}

// NextStackOffset returns the number of overflow bytes used so far.
func (s *State) NextStackOffset() int { return s.stack }

// Locs returns the assignments made so far, in value order.
func (s *State) Locs() []Assignment { return s.locs }

// HomedRegs returns the argument registers whose scalar contents a formal
// argument list expects to find in their home slots.
func (s *State) HomedRegs() []target.Reg { return s.homed }

// UnallocatedArgRegs returns the argument registers no value was assigned to.
func (s *State) UnallocatedArgRegs() []target.Reg {
	return lo.Filter(s.argRegs, func(r target.Reg, _ int) bool { return !s.used.Has(r) })
}

// HomeAreaSize is the size of the register home slots at the start of the
// incoming argument area.
func (s *State) HomeAreaSize() int { return len(s.argRegs) * wordSize }

func (s *State) analyze(t *Table, args []Arg) (int, bool) {
	for i, a := range args {
		c := &Candidate{ValNo: i, ValVT: a.VT, LocVT: a.VT, Info: Full, Flags: a.Flags}
		if !t.apply(s, c) {
			return i, false
		}
	}
	return 0, true
}

// AnalyzeCallOperands assigns the outgoing arguments of a call. Register
// assignments come first; stack offsets start at 0 in the overflow area
// above the register home slots.
func (s *State) AnalyzeCallOperands(t *Table, args []Arg) ([]Assignment, error) {
	if i, ok := s.analyze(t, args); !ok {
		return nil, cerrors.UnsupportedValueType(args[i].VT.String(), t.Name)
	}
	return s.locs, nil
}

// AnalyzeFormalArguments assigns incoming arguments as the callee sees them.
// The caller's register assignments are rehomed: the prologue stores each
// argument register into its home slot, so every scalar argument is read
// from memory at (register index * 4), and overflow arguments follow the
// home area. Registers outside the argument set are left as register
// locations.
func (s *State) AnalyzeFormalArguments(t *Table, args []Arg) ([]Assignment, error) {
	if i, ok := s.analyze(t, args); !ok {
		return nil, cerrors.UnsupportedValueType(args[i].VT.String(), t.Name)
	}

	home := s.HomeAreaSize()
	out := make([]Assignment, len(s.locs))
	for i, a := range s.locs {
		switch {
		case a.ByVal:
			if len(a.Regs) > 0 {
				a.Offset = lo.IndexOf(s.argRegs, a.Regs[0]) * wordSize
			} else {
				a.Offset += home
			}
		case a.IsReg:
			idx := lo.IndexOf(s.argRegs, a.Reg)
			if idx < 0 {
				break
			}
			s.homed = append(s.homed, a.Reg)
			a.IsReg = false
			a.Offset = idx * wordSize
			a.Size = wordSize
			a.Reg = target.NoReg
		default:
			a.Offset += home
		}
		out[i] = a
	}
	s.locs = out
	return out, nil
}

// IncomingAreaEnd returns the first word aligned offset past every formal
// argument, which is where variadic arguments begin.
func (s *State) IncomingAreaEnd() int {
	end := lo.Reduce(s.locs, func(acc int, a Assignment, _ int) int {
		if a.IsReg {
			return acc
		}
		return max(acc, a.Offset+a.Size)
	}, 0)
	return (end + wordSize - 1) / wordSize * wordSize
}

// AnalyzeReturn assigns the values returned by the current function.
func (s *State) AnalyzeReturn(t *Table, rets []Arg) ([]Assignment, error) {
	return s.analyzeRegsOnly(t, rets)
}

// AnalyzeCallResult assigns the values produced by a call.
func (s *State) AnalyzeCallResult(t *Table, vts []dag.ValueType) ([]Assignment, error) {
	args := lo.Map(vts, func(vt dag.ValueType, _ int) Arg { return Arg{VT: vt} })
	return s.analyzeRegsOnly(t, args)
}

func (s *State) analyzeRegsOnly(t *Table, vals []Arg) ([]Assignment, error) {
	if i, ok := s.analyze(t, vals); !ok {
		if vals[i].VT.IsInteger() && vals[i].VT.Bits() <= 32 {
			return nil, cerrors.ReturnNotInRegisters(i)
		}
		return nil, cerrors.UnsupportedValueType(vals[i].VT.String(), t.Name)
	}
	for _, a := range s.locs {
		if !a.IsReg {
			return nil, cerrors.ReturnNotInRegisters(a.ValNo)
		}
	}
	return s.locs, nil
}
