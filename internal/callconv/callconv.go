// Package callconv assigns argument and return value locations under the
// Cpu0 O32 calling convention.
//
// A convention is a Table of Rules applied in order to each value until one
// of them assigns a location. Tables are plain data: they are never mutated
// after initialization and may be shared by concurrent lowerings. All mutable
// bookkeeping lives in a State, which is created per argument list.
package callconv

import (
	"github.com/samber/lo"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// LocInfo describes how a value is widened to its location type.
type LocInfo uint8

const (
	Full LocInfo = iota
	SExt
	ZExt
	AExt
)

func (li LocInfo) String() string {
	switch li {
	case Full:
		return "full"
	case SExt:
		return "sext"
	case ZExt:
		return "zext"
	case AExt:
		return "aext"
	}
	return "unknown"
}

// ArgFlags are the ABI attributes of one argument or return value.
type ArgFlags struct {
	SExt  bool
	ZExt  bool
	ByVal bool
	SRet  bool
	InReg bool

	ByValSize  int
	ByValAlign int
}

// Arg is one value handed to an analysis.
type Arg struct {
	VT    dag.ValueType
	Flags ArgFlags
}

// Assignment is the location chosen for one value.
type Assignment struct {
	ValNo int
	ValVT dag.ValueType
	LocVT dag.ValueType
	Info  LocInfo

	IsReg bool
	Reg   target.Reg

	// Offset and Size describe a memory location. For outgoing arguments the
	// offset is relative to the start of the overflow area; for formal
	// arguments it is relative to the start of the incoming argument area.
	Offset int
	Size   int

	// ByVal aggregates list the argument registers carrying their leading
	// words, in order. The remaining words live at Offset.
	ByVal bool
	Regs  []target.Reg
}

// IsMem reports whether the value (or part of it) lives in memory.
func (a Assignment) IsMem() bool { return !a.IsReg }

// Candidate is the value a table is being applied to. Promotion rules
// rewrite LocVT and Info in place; assignment rules consume it.
type Candidate struct {
	ValNo int
	ValVT dag.ValueType
	LocVT dag.ValueType
	Info  LocInfo
	Flags ArgFlags
}

// Action is the effect of a rule. It returns true when the candidate has
// been assigned a location and no further rules apply.
type Action func(s *State, c *Candidate) bool

// Rule applies Do to candidates accepted by Match.
type Rule struct {
	Match func(c *Candidate) bool
	Do    Action
}

// Table is a named, ordered list of rules.
type Table struct {
	Name  string
	Rules []Rule
}

// IfByVal applies a to aggregates passed by value.
func IfByVal(a Action) Rule {
	return Rule{Match: func(c *Candidate) bool { return c.Flags.ByVal }, Do: a}
}

// IfType applies a to candidates whose current location type is one of vts.
func IfType(a Action, vts ...dag.ValueType) Rule {
	return Rule{Match: func(c *Candidate) bool { return !c.Flags.ByVal && lo.Contains(vts, c.LocVT) }, Do: a}
}

// PromoteToType widens the candidate to vt. The extension kind follows the
// argument's sext/zext attributes and defaults to any-extend.
func PromoteToType(vt dag.ValueType) Action {
	return func(_ *State, c *Candidate) bool {
		c.LocVT = vt
		switch {
		case c.Flags.SExt:
			c.Info = SExt
		case c.Flags.ZExt:
			c.Info = ZExt
		default:
			c.Info = AExt
		}
		return false
	}
}

// AssignToReg assigns the first free register of regs.
func AssignToReg(regs ...target.Reg) Action {
	return func(s *State, c *Candidate) bool {
		r, ok := s.AllocateReg(regs...)
		if !ok {
			return false
		}
		s.add(Assignment{
			ValNo: c.ValNo, ValVT: c.ValVT, LocVT: c.LocVT, Info: c.Info,
			IsReg: true, Reg: r,
		})
		return true
	}
}

// AssignToStack assigns size bytes of overflow area aligned to align.
func AssignToStack(size, align int) Action {
	return func(s *State, c *Candidate) bool {
		off := s.AllocateStack(size, align)
		s.add(Assignment{
			ValNo: c.ValNo, ValVT: c.ValVT, LocVT: c.LocVT, Info: c.Info,
			Offset: off, Size: size,
		})
		return true
	}
}

// maxByValAlign caps aggregate alignment at the stack alignment.
const maxByValAlign = 8

// PassByVal passes an aggregate as a sequence of words. Leading words take
// the argument registers still free; the rest is placed in the overflow
// area. Aggregates of size zero are recorded without any space so that the
// lowering can reject them.
func PassByVal(minSize, minAlign int) Action {
	return func(s *State, c *Candidate) bool {
		a := Assignment{ValNo: c.ValNo, ValVT: c.ValVT, LocVT: c.LocVT, Info: Full, ByVal: true}
		if c.Flags.ByValSize == 0 {
			a.Offset = s.stack
			s.add(a)
			return true
		}

		size := max(c.Flags.ByValSize, minSize)
		words := (size + wordSize - 1) / wordSize
		for words > 0 {
			r, ok := s.AllocateReg(s.argRegs...)
			if !ok {
				break
			}
			a.Regs = append(a.Regs, r)
			words--
		}

		align := min(max(c.Flags.ByValAlign, minAlign), maxByValAlign)
		if words > 0 {
			a.Offset = s.AllocateStack(words*wordSize, align)
		} else {
			a.Offset = s.stack
		}
		a.Size = (len(a.Regs) + words) * wordSize
		s.add(a)
		return true
	}
}

const wordSize = 4

// CCCpu0 is the argument convention: sub-word values are widened, the first
// two words travel in $a0/$a1 and the rest in 4 byte overflow slots.
var CCCpu0 = &Table{
	Name: "CC_Cpu0",
	Rules: []Rule{
		IfByVal(PassByVal(4, 4)),
		IfType(PromoteToType(dag.I32), dag.I1, dag.I8, dag.I16),
		IfType(AssignToReg(target.A0, target.A1), dag.I32),
		IfType(AssignToStack(4, 4), dag.I32),
	},
}

// RetCCCpu0 is the return convention: $v0 then $v1, never memory.
var RetCCCpu0 = &Table{
	Name: "RetCC_Cpu0",
	Rules: []Rule{
		IfType(PromoteToType(dag.I32), dag.I1, dag.I8, dag.I16),
		IfType(AssignToReg(target.V0, target.V1), dag.I32),
	},
}

// apply runs the table over one candidate. It reports whether a location
// was assigned.
func (t *Table) apply(s *State, c *Candidate) bool {
	for _, r := range t.Rules {
		if !r.Match(c) {
			continue
		}
		if r.Do(s, c) {
			return true
		}
	}
	return false
}
