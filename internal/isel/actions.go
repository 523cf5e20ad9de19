package isel

import "github.com/orizon-lang/cpu0isel/internal/dag"

// Action tells the generic legalizer what to do with an (opcode, type) pair.
type Action uint8

const (
	Legal Action = iota
	Custom
	Expand
	Promote
)

func (a Action) String() string {
	switch a {
	case Legal:
		return "legal"
	case Custom:
		return "custom"
	case Expand:
		return "expand"
	case Promote:
		return "promote"
	}
	return "unknown"
}

type actionKey struct {
	op dag.Opcode
	vt dag.ValueType
}

// SetCC results are widened to a full register.
const booleanVT = dag.I32

func defaultActions() map[actionKey]Action {
	m := make(map[actionKey]Action)
	set := func(a Action, op dag.Opcode, vts ...dag.ValueType) {
		for _, vt := range vts {
			m[actionKey{op, vt}] = a
		}
	}

	set(Custom, dag.GlobalAddress, dag.I32)
	set(Custom, dag.ExternalSymbol, dag.I32)
	set(Custom, dag.BlockAddress, dag.I32)
	set(Custom, dag.JumpTable, dag.I32)
	set(Custom, dag.ConstantPool, dag.I32)
	set(Custom, dag.Select, dag.I32)
	set(Custom, dag.BrCond, dag.Other)
	set(Custom, dag.VAStart, dag.Other)
	set(Custom, dag.ShlParts, dag.I32)
	set(Custom, dag.SraParts, dag.I32)
	set(Custom, dag.SrlParts, dag.I32)

	set(Expand, dag.SignExtendInReg, dag.I1, dag.I8, dag.I16, dag.I32, dag.Other)
	set(Expand, dag.SDiv, dag.I32)
	set(Expand, dag.SRem, dag.I32)
	set(Expand, dag.UDiv, dag.I32)
	set(Expand, dag.URem, dag.I32)
	set(Expand, dag.BrJT, dag.Other)
	set(Expand, dag.BrCC, dag.I32)
	set(Expand, dag.SelectCC, dag.I32, dag.Other)
	set(Expand, dag.DynamicStackAlloc, dag.I32)
	set(Expand, dag.VAArg, dag.Other)
	set(Expand, dag.VACopy, dag.Other)
	set(Expand, dag.VAEnd, dag.Other)

	set(Promote, dag.Load, dag.I1)
	set(Promote, dag.SetCC, dag.I1)
	return m
}

// Action returns the legalization action for op producing vt. Pairs not in
// the table are legal.
func (l *Lowering) Action(op dag.Opcode, vt dag.ValueType) Action {
	if a, ok := l.actions[actionKey{op, vt}]; ok {
		return a
	}
	return Legal
}

// PromotedType returns the type a promoted (op, vt) pair is widened to.
func (l *Lowering) PromotedType(op dag.Opcode, vt dag.ValueType) dag.ValueType {
	if l.Action(op, vt) != Promote {
		return vt
	}
	if op == dag.SetCC {
		return booleanVT
	}
	return dag.I32
}
