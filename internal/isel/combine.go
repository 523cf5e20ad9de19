package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/dag"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// PerformDAGCombine runs the Cpu0 specific combines on n. Combines only run
// once operations have been legalized.
func (l *Lowering) PerformDAGCombine(fn *Func, n *dag.Node, beforeLegalizeOps bool) (Replacement, bool, error) {
	if beforeLegalizeOps {
		return Replacement{}, false, nil
	}
	switch n.Op {
	case dag.SDivRem, dag.UDivRem:
		return l.performDivRemCombine(fn, n), true, nil
	}
	return Replacement{}, false, nil
}

// performDivRemCombine replaces a two result divrem with a glued DivRem that
// leaves the quotient in LO and the remainder in HI, followed by a copy out
// of each register whose result is used.
func (l *Lowering) performDivRemCombine(fn *Func, n *dag.Node) Replacement {
	d := fn.DAG
	op := OpDivRem
	if n.Op == dag.UDivRem {
		op = OpDivRemU
	}
	vt := n.VTs[0]

	dr := d.NewNode(op, []dag.ValueType{dag.Glue}, n.Operand(0), n.Operand(1))
	chain, glue := d.Entry(), dr.Value(0)

	vals := []dag.Value{dag.NoValue, dag.NoValue}
	for i, reg := range []target.Reg{l.abi.QuotientReg, l.abi.RemainderReg} {
		if !d.HasUse(n.Value(i)) {
			continue
		}
		v := d.CopyFromReg(chain, reg, vt, glue)
		cp := d.NodeOf(v)
		chain, glue = cp.Value(1), cp.Value(2)
		vals[i] = v
	}
	l.tracer.Debug("isel: %s combined into %s", d.OpName(n.Op), d.OpName(op))
	return Replacement{Values: vals}
}
