package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/dag"
)

// Double word shifts take (lo, hi, shamt) and produce (lo', hi'). Both
// regimes are computed and the result is picked by bit 5 of the shift
// amount, so the replacement has the same shape for every amount. The
// hardware uses only the low five bits of a shift amount.

// lowerShiftLeftParts:
//
//	if shamt & 32 == 0:
//	  lo' = lo << shamt
//	  hi' = (hi << shamt) | ((lo >> 1) >> ~shamt)
//	else:
//	  lo' = 0
//	  hi' = lo << shamt
func (l *Lowering) lowerShiftLeftParts(fn *Func, n *dag.Node) (Replacement, error) {
	d, vt := fn.DAG, dag.I32
	lo, hi, shamt := n.Operand(0), n.Operand(1), n.Operand(2)

	not := d.GetNode(dag.Xor, vt, shamt, d.Constant(-1, vt))
	srl1 := d.GetNode(dag.Srl, vt, lo, d.Constant(1, vt))
	carry := d.GetNode(dag.Srl, vt, srl1, not)
	shlHi := d.GetNode(dag.Shl, vt, hi, shamt)
	or := d.GetNode(dag.Or, vt, shlHi, carry)
	shlLo := d.GetNode(dag.Shl, vt, lo, shamt)
	cond := d.GetNode(dag.And, vt, shamt, d.Constant(0x20, vt))

	newLo := d.GetNode(dag.Select, vt, cond, d.Constant(0, vt), shlLo)
	newHi := d.GetNode(dag.Select, vt, cond, shlLo, or)

	m := d.MergeValues(newLo, newHi)
	return Replacement{Values: []dag.Value{m.Value(0), m.Value(1)}}, nil
}

// lowerShiftRightParts handles both the logical and the arithmetic form:
//
//	if shamt & 32 == 0:
//	  lo' = ((hi << 1) << ~shamt) | (lo >> shamt)
//	  hi' = hi >> shamt
//	else:
//	  lo' = hi >> shamt
//	  hi' = arith ? hi >> 31 : 0
func (l *Lowering) lowerShiftRightParts(fn *Func, n *dag.Node, arith bool) (Replacement, error) {
	d, vt := fn.DAG, dag.I32
	lo, hi, shamt := n.Operand(0), n.Operand(1), n.Operand(2)

	shr := dag.Srl
	if arith {
		shr = dag.Sra
	}

	not := d.GetNode(dag.Xor, vt, shamt, d.Constant(-1, vt))
	shl1 := d.GetNode(dag.Shl, vt, hi, d.Constant(1, vt))
	carry := d.GetNode(dag.Shl, vt, shl1, not)
	srlLo := d.GetNode(dag.Srl, vt, lo, shamt)
	or := d.GetNode(dag.Or, vt, carry, srlLo)
	shrHi := d.GetNode(shr, vt, hi, shamt)
	cond := d.GetNode(dag.And, vt, shamt, d.Constant(0x20, vt))

	fill := d.Constant(0, vt)
	if arith {
		fill = d.GetNode(dag.Sra, vt, hi, d.Constant(31, vt))
	}

	newLo := d.GetNode(dag.Select, vt, cond, shrHi, or)
	newHi := d.GetNode(dag.Select, vt, cond, fill, shrHi)

	m := d.MergeValues(newLo, newHi)
	return Replacement{Values: []dag.Value{m.Value(0), m.Value(1)}}, nil
}
