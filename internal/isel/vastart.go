package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// lowerVAStart stores the address of the first variadic argument slot into
// the va_list. Operands: chain, va_list pointer, source value.
func (l *Lowering) lowerVAStart(fn *Func, n *dag.Node) (Replacement, error) {
	d, mf := fn.DAG, fn.MF
	fi := mf.VarArgsFrameIndex()
	if fi == 0 {
		return Replacement{}, cerrors.UnexpectedNode(d.OpName(n.Op), "non-variadic function "+mf.Name)
	}

	mem := dag.MemInfo{Size: 4}
	if len(n.Operands) > 2 {
		if sv := d.NodeOf(n.Operand(2)); sv != nil && sv.Op == dag.SrcValue {
			mem.Source = sv.Sym
		}
	}
	st := d.Store(n.Operand(0), d.FrameIndex(fi, l.ptrVT()), n.Operand(1), mem)
	return Replacement{Values: []dag.Value{st}}, nil
}
