package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// symbol is the address operand being lowered, abstracted over the symbol
// node kinds so that every kind shares the same address forms.
type symbol struct {
	n *dag.Node
}

// target returns the relocatable form of the symbol with the given flags.
func (s symbol) target(d *dag.DAG, vt dag.ValueType, flags target.OperandFlag) dag.Value {
	n := s.n
	switch n.Op {
	case dag.GlobalAddress, dag.TargetGlobalAddress:
		return d.TargetGlobalAddress(n.Global, vt, n.Offset, flags)
	case dag.ExternalSymbol, dag.TargetExternalSymbol:
		return d.TargetExternalSymbol(n.Sym, vt, flags)
	case dag.BlockAddress, dag.TargetBlockAddress:
		return d.TargetBlockAddress(n.Sym, vt, n.Offset, flags)
	case dag.JumpTable, dag.TargetJumpTable:
		return d.TargetJumpTable(n.Index, vt, flags)
	case dag.ConstantPool, dag.TargetConstantPool:
		return d.TargetConstantPool(n.Index, vt, n.Align, n.Offset, flags)
	}
	panic("isel: not a symbol node: " + n.Op.String())
}

func (l *Lowering) globalReg(fn *Func) dag.Value {
	return fn.DAG.Register(fn.MF.GlobalBaseReg(), l.ptrVT())
}

// addrNonPIC is add(Hi(sym@abs_hi), Lo(sym@abs_lo)).
func (l *Lowering) addrNonPIC(fn *Func, s symbol) dag.Value {
	d, vt := fn.DAG, l.ptrVT()
	hi := d.GetNode(OpHi, vt, s.target(d, vt, target.FlagAbsHi))
	lo := d.GetNode(OpLo, vt, s.target(d, vt, target.FlagAbsLo))
	return d.GetNode(dag.Add, vt, hi, lo)
}

// addrGPRel is add(GLOBAL_OFFSET_TABLE, GPRel(sym@gp_rel)).
func (l *Lowering) addrGPRel(fn *Func, s symbol) dag.Value {
	d, vt := fn.DAG, l.ptrVT()
	rel := d.GetNode(OpGPRel, vt, s.target(d, vt, target.FlagGPRel))
	return d.GetNode(dag.Add, vt, d.GlobalOffsetTable(vt), rel)
}

// addrLocal loads the page of a local symbol from the GOT and adds the low
// half: add(load(Wrapper(gp, sym@got)), Lo(sym@abs_lo)).
func (l *Lowering) addrLocal(fn *Func, s symbol) dag.Value {
	d, vt := fn.DAG, l.ptrVT()
	wrapper := d.GetNode(OpWrapper, vt, l.globalReg(fn), s.target(d, vt, target.FlagGOT))
	got := d.Load(vt, d.Entry(), wrapper, dag.MemInfo{GOT: true})
	lo := d.GetNode(OpLo, vt, s.target(d, vt, target.FlagAbsLo))
	return d.GetNode(dag.Add, vt, got, lo)
}

// addrGlobal loads a symbol address from a GOT entry within 16 bits of $gp:
// load(Wrapper(gp, sym@flag)).
func (l *Lowering) addrGlobal(fn *Func, s symbol, flag target.OperandFlag) dag.Value {
	d, vt := fn.DAG, l.ptrVT()
	wrapper := d.GetNode(OpWrapper, vt, l.globalReg(fn), s.target(d, vt, flag))
	return d.Load(vt, d.Entry(), wrapper, dag.MemInfo{GOT: true})
}

// addrGlobalLargeGOT reaches a GOT entry anywhere in the table:
// load(Wrapper(add(Hi(sym@got_hi16), gp), sym@got_lo16)).
func (l *Lowering) addrGlobalLargeGOT(fn *Func, s symbol) dag.Value {
	d, vt := fn.DAG, l.ptrVT()
	hi := d.GetNode(OpHi, vt, s.target(d, vt, target.FlagGOTHi16))
	base := d.GetNode(dag.Add, vt, hi, l.globalReg(fn))
	wrapper := d.GetNode(OpWrapper, vt, base, s.target(d, vt, target.FlagGOTLo16))
	return d.Load(vt, d.Entry(), wrapper, dag.MemInfo{GOT: true})
}

func (l *Lowering) lowerGlobalAddress(fn *Func, n *dag.Node) (Replacement, error) {
	g := n.Global
	if g == nil {
		return Replacement{}, cerrors.UnexpectedNode("GlobalAddress without a global", fn.MF.Name)
	}
	s := symbol{n}
	small := l.st.ObjFile.IsGlobalInSmallSection(g)

	var v dag.Value
	switch {
	case !l.st.IsPIC() && small:
		v = l.addrGPRel(fn, s)
	case !l.st.IsPIC():
		v = l.addrNonPIC(fn, s)
	case g.HasInternalLinkage() || (g.HasLocalLinkage() && !g.IsFunction()):
		v = l.addrLocal(fn, s)
	case small:
		v = l.addrGlobal(fn, s, target.FlagGOT16)
	default:
		v = l.addrGlobalLargeGOT(fn, s)
	}
	l.tracer.Debug("isel: global %s (%s, pic=%t, small=%t)", g.Name, g.Linkage, l.st.IsPIC(), small)
	return Replacement{Values: []dag.Value{v}}, nil
}

// External symbols are never local; under PIC they are reached through the GOT.
func (l *Lowering) lowerExternalSymbol(fn *Func, n *dag.Node) (Replacement, error) {
	if l.st.IsPIC() {
		return Replacement{Values: []dag.Value{l.addrGlobal(fn, symbol{n}, target.FlagGOT16)}}, nil
	}
	return Replacement{Values: []dag.Value{l.addrNonPIC(fn, symbol{n})}}, nil
}

// lowerLocalSymbol handles symbols private to the unit: block addresses,
// jump tables and constant pool entries.
func (l *Lowering) lowerLocalSymbol(fn *Func, n *dag.Node) (Replacement, error) {
	if l.st.IsPIC() {
		return Replacement{Values: []dag.Value{l.addrLocal(fn, symbol{n})}}, nil
	}
	return Replacement{Values: []dag.Value{l.addrNonPIC(fn, symbol{n})}}, nil
}

func (l *Lowering) lowerBlockAddress(fn *Func, n *dag.Node) (Replacement, error) {
	return l.lowerLocalSymbol(fn, n)
}

func (l *Lowering) lowerJumpTable(fn *Func, n *dag.Node) (Replacement, error) {
	return l.lowerLocalSymbol(fn, n)
}

func (l *Lowering) lowerConstantPool(fn *Func, n *dag.Node) (Replacement, error) {
	return l.lowerLocalSymbol(fn, n)
}
