package isel

import (
	"testing"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
)

func TestLowerOperationDispatch(t *testing.T) {
	tr := &recordingTracer{}
	l := newLowering(t, target.Static, WithTracer(tr))
	fn := NewFunc("f", false, false)
	d := fn.DAG

	add := d.NewNode(dag.Add, []dag.ValueType{dag.I32}, d.Constant(1, dag.I32), d.Constant(2, dag.I32))
	_, ok, err := l.LowerOperation(fn, add)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, tr.contains("add not custom lowered"))

	ok, err = l.Legalize(fn, add)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, d.Resolve(add.Value(0)), add.Value(0))
}

func TestSelectAndBranchStayAsIs(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("f", false, false)
	d := fn.DAG

	sel := d.NewNode(dag.Select, []dag.ValueType{dag.I32},
		d.Constant(1, dag.I32), d.Constant(2, dag.I32), d.Constant(3, dag.I32))
	assert.Equal(t, lowerOne(t, l, fn, sel), sel.Value(0))

	br := d.NewNode(dag.BrCond, []dag.ValueType{dag.Other}, d.Entry(), d.Constant(1, dag.I32))
	r, ok, err := l.LowerOperation(fn, br)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.SliceEqual(t, r.Values, []dag.Value{br.Value(0)})

	before := d.Len()
	ok, err = l.Legalize(fn, sel)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, d.Len(), before)
	assert.Equal(t, d.Resolve(sel.Value(0)), sel.Value(0))
}

func TestOperationActions(t *testing.T) {
	l := newLowering(t, target.Static)
	cases := []struct {
		op   dag.Opcode
		vt   dag.ValueType
		want Action
	}{
		{dag.GlobalAddress, dag.I32, Custom},
		{dag.JumpTable, dag.I32, Custom},
		{dag.ShlParts, dag.I32, Custom},
		{dag.VAStart, dag.Other, Custom},
		{dag.SDiv, dag.I32, Expand},
		{dag.URem, dag.I32, Expand},
		{dag.SignExtendInReg, dag.I8, Expand},
		{dag.BrJT, dag.Other, Expand},
		{dag.DynamicStackAlloc, dag.I32, Expand},
		{dag.VAArg, dag.Other, Expand},
		{dag.Load, dag.I1, Promote},
		{dag.SetCC, dag.I1, Promote},
		{dag.Add, dag.I32, Legal},
		{dag.SDivRem, dag.I32, Legal},
	}
	for _, c := range cases {
		assert.Equal(t, l.Action(c.op, c.vt), c.want, c.op.String()+"/"+c.vt.String())
	}
	assert.Equal(t, l.PromotedType(dag.SetCC, dag.I1), dag.I32)
	assert.Equal(t, l.PromotedType(dag.Add, dag.I8), dag.I8)
}

func TestDivRemCombine(t *testing.T) {
	for _, c := range []struct {
		op   dag.Opcode
		want dag.Opcode
	}{{dag.SDivRem, OpDivRem}, {dag.UDivRem, OpDivRemU}} {
		l := newLowering(t, target.Static)
		fn := NewFunc("f", false, false)
		d := fn.DAG
		a := d.CopyFromReg(d.Entry(), target.A0, dag.I32, dag.NoValue)
		b := d.CopyFromReg(d.Entry(), target.A1, dag.I32, dag.NoValue)
		dr := d.NewNode(c.op, []dag.ValueType{dag.I32, dag.I32}, a, b)

		_, ok, err := l.PerformDAGCombine(fn, dr, true)
		assert.NoError(t, err)
		assert.False(t, ok, "combines wait for legal operations")

		// only the remainder is used
		d.GetNode(dag.Add, dag.I32, dr.Value(1), d.Constant(1, dag.I32))
		r, ok, err := l.PerformDAGCombine(fn, dr, false)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, r.Values, 2)
		assert.False(t, r.Values[0].Valid())

		rem := d.NodeOf(r.Values[1])
		assert.Equal(t, rem.Op, dag.CopyFromReg)
		assert.Equal(t, d.NodeOf(rem.Operand(1)).Reg, target.HI)
		glued := d.NodeOf(rem.Glue)
		assert.Equal(t, glued.Op, c.want)
		assert.SliceEqual(t, glued.Operands, []dag.Value{a, b})
	}
}

func TestDivRemCombineBothResults(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("f", false, false)
	d := fn.DAG
	dr := d.NewNode(dag.SDivRem, []dag.ValueType{dag.I32, dag.I32}, d.Constant(7, dag.I32), d.Constant(2, dag.I32))
	d.GetNode(dag.Add, dag.I32, dr.Value(0), dr.Value(1))

	r, ok, err := l.PerformDAGCombine(fn, dr, false)
	assert.NoError(t, err)
	assert.True(t, ok)
	quot, rem := d.NodeOf(r.Values[0]), d.NodeOf(r.Values[1])
	assert.Equal(t, d.NodeOf(quot.Operand(1)).Reg, target.LO)
	assert.Equal(t, d.NodeOf(rem.Operand(1)).Reg, target.HI)
	assert.Equal(t, rem.Glue, quot.Value(2))
	assert.Equal(t, rem.Operand(0), quot.Value(1))

	other := d.NewNode(dag.Add, []dag.ValueType{dag.I32}, r.Values[0], r.Values[1])
	_, ok, err = l.PerformDAGCombine(fn, other, false)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVAStartStoresFirstVariadicSlot(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("printf", true, false)
	d := fn.DAG
	_, _, err := l.LowerFormalArguments(fn, d.Entry(), []callconv.Arg{{VT: dag.I32}})
	assert.NoError(t, err)

	ap := d.FrameIndex(fn.MF.CreateStackObject(4, 4), dag.I32)
	vs := d.NewNode(dag.VAStart, []dag.ValueType{dag.Other}, d.Entry(), ap, d.SrcValue("ap"))
	st := d.NodeOf(lowerOne(t, l, fn, vs))

	assert.Equal(t, st.Op, dag.Store)
	assert.Equal(t, st.Operand(2), ap)
	assert.Equal(t, d.NodeOf(st.Operand(1)).Index, fn.MF.VarArgsFrameIndex())
	assert.Equal(t, st.Mem.Source, "ap")
	assert.Equal(t, fn.MF.ObjectOffset(fn.MF.VarArgsFrameIndex()), 4)

	plain := NewFunc("plain", false, false)
	vs = plain.DAG.NewNode(dag.VAStart, []dag.ValueType{dag.Other}, plain.DAG.Entry(), plain.DAG.FrameIndex(0, dag.I32))
	_, _, err = l.LowerOperation(plain, vs)
	assert.Invariant(t, err, cerrors.CodeUnexpectedNode)
}

func TestLoweringIsSharedAcrossFunctions(t *testing.T) {
	l := newLowering(t, target.PIC)
	done := make(chan error, 8)
	for i := 0; i < cap(done); i++ {
		go func() {
			fn := NewFunc("worker", false, false)
			d := fn.DAG
			res, err := l.LowerCall(fn, CallInfo{Chain: d.Entry(), Callee: d.ExternalSymbol("g", dag.I32), Args: i32Out(d, 1, 2, 3)})
			if err == nil {
				err = VerifyCallSequences(d, res.Chain)
			}
			done <- err
		}()
	}
	for i := 0; i < cap(done); i++ {
		assert.NoError(t, <-done)
	}
	assert.Equal(t, l.Subtarget().Reloc, target.PIC)
}
