package isel

import (
	"testing"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
)

func TestReturnCopiesAreGluedToRet(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("pair", false, false)
	d := fn.DAG

	outs := []OutArg{
		{Value: d.Constant(1, dag.I32), Arg: callconv.Arg{VT: dag.I32}},
		{Value: d.Constant(-2, dag.I16), Arg: callconv.Arg{VT: dag.I16, Flags: callconv.ArgFlags{SExt: true}}},
	}
	ret, err := l.LowerReturn(fn, d.Entry(), outs)
	assert.NoError(t, err)

	rn := d.NodeOf(ret)
	assert.Equal(t, rn.Op, OpRet)
	assert.Len(t, rn.Operands, 3)
	assert.Equal(t, d.NodeOf(rn.Operand(1)).Reg, target.V0)
	assert.Equal(t, d.NodeOf(rn.Operand(2)).Reg, target.V1)

	v1 := d.NodeOf(rn.Glue)
	assert.Equal(t, v1.Op, dag.CopyToReg)
	assert.Equal(t, d.NodeOf(v1.Operand(2)).Op, dag.SignExtend)
	v0 := d.NodeOf(v1.Glue)
	assert.Equal(t, d.NodeOf(v0.Operand(1)).Reg, target.V0)
	assert.False(t, v0.HasGlue())
	assert.Equal(t, v1.Operand(0), v0.Value(0))
	assert.Equal(t, rn.Operand(0), v1.Value(0))

	env := NewEnv(0)
	got, err := env.Eval(d, v1.Operand(2))
	assert.NoError(t, err)
	assert.Equal(t, got, uint32(0xfffffffe))
}

func TestVoidReturn(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("noop", false, false)
	ret, err := l.LowerReturn(fn, fn.DAG.Entry(), nil)
	assert.NoError(t, err)

	rn := fn.DAG.NodeOf(ret)
	assert.Len(t, rn.Operands, 1)
	assert.False(t, rn.HasGlue())
}

func TestStructReturnCopiesPointerOnce(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("make", false, true)
	d := fn.DAG

	args := []callconv.Arg{{VT: dag.I32, Flags: callconv.ArgFlags{SRet: true}}}
	chain, _, err := l.LowerFormalArguments(fn, d.Entry(), args)
	assert.NoError(t, err)
	reg := fn.MF.SRetReturnReg()

	ret, err := l.LowerReturn(fn, chain, nil)
	assert.NoError(t, err)
	d.SetRoot(ret)

	nodes := d.Topo(d.Root())
	var toV0, fromVreg, toVreg int
	for _, n := range nodes {
		switch n.Op {
		case dag.CopyToReg:
			switch d.NodeOf(n.Operand(1)).Reg {
			case target.V0:
				toV0++
				assert.Equal(t, d.NodeOf(n.Operand(2)).Op, dag.CopyFromReg)
			case reg:
				toVreg++
			}
		case dag.CopyFromReg:
			if d.NodeOf(n.Operand(1)).Reg == reg {
				fromVreg++
			}
		}
	}
	assert.Equal(t, toVreg, 1)
	assert.Equal(t, fromVreg, 1)
	assert.Equal(t, toV0, 1)

	rn := d.NodeOf(ret)
	assert.Equal(t, d.NodeOf(rn.Operand(len(rn.Operands)-1)).Reg, target.V0)
}

func TestStructReturnWithoutRegisterIsFatal(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("make", false, true)
	_, err := l.LowerReturn(fn, fn.DAG.Entry(), nil)
	assert.Invariant(t, err, cerrors.CodeMissingSRetReg)
}

func TestReturnMoreThanTwoWords(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("triple", false, false)
	d := fn.DAG
	outs := []OutArg{
		{Value: d.Constant(1, dag.I32), Arg: callconv.Arg{VT: dag.I32}},
		{Value: d.Constant(2, dag.I32), Arg: callconv.Arg{VT: dag.I32}},
		{Value: d.Constant(3, dag.I32), Arg: callconv.Arg{VT: dag.I32}},
	}
	_, err := l.LowerReturn(fn, d.Entry(), outs)
	assert.Invariant(t, err, cerrors.CodeReturnNotInReg)
}
