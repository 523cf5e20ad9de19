package isel

import (
	"github.com/samber/lo"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// LowerReturn copies the return values into $v0/$v1 and emits Ret. The
// copies are glued so that nothing is scheduled between them and the Ret.
// A struct-return function additionally hands its result pointer back in $v0.
func (l *Lowering) LowerReturn(fn *Func, chain dag.Value, outs []OutArg) (dag.Value, error) {
	d, mf := fn.DAG, fn.MF

	args := lo.Map(outs, func(o OutArg, _ int) callconv.Arg { return o.Arg })
	locs, err := callconv.NewState(l.abi).AnalyzeReturn(l.retCC, args)
	if err != nil {
		return dag.NoValue, err
	}

	glue := dag.NoValue
	var retOps []dag.Value
	for i, a := range locs {
		val, err := l.promote(d, outs[i].Value, a)
		if err != nil {
			return dag.NoValue, err
		}
		chain = d.CopyToReg(chain, a.Reg, val, glue)
		glue = d.NodeOf(chain).Value(1)
		retOps = append(retOps, d.Register(a.Reg, a.LocVT))
	}

	if mf.HasStructRet {
		reg := mf.SRetReturnReg()
		if reg == target.NoReg {
			return dag.NoValue, cerrors.MissingSRetRegister(mf.Name)
		}
		ptr := d.CopyFromReg(chain, reg, l.ptrVT(), dag.NoValue)
		chain = d.CopyToReg(chain, l.abi.SRetReturnReg, ptr, glue)
		glue = d.NodeOf(chain).Value(1)
		retOps = append(retOps, d.Register(l.abi.SRetReturnReg, l.ptrVT()))
	}

	ret := d.NewGluedNode(OpRet, []dag.ValueType{dag.Other}, glue, append([]dag.Value{chain}, retOps...)...)
	return ret.Value(0), nil
}
