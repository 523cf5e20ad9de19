package isel

import (
	"github.com/samber/lo"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// OutArg is one outgoing argument or return value.
type OutArg struct {
	Value dag.Value
	Arg   callconv.Arg
}

// CallInfo describes a call site.
type CallInfo struct {
	Chain    dag.Value
	Callee   dag.Value
	Args     []OutArg
	Results  []dag.ValueType
	IsVarArg bool
	// IsTailCall is ignored: every call is lowered as a full call.
	IsTailCall bool
}

// CallResult is the lowered call.
type CallResult struct {
	Chain  dag.Value
	Values []dag.Value
	// Bytes is the size of the outgoing argument area, including the
	// register home slots, rounded to the stack alignment.
	Bytes int

	Start   dag.NodeID
	JmpLink dag.NodeID
	End     dag.NodeID
}

type regArg struct {
	reg target.Reg
	val dag.Value
}

// LowerCall emits the call sequence for ci:
//
//	memcpy(byval)... -> callseq_start -> stores/loads -> TokenFactor
//	  -> [CopyToReg $t9] -> CopyToReg args (glued) -> JmpLink
//	  -> callseq_end -> CopyFromReg results (glued)
//
// Outgoing arguments are addressed from the stack pointer at the call: the
// home slots of the argument registers come first, then the overflow area.
func (l *Lowering) LowerCall(fn *Func, ci CallInfo) (*CallResult, error) {
	d, mf, ptrVT := fn.DAG, fn.MF, l.ptrVT()
	if ci.IsTailCall {
		l.tracer.Debug("isel: tail call in %s lowered as a full call", mf.Name)
	}

	args := lo.Map(ci.Args, func(a OutArg, _ int) callconv.Arg { return a.Arg })
	ccState := callconv.NewState(l.abi)
	locs, err := ccState.AnalyzeCallOperands(l.argCC, args)
	if err != nil {
		return nil, err
	}
	for _, a := range locs {
		if a.ByVal && a.Size == 0 {
			return nil, cerrors.ZeroSizeByVal(a.ValNo)
		}
	}

	home := l.abi.HomeAreaSize()
	bytes := l.st.AlignStack(home + ccState.NextStackOffset())

	// The first PIC call gets the slot .cprestore saves $gp to.
	if l.st.IsPIC() && mf.GlobalBaseRegFixed() && mf.GPFI() == 0 {
		mf.SetGPFI(mf.CreateFixedObject(4, 0, true))
	}
	dynAllocFI := mf.DynAllocFI()
	if mf.NoteCallFrameSize(bytes) {
		if mf.NeedGPSaveRestore() {
			mf.SetObjectOffset(mf.GPFI(), bytes)
		}
		mf.SetObjectOffset(dynAllocFI, bytes)
	}

	firstFI, lastFI := -mf.NumFixedObjects()-1, 0

	// Block copies of byval aggregates happen before the call sequence opens.
	byValChain := ci.Chain
	for _, a := range locs {
		if !a.ByVal {
			continue
		}
		flags := ci.Args[a.ValNo].Arg.Flags
		inRegs := len(a.Regs) * 4
		remaining := flags.ByValSize - inRegs
		if remaining <= 0 {
			continue
		}
		lastFI = mf.CreateFixedObject(remaining, home+a.Offset, true)
		src := d.GetNode(dag.Add, ptrVT, ci.Args[a.ValNo].Value, d.Constant(int64(inRegs), dag.I32))
		byValChain = d.Memcpy(byValChain, d.FrameIndex(lastFI, ptrVT), src,
			d.Constant(int64(remaining), dag.I32), min(max(flags.ByValAlign, 1), 4))
	}

	chain := d.CallSeqStart(byValChain, int64(bytes))
	start := chain.Node

	var (
		regsToPass []regArg
		memOps     []dag.Value
	)
	for _, a := range locs {
		val := ci.Args[a.ValNo].Value

		if a.ByVal {
			for i, r := range a.Regs {
				ptr := d.GetNode(dag.Add, ptrVT, val, d.Constant(int64(i*4), dag.I32))
				word := d.Load(dag.I32, chain, ptr, dag.MemInfo{Size: 4})
				memOps = append(memOps, d.NodeOf(word).Value(1))
				regsToPass = append(regsToPass, regArg{r, word})
			}
			continue
		}

		val, err := l.promote(d, val, a)
		if err != nil {
			return nil, err
		}
		if a.IsReg {
			regsToPass = append(regsToPass, regArg{a.Reg, val})
			continue
		}

		lastFI = mf.CreateFixedObject(a.ValVT.Bytes(), home+a.Offset, true)
		memOps = append(memOps, d.Store(chain, val, d.FrameIndex(lastFI, ptrVT),
			dag.MemInfo{Size: a.LocVT.Bytes(), FixedStack: lastFI}))
	}

	if lastFI != 0 {
		mf.ExtendOutArgFIRange(firstFI, lastFI)
	}

	// Stores to distinct slots are independent.
	if len(memOps) > 0 {
		chain = d.TokenFactor(memOps...)
	}

	callee, direct, err := l.resolveCallee(fn, ci.Callee)
	if err != nil {
		return nil, err
	}

	glue := dag.NoValue
	if l.st.IsPIC() || !direct {
		chain = d.CopyToReg(chain, l.abi.CallTargetReg, callee, dag.NoValue)
		glue = d.NodeOf(chain).Value(1)
		callee = d.Register(l.abi.CallTargetReg, ptrVT)
	}
	for _, ra := range regsToPass {
		chain = d.CopyToReg(chain, ra.reg, ra.val, glue)
		glue = d.NodeOf(chain).Value(1)
	}

	ops := []dag.Value{chain, callee}
	for _, ra := range regsToPass {
		ops = append(ops, d.Register(ra.reg, d.VT(ra.val)))
	}
	ops = append(ops, d.RegisterMask(l.abi.CallPreserved))
	jl := d.NewGluedNode(OpJmpLink, []dag.ValueType{dag.Other, dag.Glue}, glue, ops...)

	chain = d.CallSeqEnd(jl.Value(0), int64(bytes), 0, jl.Value(1))
	end := chain.Node
	glue = d.NodeOf(chain).Value(1)

	l.tracer.Debug("isel: call in %s: %d args (%d in regs), %d bytes of outgoing area",
		mf.Name, len(ci.Args), len(regsToPass), bytes)

	chain, vals, err := l.lowerCallResult(fn, chain, glue, ci.Results)
	if err != nil {
		return nil, err
	}
	return &CallResult{Chain: chain, Values: vals, Bytes: bytes, Start: start, JmpLink: jl.ID, End: end}, nil
}

// resolveCallee turns a direct callee into its target symbol form. Under
// PIC the address is loaded from the GOT; internal functions load their
// page and add the low half. It reports whether the callee was direct.
func (l *Lowering) resolveCallee(fn *Func, callee dag.Value) (dag.Value, bool, error) {
	d, ptrVT := fn.DAG, l.ptrVT()
	n := d.NodeOf(callee)
	pic := l.st.IsPIC()

	var (
		sym     dag.Value
		symLo   dag.Value
		symFlag = target.FlagNone
	)
	if pic {
		symFlag = target.FlagGOTCall
	}

	switch n.Op {
	case dag.GlobalAddress, dag.TargetGlobalAddress:
		if pic && n.Global.HasInternalLinkage() {
			sym = d.TargetGlobalAddress(n.Global, ptrVT, 0, target.FlagGOT)
			symLo = d.TargetGlobalAddress(n.Global, ptrVT, 0, target.FlagAbsLo)
		} else {
			sym = d.TargetGlobalAddress(n.Global, ptrVT, 0, symFlag)
		}
	case dag.ExternalSymbol, dag.TargetExternalSymbol:
		sym = d.TargetExternalSymbol(n.Sym, ptrVT, symFlag)
	default:
		if d.VT(callee) != ptrVT {
			return dag.NoValue, false, cerrors.UnexpectedNode(d.OpName(n.Op), "call target")
		}
		return callee, false, nil
	}

	if !pic {
		return sym, true, nil
	}

	wrapper := d.GetNode(OpWrapper, ptrVT, l.globalReg(fn), sym)
	addr := d.Load(ptrVT, d.Entry(), wrapper, dag.MemInfo{GOT: true})
	if symLo.Valid() {
		addr = d.GetNode(dag.Add, ptrVT, addr, d.GetNode(OpLo, ptrVT, symLo))
	}
	return addr, true, nil
}

// lowerCallResult copies the call results out of their return registers.
func (l *Lowering) lowerCallResult(fn *Func, chain, glue dag.Value, results []dag.ValueType) (dag.Value, []dag.Value, error) {
	d := fn.DAG
	locs, err := callconv.NewState(l.abi).AnalyzeCallResult(l.retCC, results)
	if err != nil {
		return dag.NoValue, nil, err
	}
	vals := make([]dag.Value, 0, len(locs))
	for _, a := range locs {
		v := d.CopyFromReg(chain, a.Reg, a.ValVT, glue)
		n := d.NodeOf(v)
		chain, glue = n.Value(1), n.Value(2)
		vals = append(vals, v)
	}
	return chain, vals, nil
}

// promote widens v to the location type of a.
func (l *Lowering) promote(d *dag.DAG, v dag.Value, a callconv.Assignment) (dag.Value, error) {
	switch a.Info {
	case callconv.Full:
		return v, nil
	case callconv.SExt:
		return d.GetNode(dag.SignExtend, a.LocVT, v), nil
	case callconv.ZExt:
		return d.GetNode(dag.ZeroExtend, a.LocVT, v), nil
	case callconv.AExt:
		return d.GetNode(dag.AnyExtend, a.LocVT, v), nil
	}
	return dag.NoValue, cerrors.UnknownLocInfo(a.Info.String())
}
