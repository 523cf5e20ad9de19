package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// LowerFormalArguments materializes the incoming arguments of fn after
// chain and returns the new chain and one value per argument.
//
// The prologue stores $a0/$a1 to their home slots, so scalars are loaded
// from fixed objects in the incoming argument area. Byval aggregates become
// a fixed object whose register resident words are stored into it here.
func (l *Lowering) LowerFormalArguments(fn *Func, chain dag.Value, args []callconv.Arg) (dag.Value, []dag.Value, error) {
	d, mf, ptrVT := fn.DAG, fn.MF, l.ptrVT()
	mf.SetVarArgsFrameIndex(0)

	ccState := callconv.NewState(l.abi)
	locs, err := ccState.AnalyzeFormalArguments(l.argCC, args)
	if err != nil {
		return dag.NoValue, nil, err
	}

	var (
		inVals    = make([]dag.Value, 0, len(locs))
		outChains []dag.Value
		lastFI    int
	)
	for i, a := range locs {
		flags := args[i].Flags

		if a.ByVal {
			if flags.ByValSize == 0 {
				return dag.NoValue, nil, cerrors.ZeroSizeByVal(i)
			}
			words := (flags.ByValSize + 3) / 4
			lastFI = mf.CreateFixedObject(words*4, a.Offset, true)
			fin := d.FrameIndex(lastFI, ptrVT)
			inVals = append(inVals, fin)

			for k, r := range a.Regs {
				vreg := mf.AddLiveIn(r, target.CPURegs)
				ptr := d.GetNode(dag.Add, ptrVT, fin, d.Constant(int64(k*4), dag.I32))
				outChains = append(outChains, d.Store(chain, d.Register(vreg, dag.I32), ptr,
					dag.MemInfo{Size: 4, FixedStack: lastFI}))
			}
			continue
		}

		if a.IsReg {
			return dag.NoValue, nil, cerrors.UnexpectedRegLoc(i, a.Reg.String())
		}

		size := a.ValVT.Bytes()
		offset := a.Offset
		if !l.st.IsLittle() && size < 4 {
			offset += 4 - size
		}
		lastFI = mf.CreateFixedObject(size, offset, true)
		inVals = append(inVals, d.Load(a.ValVT, chain, d.FrameIndex(lastFI, ptrVT),
			dag.MemInfo{Size: size, FixedStack: lastFI}))
	}
	mf.HomeArgRegs(ccState.HomedRegs()...)

	// The struct return pointer is kept in a virtual register so that every
	// return can copy it to $v0.
	if mf.HasStructRet {
		if len(inVals) == 0 {
			return dag.NoValue, nil, cerrors.InvalidRequest("struct-return function " + mf.Name + " has no result pointer argument")
		}
		reg := mf.SRetReturnReg()
		if reg == target.NoReg {
			reg = mf.CreateVirtualRegister(target.CPURegs)
			if err := mf.SetSRetReturnReg(reg); err != nil {
				return dag.NoValue, nil, err
			}
		}
		cp := d.CopyToReg(d.Entry(), reg, inVals[0], dag.NoValue)
		chain = d.TokenFactor(cp, chain)
	}

	if mf.IsVarArg {
		lastFI = mf.CreateFixedObject(4, ccState.IncomingAreaEnd(), true)
		mf.SetVarArgsFrameIndex(lastFI)
		mf.HomeArgRegs(ccState.UnallocatedArgRegs()...)
	}
	mf.SetLastInArgFI(lastFI)

	if len(outChains) > 0 {
		outChains = append(outChains, chain)
		chain = d.TokenFactor(outChains...)
	}

	l.tracer.Debug("isel: %s: %d formal args, homed %v", mf.Name, len(args), mf.HomedArgRegs())
	return chain, inVals, nil
}
