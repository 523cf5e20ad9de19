// Package driver runs the Cpu0 lowering pass over JSON lowering requests:
// it builds each function's graph, lowers the formal arguments, calls and
// returns, legalizes every operation and reports the resulting graph
// together with the function's lowering state.
package driver

import (
	"context"
	"fmt"
	"runtime"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/isel"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// Driver lowers requests for one subtarget. It is safe for concurrent use.
type Driver struct {
	st       *target.Subtarget
	lowering *isel.Lowering
	tracer   isel.Tracer
}

// New creates a driver. tracer may be nil.
func New(st *target.Subtarget, tracer isel.Tracer, opts ...isel.Option) *Driver {
	if tracer != nil {
		opts = append([]isel.Option{isel.WithTracer(tracer)}, opts...)
	}
	return &Driver{st: st, lowering: isel.New(st, opts...), tracer: tracer}
}

// Subtarget returns the subtarget requests are lowered for.
func (dr *Driver) Subtarget() *target.Subtarget { return dr.st }

// Lower lowers one request.
func (dr *Driver) Lower(req *Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fs := req.Function
	fn := isel.NewFunc(fs.Name, fs.VarArgs, fs.SRet)
	b := &builder{
		l:       dr.lowering,
		req:     req,
		fn:      fn,
		d:       fn.DAG,
		globals: make(map[string]*dag.Global, len(req.Globals)),
		report:  &Report{Function: fs.Name, Target: targetName(dr.st)},
	}
	for _, g := range req.Globals {
		linkage, _ := parseLinkage(g.Linkage)
		b.globals[g.Name] = &dag.Global{
			Name: g.Name, Size: g.Size, Linkage: linkage, Section: g.Section,
			Function: g.Function, Declaration: g.Declaration,
		}
	}

	if err := b.run(); err != nil {
		return nil, fmt.Errorf("%s: %w", fs.Name, err)
	}
	if dr.tracer != nil {
		dr.tracer.Debug("driver: lowered %s: %d nodes, %d calls", fs.Name, b.d.Len(), len(b.report.Calls))
	}
	return b.report, nil
}

// LowerAll lowers reqs on up to limit goroutines (GOMAXPROCS when limit is
// not positive). Reports are returned in request order; the first error
// cancels the remaining work.
func (dr *Driver) LowerAll(ctx context.Context, reqs []*Request, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	reports := make([]*Report, len(reqs))
	sem := make(chan struct{}, limit)

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			r, err := dr.Lower(req)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func targetName(st *target.Subtarget) string {
	return fmt.Sprintf("%s-%s-%s", st.Arch, st.Endian, st.Reloc)
}

// builder holds the graph construction state of one request.
type builder struct {
	l       *isel.Lowering
	req     *Request
	fn      *isel.Func
	d       *dag.DAG
	globals map[string]*dag.Global

	chain   dag.Value
	formals []dag.Value
	results [][]dag.Value
	divrems []divrem
	report  *Report
}

// divrem is a two result division waiting for its combine.
type divrem struct {
	n  *dag.Node
	op int
}

func (b *builder) run() error {
	args := lo.Map(b.req.Function.Args, func(a ArgSpec, _ int) callconv.Arg { return a.arg() })
	chain, formals, err := b.l.LowerFormalArguments(b.fn, b.d.Entry(), args)
	if err != nil {
		return fmt.Errorf("formal arguments: %w", err)
	}
	b.chain, b.formals = chain, formals

	for i, op := range b.req.Ops {
		vals, err := b.lowerOp(i, op)
		if err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
		b.results = append(b.results, vals)
	}

	// divrem combines look at the uses of each result, so they run once
	// the whole body exists.
	for _, dr := range b.divrems {
		r, ok, err := b.l.PerformDAGCombine(b.fn, dr.n, false)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		b.d.Replace(dr.n.ID, r.Values)
		for i, v := range r.Values {
			if !v.Valid() {
				b.results[dr.op][i] = dag.NoValue
			}
		}
	}

	b.d.SetRoot(b.chain)
	if err := isel.VerifyCallSequences(b.d, b.d.Root()); err != nil {
		return err
	}

	roots := []dag.Value{b.d.Root()}
	for _, vals := range b.results {
		roots = append(roots, lo.Filter(vals, func(v dag.Value, _ int) bool {
			return v.Valid() && b.d.VT(v) != dag.Other
		})...)
	}
	b.report.Graph = b.d.Dump(roots...)
	b.report.State = stateOf(b.fn)
	return nil
}

func (b *builder) lowerOp(idx int, op OpSpec) ([]dag.Value, error) {
	d, ptrVT := b.d, dag.I32

	switch op.Kind {
	case "call":
		return b.lowerCall(op)
	case "return":
		return nil, b.lowerReturn(op)
	case "global":
		g, ok := b.globals[op.Symbol]
		if !ok {
			return nil, cerrors.InvalidRequest("undeclared global " + op.Symbol)
		}
		return b.legalize(d.NodeOf(d.GlobalAddress(g, ptrVT)))
	case "external":
		return b.legalize(d.NodeOf(d.ExternalSymbol(op.Symbol, ptrVT)))
	case "block_address":
		return b.legalize(d.NodeOf(d.BlockAddress(op.Label, ptrVT)))
	case "jump_table":
		return b.legalize(d.NodeOf(d.JumpTable(op.Index, ptrVT)))
	case "constant_pool":
		return b.legalize(d.NodeOf(d.ConstantPool(op.Index, ptrVT, 4, 0)))
	case "vastart":
		return nil, b.lowerVAStart(op)
	}
	return b.lowerGeneric(idx, op)
}

func (b *builder) lowerCall(op OpSpec) ([]dag.Value, error) {
	d := b.d

	var callee dag.Value
	switch g, ok := b.globals[op.Callee]; {
	case op.Target != nil:
		v, err := b.operand(*op.Target)
		if err != nil {
			return nil, err
		}
		callee = v
	case ok:
		callee = d.GlobalAddress(g, dag.I32)
	case op.Callee != "":
		callee = d.ExternalSymbol(op.Callee, dag.I32)
	default:
		return nil, cerrors.InvalidRequest("call without callee")
	}

	outs, err := b.outArgs(op.Args)
	if err != nil {
		return nil, err
	}
	results := make([]dag.ValueType, len(op.Returns))
	for i, s := range op.Returns {
		vt, err := parseType(s)
		if err != nil {
			return nil, cerrors.InvalidRequest(err.Error())
		}
		results[i] = vt
	}

	res, err := b.l.LowerCall(b.fn, isel.CallInfo{Chain: b.chain, Callee: callee, Args: outs, Results: results})
	if err != nil {
		return nil, err
	}
	b.chain = res.Chain

	jl := d.Node(res.JmpLink)
	var regs []string
	for _, v := range jl.Operands[2:] {
		if n := d.NodeOf(v); n.Op == dag.Register {
			regs = append(regs, n.Reg.String())
		}
	}
	name := op.Callee
	if op.Target != nil {
		name = "<indirect>"
	}
	b.report.Calls = append(b.report.Calls, Call{Callee: name, Bytes: res.Bytes, ArgRegs: regs})
	return res.Values, nil
}

func (b *builder) lowerReturn(op OpSpec) error {
	want := b.req.Function.Returns
	if len(op.Args) != len(want) {
		return cerrors.InvalidRequest(fmt.Sprintf("return of %d values from a function returning %d", len(op.Args), len(want)))
	}
	outs, err := b.outArgs(op.Args)
	if err != nil {
		return err
	}
	for i := range outs {
		vt, _ := parseType(want[i])
		outs[i].Arg.VT = vt
	}
	ret, err := b.l.LowerReturn(b.fn, b.chain, outs)
	if err != nil {
		return err
	}
	b.chain = ret
	return nil
}

func (b *builder) lowerVAStart(op OpSpec) error {
	d := b.d
	var list dag.Value
	if len(op.Args) > 0 {
		v, err := b.operand(op.Args[0])
		if err != nil {
			return err
		}
		list = v
	} else {
		list = d.FrameIndex(b.fn.MF.CreateStackObject(4, 4), dag.I32)
	}

	n := d.NewNode(dag.VAStart, []dag.ValueType{dag.Other}, b.chain, list, d.SrcValue("va_list"))
	if _, err := b.legalize(n); err != nil {
		return err
	}
	b.chain = d.Resolve(n.Value(0))
	return nil
}

// prebuiltKinds are opcodes whose nodes carry a payload (symbol, register,
// frame slot, memory info) or belong to a sequence the driver builds itself.
var prebuiltKinds = map[dag.Opcode]string{
	dag.EntryToken:           "the entry chain is implicit",
	dag.TokenFactor:          "chains are merged by the driver",
	dag.Constant:             `use a {"const": n} operand`,
	dag.TargetConstant:       `use a {"const": n} operand`,
	dag.Register:             "registers are assigned by call, formal and return lowering",
	dag.RegisterMask:         "register masks are added by call lowering",
	dag.FrameIndex:           "frame slots are created by lowering",
	dag.SrcValue:             "source values are attached by vastart",
	dag.GlobalAddress:        `use kind "global"`,
	dag.ExternalSymbol:       `use kind "external"`,
	dag.BlockAddress:         `use kind "block_address"`,
	dag.JumpTable:            `use kind "jump_table"`,
	dag.ConstantPool:         `use kind "constant_pool"`,
	dag.TargetGlobalAddress:  `use kind "global"`,
	dag.TargetExternalSymbol: `use kind "external"`,
	dag.TargetBlockAddress:   `use kind "block_address"`,
	dag.TargetJumpTable:      `use kind "jump_table"`,
	dag.TargetConstantPool:   `use kind "constant_pool"`,
	dag.GlobalOffsetTable:    "the GOT base is added by address lowering",
	dag.CopyToReg:            "register copies are made by call, formal and return lowering",
	dag.CopyFromReg:          "register copies are made by call, formal and return lowering",
	dag.Load:                 "memory operations are made by lowering",
	dag.Store:                "memory operations are made by lowering",
	dag.Memcpy:               `use a "byval" call operand`,
	dag.CallSeqStart:         `use kind "call"`,
	dag.CallSeqEnd:           `use kind "call"`,
}

// lowerGeneric builds a node for a generic opcode and legalizes it.
func (b *builder) lowerGeneric(idx int, op OpSpec) ([]dag.Value, error) {
	d := b.d
	opc, ok := dag.LookupOpcode(op.Kind)
	if !ok {
		return nil, cerrors.InvalidRequest("unknown op kind " + op.Kind)
	}
	if hint, built := prebuiltKinds[opc]; built {
		return nil, cerrors.InvalidRequest(fmt.Sprintf("op kind %s cannot be built from operands; %s", op.Kind, hint))
	}

	ops := make([]dag.Value, 0, len(op.Args)+1)
	for _, o := range op.Args {
		v, err := b.operand(o)
		if err != nil {
			return nil, err
		}
		ops = append(ops, v)
	}

	var vts []dag.ValueType
	switch opc {
	case dag.ShlParts, dag.SraParts, dag.SrlParts:
		if len(ops) != 3 {
			return nil, cerrors.InvalidRequest(op.Kind + " takes lo, hi and a shift amount")
		}
		vts = []dag.ValueType{dag.I32, dag.I32}
	case dag.SDivRem, dag.UDivRem:
		if len(ops) != 2 {
			return nil, cerrors.InvalidRequest(op.Kind + " takes two operands")
		}
		n := d.NewNode(opc, []dag.ValueType{dag.I32, dag.I32}, ops...)
		b.divrems = append(b.divrems, divrem{n: n, op: idx})
		return []dag.Value{n.Value(0), n.Value(1)}, nil
	case dag.BrCond, dag.VAEnd:
		n := d.NewNode(opc, []dag.ValueType{dag.Other}, append([]dag.Value{b.chain}, ops...)...)
		if _, err := b.legalize(n); err != nil {
			return nil, err
		}
		b.chain = d.Resolve(n.Value(0))
		return nil, nil
	default:
		vt := dag.I32
		if op.Type != "" {
			t, err := parseType(op.Type)
			if err != nil {
				return nil, cerrors.InvalidRequest(err.Error())
			}
			vt = t
		} else if len(ops) > 0 {
			vt = d.VT(ops[0])
		}
		vts = []dag.ValueType{vt}
	}
	return b.legalize(d.NewNode(opc, vts, ops...))
}

// legalize runs the custom lowering of n, recording nodes the generic
// legalizer still has to expand or promote, and returns the values that now
// stand for n.
func (b *builder) legalize(n *dag.Node) ([]dag.Value, error) {
	ok, err := b.l.Legalize(b.fn, n)
	if err != nil {
		return nil, err
	}
	if a := b.l.Action(n.Op, n.VTs[0]); !ok && a != isel.Legal {
		b.report.Expanded = append(b.report.Expanded, fmt.Sprintf("t%d %s: %s", n.ID, b.d.OpName(n.Op), a))
	}
	vals := make([]dag.Value, n.NumValues())
	for i := range vals {
		vals[i] = b.d.Resolve(n.Value(i))
	}
	return vals, nil
}

func (b *builder) outArgs(args []Operand) ([]isel.OutArg, error) {
	outs := make([]isel.OutArg, len(args))
	for i, o := range args {
		v, err := b.operand(o)
		if err != nil {
			return nil, err
		}
		flags := o.flags()
		outs[i] = isel.OutArg{Value: v, Arg: callconv.Arg{VT: b.d.VT(v), Flags: flags}}
	}
	return outs, nil
}

func (b *builder) operand(o Operand) (dag.Value, error) {
	switch {
	case o.Const != nil:
		vt, err := parseType(o.Type)
		if err != nil {
			return dag.NoValue, cerrors.InvalidRequest(err.Error())
		}
		return b.d.Constant(*o.Const, vt), nil
	case o.Arg != nil:
		i := *o.Arg
		if i < 0 || i >= len(b.formals) {
			return dag.NoValue, cerrors.InvalidRequest(fmt.Sprintf("argument %d out of range", i))
		}
		return b.formals[i], nil
	case o.Op != nil:
		k := *o.Op
		if k < 0 || k >= len(b.results) || o.Result < 0 || o.Result >= len(b.results[k]) {
			return dag.NoValue, cerrors.InvalidRequest(fmt.Sprintf("result %d of op %d is not available", o.Result, k))
		}
		v := b.results[k][o.Result]
		if !v.Valid() {
			return dag.NoValue, cerrors.InvalidRequest(fmt.Sprintf("op %d produced no value %d", k, o.Result))
		}
		return b.d.Resolve(v), nil
	}
	return dag.NoValue, cerrors.InvalidRequest("operand names no value")
}
