// Package isel implements the Cpu0 call lowering and operand legalization
// pass. It rewrites target independent graph nodes into the forms the Cpu0
// instruction selector matches: Hi/Lo address pairs, GOT loads through a
// wrapper, branch free wide shifts, JmpLink call sequences and Ret.
//
// A Lowering is immutable once built and may be shared by goroutines that
// lower different functions. Each function's graph and state (a Func) must
// only be touched by one goroutine.
package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/callconv"
	"github.com/orizon-lang/cpu0isel/internal/dag"
	"github.com/orizon-lang/cpu0isel/internal/mfunc"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// Tracer receives debug output. *cli.Logger satisfies it.
type Tracer interface {
	Debug(format string, args ...interface{})
}

type nopTracer struct{}

func (nopTracer) Debug(string, ...interface{}) {}

// Func is one function being lowered: its graph and its lowering state.
type Func struct {
	DAG *dag.DAG
	MF  *mfunc.Function
}

// NewFunc creates an empty function whose graph dumps use Cpu0 opcode names.
func NewFunc(name string, isVarArg, hasStructRet bool) *Func {
	d := dag.New()
	d.SetNameFunc(TargetNodeName)
	return &Func{DAG: d, MF: mfunc.New(name, isVarArg, hasStructRet)}
}

// Replacement holds the values that supersede each result of a lowered node.
type Replacement struct {
	Values []dag.Value
}

type lowerFunc func(l *Lowering, fn *Func, n *dag.Node) (Replacement, error)

// Lowering is the Cpu0 target lowering for one subtarget.
type Lowering struct {
	st     *target.Subtarget
	abi    *target.ABI
	argCC  *callconv.Table
	retCC  *callconv.Table
	tracer Tracer

	actions map[actionKey]Action
	custom  map[dag.Opcode]lowerFunc
}

// Option configures a Lowering.
type Option func(*Lowering)

// WithTracer sends dispatch and call traces to t.
func WithTracer(t Tracer) Option {
	return func(l *Lowering) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithCallingConv replaces the argument and return tables.
func WithCallingConv(args, rets *callconv.Table) Option {
	return func(l *Lowering) {
		if args != nil {
			l.argCC = args
		}
		if rets != nil {
			l.retCC = rets
		}
	}
}

// New builds the lowering for st.
func New(st *target.Subtarget, opts ...Option) *Lowering {
	l := &Lowering{
		st:     st,
		abi:    st.ABI,
		argCC:  callconv.CCCpu0,
		retCC:  callconv.RetCCCpu0,
		tracer: nopTracer{},
	}
	for _, o := range opts {
		o(l)
	}
	l.actions = defaultActions()
	l.custom = map[dag.Opcode]lowerFunc{
		dag.GlobalAddress:  (*Lowering).lowerGlobalAddress,
		dag.ExternalSymbol: (*Lowering).lowerExternalSymbol,
		dag.BlockAddress:   (*Lowering).lowerBlockAddress,
		dag.JumpTable:      (*Lowering).lowerJumpTable,
		dag.ConstantPool:   (*Lowering).lowerConstantPool,
		dag.Select:         (*Lowering).lowerLegalAsIs,
		dag.BrCond:         (*Lowering).lowerLegalAsIs,
		dag.VAStart:        (*Lowering).lowerVAStart,
		dag.ShlParts:       (*Lowering).lowerShiftLeftParts,
		dag.SraParts:       func(l *Lowering, fn *Func, n *dag.Node) (Replacement, error) { return l.lowerShiftRightParts(fn, n, true) },
		dag.SrlParts:       func(l *Lowering, fn *Func, n *dag.Node) (Replacement, error) { return l.lowerShiftRightParts(fn, n, false) },
	}
	return l
}

// Subtarget returns the subtarget being lowered for.
func (l *Lowering) Subtarget() *target.Subtarget { return l.st }

// LowerOperation lowers a node the generic legalizer cannot handle. It
// returns false when the node has no custom lowering and generic expansion
// should be used instead.
func (l *Lowering) LowerOperation(fn *Func, n *dag.Node) (Replacement, bool, error) {
	lower, ok := l.custom[n.Op]
	if !ok {
		l.tracer.Debug("isel: %s not custom lowered, using generic expansion", fn.DAG.OpName(n.Op))
		return Replacement{}, false, nil
	}
	l.tracer.Debug("isel: lowering t%d %s", n.ID, fn.DAG.OpName(n.Op))
	r, err := lower(l, fn, n)
	if err != nil {
		return Replacement{}, false, err
	}
	return r, true, nil
}

// Legalize lowers n and records the replacement in the graph. It reports
// whether n was replaced.
func (l *Lowering) Legalize(fn *Func, n *dag.Node) (bool, error) {
	r, ok, err := l.LowerOperation(fn, n)
	if err != nil || !ok {
		return false, err
	}
	fn.DAG.Replace(n.ID, r.Values)
	return true, nil
}

// IsOffsetFoldingLegal reports whether a constant offset may be folded into
// a global address. Cpu0 relocations never carry one.
func (l *Lowering) IsOffsetFoldingLegal(*dag.Global) bool { return false }

// lowerLegalAsIs keeps the node: it is declared custom only so that the
// generic legalizer does not expand it.
func (l *Lowering) lowerLegalAsIs(_ *Func, n *dag.Node) (Replacement, error) {
	vals := make([]dag.Value, n.NumValues())
	for i := range vals {
		vals[i] = n.Value(i)
	}
	return Replacement{Values: vals}, nil
}

func (l *Lowering) ptrVT() dag.ValueType { return dag.I32 }
