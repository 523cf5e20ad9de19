package isel

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// recordingTracer collects debug lines.
type recordingTracer struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingTracer) Debug(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingTracer) contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func newLowering(t testing.TB, reloc target.RelocModel, opts ...Option) *Lowering {
	t.Helper()
	return New(target.NewSubtarget(target.Cpu032II, target.Little, reloc), opts...)
}

// lowerOne legalizes n and returns its single replacement value.
func lowerOne(t testing.TB, l *Lowering, fn *Func, n *dag.Node) dag.Value {
	t.Helper()
	r, ok, err := l.LowerOperation(fn, n)
	if err != nil {
		t.Fatalf("LowerOperation(%s): %v", n.Op, err)
	}
	if !ok {
		t.Fatalf("LowerOperation(%s): not lowered", n.Op)
	}
	if len(r.Values) != 1 {
		t.Fatalf("LowerOperation(%s): %d values", n.Op, len(r.Values))
	}
	return r.Values[0]
}

// shape renders the operation tree under v, leaves as their symbol and
// relocation, e.g. "add(Hi(g@abs_hi),Lo(g@abs_lo))".
func shape(d *dag.DAG, v dag.Value) string {
	n := d.NodeOf(d.Resolve(v))
	switch n.Op {
	case dag.TargetGlobalAddress, dag.TargetExternalSymbol, dag.TargetBlockAddress,
		dag.TargetJumpTable, dag.TargetConstantPool:
		if n.Flags == target.FlagNone {
			return n.Sym
		}
		return n.Sym + "@" + n.Flags.String()
	case dag.Register:
		return n.Reg.String()
	case dag.Constant, dag.TargetConstant:
		return fmt.Sprint(n.Imm)
	case dag.GlobalOffsetTable, dag.EntryToken:
		return d.OpName(n.Op)
	}

	name := d.OpName(n.Op)
	name = strings.TrimPrefix(name, "Cpu0ISD::")
	var args []string
	for _, op := range n.Operands {
		if d.VT(d.Resolve(op)) == dag.Other {
			continue
		}
		args = append(args, shape(d, op))
	}
	return name + "(" + strings.Join(args, ",") + ")"
}

func countOps(nodes []*dag.Node, op dag.Opcode) int {
	c := 0
	for _, n := range nodes {
		if n.Op == op {
			c++
		}
	}
	return c
}

func findOp(nodes []*dag.Node, op dag.Opcode) []*dag.Node {
	var out []*dag.Node
	for _, n := range nodes {
		if n.Op == op {
			out = append(out, n)
		}
	}
	return out
}
