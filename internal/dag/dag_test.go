package dag

import (
	"strings"
	"testing"

	"github.com/orizon-lang/cpu0isel/internal/target"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
)

func TestNewHasEntryRoot(t *testing.T) {
	d := New()
	assert.Equal(t, d.Len(), 1)
	assert.Equal(t, d.Root(), d.Entry())
	assert.Equal(t, d.NodeOf(d.Entry()).Op, EntryToken)
	assert.True(t, d.Node(0) == nil, "node 0 must be invalid")
}

func TestCopyToRegResults(t *testing.T) {
	d := New()
	v := d.Constant(7, I32)
	ch := d.CopyToReg(d.Entry(), target.A0, v, NoValue)
	n := d.NodeOf(ch)

	assert.Equal(t, n.Op, CopyToReg)
	assert.Equal(t, n.NumValues(), 2)
	assert.Equal(t, d.VT(ch), Other)
	assert.Equal(t, d.VT(n.Value(1)), Glue)
	assert.False(t, n.HasGlue())
	assert.Equal(t, d.NodeOf(n.Operand(1)).Reg, target.A0)

	ch2 := d.CopyToReg(ch, target.A1, v, n.Value(1))
	assert.True(t, d.NodeOf(ch2).HasGlue())
	assert.Equal(t, d.NodeOf(ch2).Glue, n.Value(1))
}

func TestTokenFactorSingleChain(t *testing.T) {
	d := New()
	assert.Equal(t, d.TokenFactor(d.Entry()), d.Entry())

	a := d.Store(d.Entry(), d.Constant(1, I32), d.FrameIndex(-1, I32), MemInfo{})
	b := d.Store(d.Entry(), d.Constant(2, I32), d.FrameIndex(-2, I32), MemInfo{})
	tf := d.TokenFactor(a, b)
	assert.Equal(t, d.NodeOf(tf).Op, TokenFactor)
	assert.Len(t, d.NodeOf(tf).Operands, 2)
	assert.Equal(t, d.NodeOf(a).Mem.Size, 4)
}

func TestReplaceAndResolve(t *testing.T) {
	d := New()
	x := d.Constant(1, I32)
	y := d.Constant(2, I32)
	sum := d.GetNode(Add, I32, x, y)
	d.SetRoot(sum)

	z := d.Constant(3, I32)
	d.Replace(sum.Node, []Value{z})
	assert.Equal(t, d.Resolve(sum), z)
	assert.Equal(t, d.Root(), z)

	w := d.Constant(4, I32)
	d.Replace(z.Node, []Value{w})
	assert.Equal(t, d.Resolve(sum), w, "replacements are followed transitively")

	// the original node is untouched
	assert.Equal(t, d.NodeOf(sum).Op, Add)
	assert.SliceEqual(t, d.NodeOf(sum).Operands, []Value{x, y})
}

func TestHasUse(t *testing.T) {
	d := New()
	a := d.Constant(10, I32)
	b := d.Constant(3, I32)
	dr := d.NewNode(SDivRem, []ValueType{I32, I32}, a, b)
	use := d.GetNode(Add, I32, dr.Value(0), a)
	d.SetRoot(use)

	assert.True(t, d.HasUse(dr.Value(0)))
	assert.False(t, d.HasUse(dr.Value(1)))

	// a use through a replaced value still counts
	alias := d.Constant(99, I32)
	d.Replace(alias.Node, []Value{dr.Value(1)})
	d.GetNode(Sub, I32, alias, a)
	assert.True(t, d.HasUse(dr.Value(1)))
}

func TestTopoOrdersOperandsAndGlue(t *testing.T) {
	d := New()
	c1 := d.CopyToReg(d.Entry(), target.A0, d.Constant(1, I32), NoValue)
	glue := d.NodeOf(c1).Value(1)
	c2 := d.CopyToReg(c1, target.A1, d.Constant(2, I32), glue)
	d.SetRoot(c2)

	order := d.Topo(d.Root())
	pos := make(map[NodeID]int, len(order))
	for i, n := range order {
		pos[n.ID] = i
	}
	for _, n := range order {
		for _, op := range n.Operands {
			assert.True(t, pos[op.Node] < pos[n.ID], "operand before user")
		}
		if n.HasGlue() {
			assert.True(t, pos[n.Glue.Node] < pos[n.ID], "glue producer before consumer")
		}
	}
	assert.Equal(t, order[len(order)-1].ID, c2.Node)
	assert.Equal(t, d.Count(CopyToReg, d.Root()), 2)
}

func TestDumpUsesNameFunc(t *testing.T) {
	d := New()
	g := &Global{Name: "counter", Size: 4}
	op := FirstTargetOpcode + 1
	hi := d.GetNode(op, I32, d.TargetGlobalAddress(g, I32, 0, target.FlagAbsHi))
	d.SetRoot(hi)

	out := d.String()
	assert.Contains(t, out, "target_op<1>")
	assert.Contains(t, out, "<counter@abs_hi>")

	d.SetNameFunc(func(o Opcode) (string, error) { return "Cpu0ISD::Hi", nil })
	out = d.String()
	assert.Contains(t, out, "Cpu0ISD::Hi")
	assert.False(t, strings.Contains(out, "target_op"))
}

func TestGlobalLinkage(t *testing.T) {
	cases := []struct {
		linkage  Linkage
		internal bool
		local    bool
	}{
		{ExternalLinkage, false, false},
		{InternalLinkage, true, true},
		{PrivateLinkage, false, true},
		{WeakLinkage, false, false},
	}
	for _, c := range cases {
		t.Run(c.linkage.String(), func(t *testing.T) {
			g := &Global{Name: "g", Linkage: c.linkage}
			assert.Equal(t, g.HasInternalLinkage(), c.internal)
			assert.Equal(t, g.HasLocalLinkage(), c.local)
		})
	}
}

func TestParseValueType(t *testing.T) {
	for _, vt := range []ValueType{I1, I8, I16, I32, I64} {
		got, ok := ParseValueType(vt.String())
		assert.True(t, ok)
		assert.Equal(t, got, vt)
	}
	_, ok := ParseValueType("f32")
	assert.False(t, ok)
	assert.Equal(t, I16.Bytes(), 2)
	assert.Equal(t, I1.Bytes(), 1)
	assert.False(t, Other.IsInteger())
}

func TestLookupOpcode(t *testing.T) {
	for _, op := range []Opcode{Add, SDivRem, ShlParts, BrCond, VAStart, Load} {
		got, ok := LookupOpcode(op.String())
		assert.True(t, ok, op.String())
		assert.Equal(t, got, op)
	}
	_, ok := LookupOpcode("Cpu0ISD::Hi")
	assert.False(t, ok)
}
