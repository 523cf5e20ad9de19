package isel

import (
	"testing"
	"time"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/prop"
)

func TestGlobalAddressForms(t *testing.T) {
	cases := []struct {
		name   string
		reloc  target.RelocModel
		global dag.Global
		want   string
	}{
		{
			name:   "static large object",
			reloc:  target.Static,
			global: dag.Global{Name: "table", Size: 64},
			want:   "add(Hi(table@abs_hi),Lo(table@abs_lo))",
		},
		{
			name:   "static small object",
			reloc:  target.Static,
			global: dag.Global{Name: "counter", Size: 4},
			want:   "add(GLOBAL_OFFSET_TABLE,GPRel(counter@gp_rel))",
		},
		{
			name:   "static declaration",
			reloc:  target.Static,
			global: dag.Global{Name: "ext", Size: 4, Declaration: true},
			want:   "add(Hi(ext@abs_hi),Lo(ext@abs_lo))",
		},
		{
			name:   "pic internal",
			reloc:  target.PIC,
			global: dag.Global{Name: "local", Size: 64, Linkage: dag.InternalLinkage},
			want:   "add(load(Wrapper($gp,local@got)),Lo(local@abs_lo))",
		},
		{
			name:   "pic private data",
			reloc:  target.PIC,
			global: dag.Global{Name: "str", Size: 64, Linkage: dag.PrivateLinkage},
			want:   "add(load(Wrapper($gp,str@got)),Lo(str@abs_lo))",
		},
		{
			name:   "pic global small",
			reloc:  target.PIC,
			global: dag.Global{Name: "flag", Size: 4},
			want:   "load(Wrapper($gp,flag@got16))",
		},
		{
			name:   "pic global large",
			reloc:  target.PIC,
			global: dag.Global{Name: "buf", Size: 4096},
			want:   "load(Wrapper(add(Hi(buf@got_hi16),$gp),buf@got_lo16))",
		},
		{
			name:   "pic private function",
			reloc:  target.PIC,
			global: dag.Global{Name: "helper", Function: true, Linkage: dag.PrivateLinkage},
			want:   "load(Wrapper(add(Hi(helper@got_hi16),$gp),helper@got_lo16))",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l := newLowering(t, c.reloc)
			fn := NewFunc("f", false, false)
			g := c.global
			ga := fn.DAG.GlobalAddress(&g, dag.I32)

			v := lowerOne(t, l, fn, fn.DAG.NodeOf(ga))
			assert.Equal(t, shape(fn.DAG, v), c.want)
		})
	}
}

func TestLocalSymbolForms(t *testing.T) {
	for _, reloc := range []target.RelocModel{target.Static, target.PIC} {
		l := newLowering(t, reloc)
		fn := NewFunc("f", false, false)
		d := fn.DAG

		jt := lowerOne(t, l, fn, d.NodeOf(d.JumpTable(3, dag.I32)))
		ba := lowerOne(t, l, fn, d.NodeOf(d.BlockAddress("bb.2", dag.I32)))
		cp := lowerOne(t, l, fn, d.NodeOf(d.ConstantPool(1, dag.I32, 4, 0)))

		if reloc == target.Static {
			assert.Equal(t, shape(d, jt), "add(Hi($JTI3@abs_hi),Lo($JTI3@abs_lo))")
			assert.Equal(t, shape(d, ba), "add(Hi(bb.2@abs_hi),Lo(bb.2@abs_lo))")
			assert.Equal(t, shape(d, cp), "add(Hi($CPI1@abs_hi),Lo($CPI1@abs_lo))")
		} else {
			assert.Equal(t, shape(d, jt), "add(load(Wrapper($gp,$JTI3@got)),Lo($JTI3@abs_lo))")
			assert.Equal(t, shape(d, ba), "add(load(Wrapper($gp,bb.2@got)),Lo(bb.2@abs_lo))")
			assert.Equal(t, shape(d, cp), "add(load(Wrapper($gp,$CPI1@got)),Lo($CPI1@abs_lo))")
		}
	}
}

func TestExternalSymbolForms(t *testing.T) {
	l := newLowering(t, target.Static)
	fn := NewFunc("f", false, false)
	v := lowerOne(t, l, fn, fn.DAG.NodeOf(fn.DAG.ExternalSymbol("memcpy", dag.I32)))
	assert.Equal(t, shape(fn.DAG, v), "add(Hi(memcpy@abs_hi),Lo(memcpy@abs_lo))")

	l = newLowering(t, target.PIC)
	fn = NewFunc("f", false, false)
	v = lowerOne(t, l, fn, fn.DAG.NodeOf(fn.DAG.ExternalSymbol("memcpy", dag.I32)))
	assert.Equal(t, shape(fn.DAG, v), "load(Wrapper($gp,memcpy@got16))")
}

func TestHiLoOfBoundaryAddress(t *testing.T) {
	hi, lo := target.SplitHiLo(0x12348000)
	assert.Equal(t, hi, uint16(0x1235))
	assert.Equal(t, lo, uint16(0x8000))
	assert.Equal(t, target.JoinHiLo(hi, lo), uint32(0x12348000))

	l := newLowering(t, target.Static)
	fn := NewFunc("f", false, false)
	g := &dag.Global{Name: "g", Size: 256}
	v := lowerOne(t, l, fn, fn.DAG.NodeOf(fn.DAG.GlobalAddress(g, dag.I32)))

	env := NewEnv(0x10000000)
	env.Define("g", 0x12348000, 0, false)
	got, err := env.Eval(fn.DAG, v)
	assert.NoError(t, err)
	assert.Equal(t, got, uint32(0x12348000))
}

// Every address form evaluates back to the symbol's address.
func TestAddressFormsEvaluateToSymbolProperty(t *testing.T) {
	type input = prop.Pair[uint32, int]
	gen := prop.GenPair(prop.GenUint32(), prop.GenIntRange(0, 4))

	const gp = 0x10008000
	check := func(in input) bool {
		addr := in.A
		var (
			reloc target.RelocModel
			g     = &dag.Global{Name: "sym", Size: 128}
			slot  = int32(in.A%0x7ff0) &^ 3
			local bool
		)
		switch in.B {
		case 0:
			reloc = target.Static
		case 1:
			// small data must sit within 32K of $gp
			reloc, g.Size = target.Static, 4
			addr = gp + uint32(int32(int16(uint16(in.A))))
		case 2:
			reloc, g.Linkage, local = target.PIC, dag.InternalLinkage, true
		case 3:
			reloc, g.Size = target.PIC, 4
		case 4:
			reloc = target.PIC
			slot = int32(in.A>>8) & 0x3ffffc
		}

		l := New(target.NewSubtarget(target.Cpu032II, target.Little, reloc))
		fn := NewFunc("f", false, false)
		r, ok, err := l.LowerOperation(fn, fn.DAG.NodeOf(fn.DAG.GlobalAddress(g, dag.I32)))
		if err != nil || !ok {
			return false
		}
		env := NewEnv(gp)
		env.Define("sym", addr, slot, local)
		got, err := env.Eval(fn.DAG, r.Values[0])
		return err == nil && got == addr
	}

	res := prop.ForAll1(gen, nil, check, prop.Options{Trials: 2000, MaxShrinkTime: time.Second})
	if res.Failed {
		t.Fatalf("address form mismatch: seed=%d input=%+v", res.Seed, res.FailingInput)
	}
}

func TestHiLoRoundTripProperty(t *testing.T) {
	check := func(a uint32) bool {
		hi, lo := target.SplitHiLo(a)
		return target.JoinHiLo(hi, lo) == a
	}
	res := prop.ForAll1(prop.GenUint32(), prop.ShrinkUint32(), check, prop.Options{Trials: 5000})
	if res.Failed {
		t.Fatalf("hi/lo round trip failed: seed=%d input=%#x shrunk=%v", res.Seed, res.FailingInput, res.ShrunkInput)
	}
}

func TestOffsetFoldingNeverLegal(t *testing.T) {
	l := newLowering(t, target.Static)
	assert.False(t, l.IsOffsetFoldingLegal(&dag.Global{Name: "g"}))
}

func TestGlobalAddressWithoutGlobal(t *testing.T) {
	for _, reloc := range []target.RelocModel{target.Static, target.PIC} {
		l := newLowering(t, reloc)
		fn := NewFunc("f", false, false)
		n := fn.DAG.NewNode(dag.GlobalAddress, []dag.ValueType{dag.I32})
		_, _, err := l.LowerOperation(fn, n)
		assert.Invariant(t, err, cerrors.CodeUnexpectedNode, reloc)
	}
}

func TestTargetNodeName(t *testing.T) {
	names := map[dag.Opcode]string{
		OpJmpLink: "Cpu0ISD::JmpLink",
		OpHi:      "Cpu0ISD::Hi",
		OpLo:      "Cpu0ISD::Lo",
		OpGPRel:   "Cpu0ISD::GPRel",
		OpRet:     "Cpu0ISD::Ret",
		OpDivRem:  "Cpu0ISD::DivRem",
		OpDivRemU: "Cpu0ISD::DivRemU",
		OpWrapper: "Cpu0ISD::Wrapper",
	}
	for op, want := range names {
		got, err := TargetNodeName(op)
		assert.NoError(t, err)
		assert.Equal(t, got, want)
	}

	_, err := TargetNodeName(OpWrapper + 1)
	assert.Invariant(t, err, cerrors.CodeUnknownTargetNode)
}
