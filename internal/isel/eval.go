package isel

import (
	"fmt"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// Env is a small machine model used to evaluate lowered address and
// arithmetic subgraphs: symbol addresses, the GOT, registers and memory.
// Shift amounts use their low five bits, as the hardware does.
type Env struct {
	GP      uint32
	Symbols map[string]uint32
	// GOTSlots holds the $gp relative offset of each symbol's GOT entry.
	GOTSlots map[string]int32
	Regs     map[target.Reg]uint32
	Frame    map[int]uint32
	Memory   map[uint32]uint32
}

// NewEnv creates an environment with $gp at gp.
func NewEnv(gp uint32) *Env {
	return &Env{
		GP:       gp,
		Symbols:  make(map[string]uint32),
		GOTSlots: make(map[string]int32),
		Regs:     map[target.Reg]uint32{target.GP: gp},
		Frame:    make(map[int]uint32),
		Memory:   make(map[uint32]uint32),
	}
}

// Define places sym at addr and gives it a GOT entry at slot. Local GOT
// entries hold the 64K page of the symbol, global ones its full address.
func (e *Env) Define(sym string, addr uint32, slot int32, local bool) {
	e.Symbols[sym] = addr
	e.GOTSlots[sym] = slot
	entry := addr
	if local {
		hi, _ := target.SplitHiLo(addr)
		entry = uint32(hi) << 16
	}
	e.Memory[e.GP+uint32(slot)] = entry
}

func sext16(v uint32) uint32 { return uint32(int32(int16(uint16(v)))) }

// reloc computes the 16 bit relocation value of a target symbol operand.
func (e *Env) reloc(n *dag.Node) (uint32, error) {
	addr, ok := e.Symbols[n.Sym]
	if !ok {
		return 0, fmt.Errorf("eval: undefined symbol %s", n.Sym)
	}
	addr += uint32(n.Offset)
	switch n.Flags {
	case target.FlagNone:
		return addr, nil
	case target.FlagAbsHi:
		hi, _ := target.SplitHiLo(addr)
		return uint32(hi), nil
	case target.FlagAbsLo:
		_, lo := target.SplitHiLo(addr)
		return uint32(lo), nil
	case target.FlagGPRel:
		return (addr - e.GP) & 0xffff, nil
	}

	slot, ok := e.GOTSlots[n.Sym]
	if !ok {
		return 0, fmt.Errorf("eval: no GOT entry for %s", n.Sym)
	}
	switch n.Flags {
	case target.FlagGOT, target.FlagGOT16, target.FlagGOTCall:
		return uint32(slot) & 0xffff, nil
	case target.FlagGOTHi16:
		hi, _ := target.SplitHiLo(uint32(slot))
		return uint32(hi), nil
	case target.FlagGOTLo16:
		_, lo := target.SplitHiLo(uint32(slot))
		return uint32(lo), nil
	}
	return 0, fmt.Errorf("eval: relocation %s", n.Flags)
}

// Eval computes the 32 bit value of v.
func (e *Env) Eval(d *dag.DAG, v dag.Value) (uint32, error) {
	memo := make(map[dag.Value]uint32)
	return e.eval(d, v, memo)
}

func (e *Env) eval(d *dag.DAG, v dag.Value, memo map[dag.Value]uint32) (uint32, error) {
	v = d.Resolve(v)
	if x, ok := memo[v]; ok {
		return x, nil
	}
	n := d.NodeOf(v)
	if n == nil {
		return 0, fmt.Errorf("eval: invalid value %v", v)
	}

	ops := make([]uint32, 0, len(n.Operands))
	operands := func() error {
		for _, op := range n.Operands {
			if d.VT(d.Resolve(op)) == dag.Other {
				ops = append(ops, 0)
				continue
			}
			x, err := e.eval(d, op, memo)
			if err != nil {
				return err
			}
			ops = append(ops, x)
		}
		return nil
	}

	var r uint32
	switch n.Op {
	case dag.Constant, dag.TargetConstant:
		r = uint32(n.Imm)
	case dag.Register:
		r = e.Regs[n.Reg]
	case dag.CopyFromReg:
		r = e.Regs[d.NodeOf(n.Operand(1)).Reg]
	case dag.GlobalOffsetTable:
		r = e.GP
	case dag.FrameIndex:
		r = e.Frame[n.Index]
	case dag.TargetGlobalAddress, dag.TargetExternalSymbol, dag.TargetBlockAddress,
		dag.TargetJumpTable, dag.TargetConstantPool:
		x, err := e.reloc(n)
		if err != nil {
			return 0, err
		}
		r = x
	default:
		if err := operands(); err != nil {
			return 0, err
		}
		x, err := e.apply(d, n, v, ops)
		if err != nil {
			return 0, err
		}
		r = x
	}
	memo[v] = r
	return r, nil
}

func (e *Env) apply(d *dag.DAG, n *dag.Node, v dag.Value, ops []uint32) (uint32, error) {
	switch n.Op {
	case dag.Add:
		return ops[0] + ops[1], nil
	case dag.Sub:
		return ops[0] - ops[1], nil
	case dag.Mul:
		return ops[0] * ops[1], nil
	case dag.And:
		return ops[0] & ops[1], nil
	case dag.Or:
		return ops[0] | ops[1], nil
	case dag.Xor:
		return ops[0] ^ ops[1], nil
	case dag.Shl:
		return ops[0] << (ops[1] & 31), nil
	case dag.Srl:
		return ops[0] >> (ops[1] & 31), nil
	case dag.Sra:
		return uint32(int32(ops[0]) >> (ops[1] & 31)), nil
	case dag.Select:
		if ops[0] != 0 {
			return ops[1], nil
		}
		return ops[2], nil
	case dag.SignExtend:
		bits := d.VT(n.Operand(0)).Bits()
		return uint32(int32(ops[0]<<(32-bits)) >> (32 - bits)), nil
	case dag.ZeroExtend, dag.AnyExtend:
		bits := d.VT(n.Operand(0)).Bits()
		return ops[0] & (1<<bits - 1), nil
	case dag.MergeValues:
		return ops[v.ResNo], nil
	case dag.Load:
		return e.Memory[ops[1]], nil
	case OpHi:
		return ops[0] << 16, nil
	case OpLo, OpGPRel:
		return sext16(ops[0]), nil
	case OpWrapper:
		return ops[0] + sext16(ops[1]), nil
	}
	return 0, cerrors.UnexpectedNode(d.OpName(n.Op), "evaluator")
}
