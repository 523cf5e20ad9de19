// Package target describes the Cpu0 register file, ABI register roles and
// the subtarget configuration consumed by the lowering pass.
package target

import (
	"fmt"
	"strings"
)

// Reg is a physical or virtual register number. NoReg (0) means "none".
// Virtual registers have the top bit set.
type Reg uint32

// VirtualRegBase marks virtual register numbers.
const VirtualRegBase Reg = 1 << 31

// Cpu0 physical registers.
const (
	NoReg Reg = iota
	ZERO
	AT
	V0
	V1
	A0
	A1
	T9
	T0
	T1
	S0
	S1
	GP
	FP
	SP
	LR
	SW
	HI
	LO
	PC
	EPC
	NumPhysRegs
)

var regNames = [...]string{
	NoReg: "noreg",
	ZERO:  "$zero",
	AT:    "$at",
	V0:    "$v0",
	V1:    "$v1",
	A0:    "$a0",
	A1:    "$a1",
	T9:    "$t9",
	T0:    "$t0",
	T1:    "$t1",
	S0:    "$s0",
	S1:    "$s1",
	GP:    "$gp",
	FP:    "$fp",
	SP:    "$sp",
	LR:    "$lr",
	SW:    "$sw",
	HI:    "$hi",
	LO:    "$lo",
	PC:    "$pc",
	EPC:   "$epc",
}

// VirtReg returns the n-th virtual register.
func VirtReg(n uint32) Reg { return VirtualRegBase | Reg(n) }

// IsVirtual reports whether r names a virtual register.
func (r Reg) IsVirtual() bool { return r&VirtualRegBase != 0 }

// IsPhysical reports whether r names a physical register.
func (r Reg) IsPhysical() bool { return r != NoReg && r < NumPhysRegs }

// VirtIndex returns the index of a virtual register.
func (r Reg) VirtIndex() uint32 { return uint32(r &^ VirtualRegBase) }

func (r Reg) String() string {
	if r.IsVirtual() {
		return fmt.Sprintf("%%vreg%d", r.VirtIndex())
	}
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("$r%d", uint32(r))
}

// Encoding returns the hardware register number used by the instruction
// encoder. General purpose registers are numbered 0..15.
func (r Reg) Encoding() int {
	if r >= ZERO && r <= SW {
		return int(r - ZERO)
	}
	return -1
}

// RegClass is a set of registers that can hold values of one size.
type RegClass struct {
	Name string
	Size int
	Regs []Reg
}

// Contains reports whether r belongs to the class.
func (rc *RegClass) Contains(r Reg) bool {
	for _, x := range rc.Regs {
		if x == r {
			return true
		}
	}
	return false
}

var (
	// CPURegs holds the 16 general purpose registers.
	CPURegs = &RegClass{
		Name: "CPURegs",
		Size: 4,
		Regs: []Reg{ZERO, AT, V0, V1, A0, A1, T9, T0, T1, S0, S1, GP, FP, SP, LR, SW},
	}

	// HILORegs is the multiply/divide result pair.
	HILORegs = &RegClass{Name: "HILO", Size: 4, Regs: []Reg{HI, LO}}
)

// RegMask is a set of physical registers, one bit per register number.
type RegMask uint64

// MaskOf builds a RegMask from registers.
func MaskOf(regs ...Reg) RegMask {
	var m RegMask
	for _, r := range regs {
		m |= 1 << uint(r)
	}
	return m
}

// Has reports whether r is in the mask.
func (m RegMask) Has(r Reg) bool {
	return r.IsPhysical() && m&(1<<uint(r)) != 0
}

func (m RegMask) String() string {
	var names []string
	for r := ZERO; r < NumPhysRegs; r++ {
		if m.Has(r) {
			names = append(names, r.String())
		}
	}
	return "<" + strings.Join(names, ",") + ">"
}

// ABI groups the fixed register roles of the O32-style Cpu0 calling convention.
type ABI struct {
	ArgRegs       []Reg
	RetRegs       []Reg
	SRetReturnReg Reg
	CallTargetReg Reg
	LinkReg       Reg
	GlobalPtrReg  Reg
	StackPtrReg   Reg
	QuotientReg   Reg
	RemainderReg  Reg
	// CallPreserved is the set of registers a callee must preserve.
	CallPreserved RegMask
}

// O32 is the only ABI Cpu0 supports.
var O32 = ABI{
	ArgRegs:       []Reg{A0, A1},
	RetRegs:       []Reg{V0, V1},
	SRetReturnReg: V0,
	CallTargetReg: T9,
	LinkReg:       LR,
	GlobalPtrReg:  GP,
	StackPtrReg:   SP,
	QuotientReg:   LO,
	RemainderReg:  HI,
	CallPreserved: MaskOf(S0, S1, FP, LR),
}

// HomeAreaSize is the number of bytes reserved at the bottom of every
// outgoing argument area for the argument registers.
func (a *ABI) HomeAreaSize() int { return len(a.ArgRegs) * CPURegs.Size }
