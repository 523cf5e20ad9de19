package target

import (
	"golang.org/x/sys/cpu"
)

// RelocModel selects how symbolic addresses are materialized.
type RelocModel int

const (
	Static RelocModel = iota
	PIC
)

func (m RelocModel) String() string {
	if m == PIC {
		return "pic"
	}
	return "static"
}

// Endian is the byte order of the target.
type Endian int

const (
	Little Endian = iota
	Big
)

func (e Endian) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// HostEndian returns the byte order of the machine running the compiler.
func HostEndian() Endian {
	if cpu.IsBigEndian {
		return Big
	}
	return Little
}

// Arch is the Cpu0 architecture level.
type Arch int

const (
	Cpu032I Arch = iota
	Cpu032II
)

func (a Arch) String() string {
	if a == Cpu032I {
		return "cpu032I"
	}
	return "cpu032II"
}

// Subtarget is the immutable target description passed to every lowering call.
type Subtarget struct {
	Arch   Arch
	Endian Endian
	Reloc  RelocModel
	ABI    *ABI

	// StackAlignment is the ABI alignment of the stack pointer at calls.
	StackAlignment int
	PointerSize    int

	ObjFile ObjectFile
}

// NewSubtarget builds a subtarget with O32 defaults.
func NewSubtarget(arch Arch, endian Endian, reloc RelocModel) *Subtarget {
	return &Subtarget{
		Arch:           arch,
		Endian:         endian,
		Reloc:          reloc,
		ABI:            &O32,
		StackAlignment: 8,
		PointerSize:    4,
		ObjFile:        ObjectFile{UseSmallSection: true, SmallSectionThreshold: 8},
	}
}

func (s *Subtarget) IsPIC() bool    { return s.Reloc == PIC }
func (s *Subtarget) IsLittle() bool { return s.Endian == Little }

// HasCmp reports whether cmp instructions are available. Both levels have them.
func (s *Subtarget) HasCmp() bool { return s.Arch >= Cpu032I }

// HasSlt reports whether slt instructions are available (cpu032II only).
func (s *Subtarget) HasSlt() bool { return s.Arch >= Cpu032II }

// AlignStack rounds n up to the stack alignment.
func (s *Subtarget) AlignStack(n int) int {
	a := s.StackAlignment
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
