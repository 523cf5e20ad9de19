package dag

import (
	"github.com/orizon-lang/cpu0isel/internal/target"
)

// NodeID indexes a node in its DAG. Zero is never a valid node.
type NodeID int32

// Value names one result of a node.
type Value struct {
	Node  NodeID
	ResNo int
}

// NoValue is the absent value (no glue, no chain, unused result).
var NoValue = Value{}

// Valid reports whether v refers to a node.
func (v Value) Valid() bool { return v.Node != 0 }

// Linkage is the symbol binding of a global.
type Linkage int

const (
	ExternalLinkage Linkage = iota
	InternalLinkage
	PrivateLinkage
	WeakLinkage
)

func (l Linkage) String() string {
	switch l {
	case InternalLinkage:
		return "internal"
	case PrivateLinkage:
		return "private"
	case WeakLinkage:
		return "weak"
	}
	return "external"
}

// Global is an IR-level global value referenced by address nodes.
type Global struct {
	Name     string
	Size     int
	Linkage  Linkage
	Section  string
	Function bool
	// Declaration is set when the global is defined in another unit.
	Declaration bool
}

func (g *Global) SizeInBytes() int         { return g.Size }
func (g *Global) SectionName() string      { return g.Section }
func (g *Global) IsFunction() bool         { return g.Function }
func (g *Global) IsDeclaration() bool      { return g.Declaration }
func (g *Global) HasInternalLinkage() bool { return g.Linkage == InternalLinkage }

// HasLocalLinkage reports linkages that are not visible outside the unit.
func (g *Global) HasLocalLinkage() bool {
	return g.Linkage == InternalLinkage || g.Linkage == PrivateLinkage
}

var _ target.GlobalObject = (*Global)(nil)

// MemInfo describes the memory touched by a load, store or memcpy.
type MemInfo struct {
	Size  int
	Align int
	// FixedStack is the frame index of a fixed stack object, when the
	// access targets one.
	FixedStack int
	GOT        bool
	// Source names the IR value the access came from, if any.
	Source string
}

// Node is one operation of the graph. Nodes are immutable once created.
type Node struct {
	ID       NodeID
	Op       Opcode
	VTs      []ValueType
	Operands []Value
	// Glue is the optional auxiliary input that keeps this node adjacent to
	// its producer. It is not a data operand.
	Glue Value

	Imm    int64
	Reg    target.Reg
	Mask   target.RegMask
	Sym    string
	Global *Global
	Index  int
	Offset int64
	Align  int
	Flags  target.OperandFlag
	Mem    *MemInfo
}

// NumValues returns the number of results.
func (n *Node) NumValues() int { return len(n.VTs) }

// Value returns result i of n.
func (n *Node) Value(i int) Value { return Value{Node: n.ID, ResNo: i} }

// Operand returns operand i.
func (n *Node) Operand(i int) Value { return n.Operands[i] }

// HasGlue reports whether n has a glue input.
func (n *Node) HasGlue() bool { return n.Glue.Valid() }
