package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/cpu0isel/internal/target"
)

// DAG is the arena owning every node of one function. It is not safe for
// concurrent use; each function is lowered by exactly one goroutine.
type DAG struct {
	nodes    []*Node // nodes[0] is unused so that NodeID 0 is invalid
	entry    Value
	root     Value
	replaced map[Value]Value
	namer    NameFunc
}

// New creates an empty graph holding only the entry token.
func New() *DAG {
	d := &DAG{
		nodes:    []*Node{nil},
		replaced: make(map[Value]Value),
	}
	d.entry = d.add(&Node{Op: EntryToken, VTs: []ValueType{Other}}).Value(0)
	d.root = d.entry
	return d
}

// SetNameFunc installs the namer used for target opcodes in dumps.
func (d *DAG) SetNameFunc(f NameFunc) { d.namer = f }

// Entry returns the entry chain.
func (d *DAG) Entry() Value { return d.entry }

// Root returns the graph root (the final chain).
func (d *DAG) Root() Value { return d.root }

// SetRoot sets the graph root.
func (d *DAG) SetRoot(v Value) { d.root = v }

// Len returns the number of nodes in the arena.
func (d *DAG) Len() int { return len(d.nodes) - 1 }

// Node returns the node with the given id.
func (d *DAG) Node(id NodeID) *Node {
	if id <= 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

// NodeOf returns the node producing v.
func (d *DAG) NodeOf(v Value) *Node { return d.Node(v.Node) }

// Nodes returns all nodes in creation order.
func (d *DAG) Nodes() []*Node { return d.nodes[1:] }

// VT returns the type of value v.
func (d *DAG) VT(v Value) ValueType {
	n := d.NodeOf(v)
	if n == nil || v.ResNo >= len(n.VTs) {
		return Untyped
	}
	return n.VTs[v.ResNo]
}

func (d *DAG) add(n *Node) *Node {
	n.ID = NodeID(len(d.nodes))
	d.nodes = append(d.nodes, n)
	return n
}

// NewNode creates a node with the given result types and operands.
func (d *DAG) NewNode(op Opcode, vts []ValueType, ops ...Value) *Node {
	return d.add(&Node{Op: op, VTs: vts, Operands: ops})
}

// NewGluedNode creates a node whose glue input is glue (which may be NoValue).
func (d *DAG) NewGluedNode(op Opcode, vts []ValueType, glue Value, ops ...Value) *Node {
	return d.add(&Node{Op: op, VTs: vts, Operands: ops, Glue: glue})
}

// GetNode creates a single-result node and returns its value.
func (d *DAG) GetNode(op Opcode, vt ValueType, ops ...Value) Value {
	return d.NewNode(op, []ValueType{vt}, ops...).Value(0)
}

// Constant returns an integer constant of type vt.
func (d *DAG) Constant(v int64, vt ValueType) Value {
	return d.add(&Node{Op: Constant, VTs: []ValueType{vt}, Imm: v}).Value(0)
}

// TargetConstant returns a constant that instruction selection must not
// legalize (byte counts, immediates).
func (d *DAG) TargetConstant(v int64, vt ValueType) Value {
	return d.add(&Node{Op: TargetConstant, VTs: []ValueType{vt}, Imm: v}).Value(0)
}

// Register returns a register operand.
func (d *DAG) Register(r target.Reg, vt ValueType) Value {
	return d.add(&Node{Op: Register, VTs: []ValueType{vt}, Reg: r}).Value(0)
}

// RegisterMask returns the call-preserved register mask operand.
func (d *DAG) RegisterMask(m target.RegMask) Value {
	return d.add(&Node{Op: RegisterMask, VTs: []ValueType{Untyped}, Mask: m}).Value(0)
}

// FrameIndex returns the address of frame object fi.
func (d *DAG) FrameIndex(fi int, vt ValueType) Value {
	return d.add(&Node{Op: FrameIndex, VTs: []ValueType{vt}, Index: fi}).Value(0)
}

// SrcValue returns a node naming the IR value a memory operation came from.
func (d *DAG) SrcValue(name string) Value {
	return d.add(&Node{Op: SrcValue, VTs: []ValueType{Other}, Sym: name}).Value(0)
}

// GlobalAddress returns the generic address of g.
func (d *DAG) GlobalAddress(g *Global, vt ValueType) Value {
	return d.add(&Node{Op: GlobalAddress, VTs: []ValueType{vt}, Global: g, Sym: g.Name}).Value(0)
}

// TargetGlobalAddress returns a relocatable reference to g.
func (d *DAG) TargetGlobalAddress(g *Global, vt ValueType, offset int64, flags target.OperandFlag) Value {
	return d.add(&Node{Op: TargetGlobalAddress, VTs: []ValueType{vt}, Global: g, Sym: g.Name,
		Offset: offset, Flags: flags}).Value(0)
}

// ExternalSymbol returns the generic address of a named external symbol.
func (d *DAG) ExternalSymbol(name string, vt ValueType) Value {
	return d.add(&Node{Op: ExternalSymbol, VTs: []ValueType{vt}, Sym: name}).Value(0)
}

func (d *DAG) TargetExternalSymbol(name string, vt ValueType, flags target.OperandFlag) Value {
	return d.add(&Node{Op: TargetExternalSymbol, VTs: []ValueType{vt}, Sym: name, Flags: flags}).Value(0)
}

// BlockAddress returns the address of a basic block label.
func (d *DAG) BlockAddress(label string, vt ValueType) Value {
	return d.add(&Node{Op: BlockAddress, VTs: []ValueType{vt}, Sym: label}).Value(0)
}

func (d *DAG) TargetBlockAddress(label string, vt ValueType, offset int64, flags target.OperandFlag) Value {
	return d.add(&Node{Op: TargetBlockAddress, VTs: []ValueType{vt}, Sym: label, Offset: offset, Flags: flags}).Value(0)
}

// JumpTable returns the address of jump table idx.
func (d *DAG) JumpTable(idx int, vt ValueType) Value {
	return d.add(&Node{Op: JumpTable, VTs: []ValueType{vt}, Index: idx, Sym: jumpTableName(idx)}).Value(0)
}

func (d *DAG) TargetJumpTable(idx int, vt ValueType, flags target.OperandFlag) Value {
	return d.add(&Node{Op: TargetJumpTable, VTs: []ValueType{vt}, Index: idx, Sym: jumpTableName(idx), Flags: flags}).Value(0)
}

// ConstantPool returns the address of constant pool entry idx.
func (d *DAG) ConstantPool(idx int, vt ValueType, align int, offset int64) Value {
	return d.add(&Node{Op: ConstantPool, VTs: []ValueType{vt}, Index: idx, Sym: constPoolName(idx),
		Align: align, Offset: offset}).Value(0)
}

func (d *DAG) TargetConstantPool(idx int, vt ValueType, align int, offset int64, flags target.OperandFlag) Value {
	return d.add(&Node{Op: TargetConstantPool, VTs: []ValueType{vt}, Index: idx, Sym: constPoolName(idx),
		Align: align, Offset: offset, Flags: flags}).Value(0)
}

// GlobalOffsetTable returns the base of the small data / GOT area.
func (d *DAG) GlobalOffsetTable(vt ValueType) Value {
	return d.add(&Node{Op: GlobalOffsetTable, VTs: []ValueType{vt}}).Value(0)
}

func jumpTableName(idx int) string { return fmt.Sprintf("$JTI%d", idx) }
func constPoolName(idx int) string { return fmt.Sprintf("$CPI%d", idx) }

// CopyToReg copies val into reg after chain. The returned value is the
// output chain; result 1 of the same node is the output glue.
func (d *DAG) CopyToReg(chain Value, reg target.Reg, val Value, glue Value) Value {
	r := d.Register(reg, d.VT(val))
	return d.NewGluedNode(CopyToReg, []ValueType{Other, Glue}, glue, chain, r, val).Value(0)
}

// CopyFromReg reads reg after chain. Result 0 is the value, result 1 the
// chain and result 2 the glue.
func (d *DAG) CopyFromReg(chain Value, reg target.Reg, vt ValueType, glue Value) Value {
	r := d.Register(reg, vt)
	return d.NewGluedNode(CopyFromReg, []ValueType{vt, Other, Glue}, glue, chain, r).Value(0)
}

// Load reads a vt from ptr. Result 0 is the value, result 1 the chain.
func (d *DAG) Load(vt ValueType, chain, ptr Value, mem MemInfo) Value {
	if mem.Size == 0 {
		mem.Size = vt.Bytes()
	}
	n := d.NewNode(Load, []ValueType{vt, Other}, chain, ptr)
	n.Mem = &mem
	return n.Value(0)
}

// Store writes val to ptr and returns the output chain.
func (d *DAG) Store(chain, val, ptr Value, mem MemInfo) Value {
	if mem.Size == 0 {
		mem.Size = d.VT(val).Bytes()
	}
	n := d.NewNode(Store, []ValueType{Other}, chain, val, ptr)
	n.Mem = &mem
	return n.Value(0)
}

// Memcpy copies size bytes from src to dst and returns the output chain.
func (d *DAG) Memcpy(chain, dst, src, size Value, align int) Value {
	n := d.NewNode(Memcpy, []ValueType{Other}, chain, dst, src, size)
	n.Align = align
	return n.Value(0)
}

// TokenFactor merges independent chains. A single chain is returned as is.
func (d *DAG) TokenFactor(chains ...Value) Value {
	if len(chains) == 1 {
		return chains[0]
	}
	return d.GetNode(TokenFactor, Other, chains...)
}

// CallSeqStart opens a call sequence reserving bytes of outgoing arguments.
// Result 0 is the chain, result 1 the glue.
func (d *DAG) CallSeqStart(chain Value, bytes int64) Value {
	return d.NewNode(CallSeqStart, []ValueType{Other, Glue}, chain, d.TargetConstant(bytes, I32)).Value(0)
}

// CallSeqEnd closes a call sequence. Result 0 is the chain, result 1 the glue.
func (d *DAG) CallSeqEnd(chain Value, bytes, calleePops int64, glue Value) Value {
	return d.NewGluedNode(CallSeqEnd, []ValueType{Other, Glue}, glue, chain,
		d.TargetConstant(bytes, I32), d.TargetConstant(calleePops, I32)).Value(0)
}

// MergeValues bundles several values into one multi-result node.
func (d *DAG) MergeValues(vals ...Value) *Node {
	vts := make([]ValueType, len(vals))
	for i, v := range vals {
		vts[i] = d.VT(v)
	}
	return d.NewNode(MergeValues, vts, vals...)
}

// Replace records that the results of old are superseded by vals. Nodes are
// not modified; Resolve follows the substitution.
func (d *DAG) Replace(old NodeID, vals []Value) {
	for i, v := range vals {
		if !v.Valid() {
			continue
		}
		from := Value{Node: old, ResNo: i}
		if from == v {
			continue
		}
		d.replaced[from] = v
	}
	if d.root.Node == old && d.root.ResNo < len(vals) && vals[d.root.ResNo].Valid() {
		d.root = vals[d.root.ResNo]
	}
}

// Resolve follows recorded replacements of v.
func (d *DAG) Resolve(v Value) Value {
	for i := 0; i < len(d.nodes); i++ {
		r, ok := d.replaced[v]
		if !ok {
			return v
		}
		v = r
	}
	panic("dag: replacement cycle")
}

// HasUse reports whether any node (or the root) uses v after resolution.
func (d *DAG) HasUse(v Value) bool {
	v = d.Resolve(v)
	if d.Resolve(d.root) == v {
		return true
	}
	for _, n := range d.nodes[1:] {
		for _, op := range n.Operands {
			if d.Resolve(op) == v {
				return true
			}
		}
		if n.Glue.Valid() && d.Resolve(n.Glue) == v {
			return true
		}
	}
	return false
}

// Topo returns the nodes reachable from roots with every node after its
// operands and glue producer. Replaced values are followed.
func (d *DAG) Topo(roots ...Value) []*Node {
	var (
		order []*Node
		state = make(map[NodeID]uint8)
		visit func(id NodeID)
	)
	visit = func(id NodeID) {
		if state[id] != 0 {
			return
		}
		state[id] = 1
		n := d.Node(id)
		for _, op := range n.Operands {
			visit(d.Resolve(op).Node)
		}
		if n.Glue.Valid() {
			visit(d.Resolve(n.Glue).Node)
		}
		state[id] = 2
		order = append(order, n)
	}
	for _, r := range roots {
		if r.Valid() {
			visit(d.Resolve(r).Node)
		}
	}
	return order
}

// OpName returns the printable name of op.
func (d *DAG) OpName(op Opcode) string {
	if op.IsTarget() && d.namer != nil {
		if name, err := d.namer(op); err == nil {
			return name
		}
	}
	return op.String()
}

// Format renders one node in the "tN: types = op operands" style.
func (d *DAG) Format(n *Node) string {
	var b strings.Builder

	fmt.Fprintf(&b, "t%d: ", n.ID)
	for i, vt := range n.VTs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(vt.String())
	}
	b.WriteString(" = ")
	b.WriteString(d.OpName(n.Op))

	switch n.Op {
	case Constant, TargetConstant:
		fmt.Fprintf(&b, "<%d>", n.Imm)
	case Register:
		fmt.Fprintf(&b, " %s", n.Reg)
	case RegisterMask:
		fmt.Fprintf(&b, " %s", n.Mask)
	case FrameIndex:
		fmt.Fprintf(&b, "<%d>", n.Index)
	case GlobalAddress, ExternalSymbol, BlockAddress, JumpTable, ConstantPool,
		TargetGlobalAddress, TargetExternalSymbol, TargetBlockAddress, TargetJumpTable, TargetConstantPool:
		fmt.Fprintf(&b, "<%s", n.Sym)
		if n.Offset != 0 {
			fmt.Fprintf(&b, "+%d", n.Offset)
		}
		if n.Flags != target.FlagNone {
			fmt.Fprintf(&b, "@%s", n.Flags)
		}
		b.WriteString(">")
	case SrcValue:
		fmt.Fprintf(&b, "<%s>", n.Sym)
	}

	for i, op := range n.Operands {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(d.formatValue(op))
	}
	if n.Glue.Valid() {
		fmt.Fprintf(&b, " [glue %s]", d.formatValue(n.Glue))
	}
	if n.Mem != nil {
		fmt.Fprintf(&b, " mem<%d", n.Mem.Size)
		if n.Mem.GOT {
			b.WriteString(",got")
		}
		b.WriteString(">")
	}
	return b.String()
}

func (d *DAG) formatValue(v Value) string {
	v = d.Resolve(v)
	if v.ResNo == 0 {
		return fmt.Sprintf("t%d", v.Node)
	}
	return fmt.Sprintf("t%d:%d", v.Node, v.ResNo)
}

// Dump renders every node reachable from roots in topological order.
func (d *DAG) Dump(roots ...Value) string {
	var b strings.Builder
	for _, n := range d.Topo(roots...) {
		b.WriteString(d.Format(n))
		b.WriteByte('\n')
	}
	return b.String()
}

// String dumps the graph reachable from the root.
func (d *DAG) String() string { return d.Dump(d.root) }

// Count returns how many nodes reachable from roots have opcode op.
func (d *DAG) Count(op Opcode, roots ...Value) int {
	n := 0
	for _, x := range d.Topo(roots...) {
		if x.Op == op {
			n++
		}
	}
	return n
}

// Users returns the ids of nodes using v, sorted.
func (d *DAG) Users(v Value) []NodeID {
	v = d.Resolve(v)
	var ids []NodeID
	for _, n := range d.nodes[1:] {
		for _, op := range n.Operands {
			if d.Resolve(op) == v {
				ids = append(ids, n.ID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
