package isel

import (
	"fmt"

	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// VerifyCallSequences checks that every callseq_end reachable from roots
// closes exactly one callseq_start with the same byte count, that no
// sequence is left open, and that each JmpLink sits between its brackets.
func VerifyCallSequences(d *dag.DAG, roots ...dag.Value) error {
	nodes := d.Topo(roots...)

	opened := make(map[dag.NodeID]int)
	for _, n := range nodes {
		if n.Op == dag.CallSeqStart {
			opened[n.ID] = 0
		}
	}

	for _, n := range nodes {
		if n.Op != dag.CallSeqEnd {
			continue
		}
		start, sawCall := findCallSeqStart(d, n.Operand(0))
		if start == nil {
			return cerrors.UnbalancedCallSequence(int(n.ID), "end without start")
		}
		if !sawCall {
			return cerrors.UnbalancedCallSequence(int(n.ID), "no JmpLink between the brackets")
		}
		opened[start.ID]++
		if opened[start.ID] > 1 {
			return cerrors.UnbalancedCallSequence(int(start.ID), "start closed twice")
		}
		in := d.NodeOf(start.Operand(1)).Imm
		out := d.NodeOf(n.Operand(1)).Imm
		if in != out {
			return cerrors.UnbalancedCallSequence(int(start.ID),
				fmt.Sprintf("start reserves %d bytes, end releases %d", in, out))
		}
	}

	for id, ends := range opened {
		if ends != 1 {
			return cerrors.UnbalancedCallSequence(int(id), "start without end")
		}
	}
	return nil
}

// findCallSeqStart walks the chain backwards from v to the nearest
// callseq_start, reporting whether a JmpLink was passed on the way.
func findCallSeqStart(d *dag.DAG, v dag.Value) (*dag.Node, bool) {
	seen := make(map[dag.NodeID]bool)
	var walk func(v dag.Value, sawCall bool) (*dag.Node, bool)
	walk = func(v dag.Value, sawCall bool) (*dag.Node, bool) {
		v = d.Resolve(v)
		n := d.NodeOf(v)
		if n == nil || seen[n.ID] {
			return nil, false
		}
		seen[n.ID] = true

		switch n.Op {
		case dag.CallSeqStart:
			return n, sawCall
		case dag.EntryToken, dag.CallSeqEnd:
			return nil, false
		case OpJmpLink:
			sawCall = true
		}
		for _, op := range n.Operands {
			if d.VT(d.Resolve(op)) != dag.Other {
				continue
			}
			if s, ok := walk(op, sawCall); s != nil {
				return s, ok
			}
		}
		return nil, false
	}
	return walk(v, false)
}
