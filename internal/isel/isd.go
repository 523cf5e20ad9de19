package isel

import (
	"github.com/orizon-lang/cpu0isel/internal/dag"
	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// Cpu0 specific opcodes produced by the lowering.
const (
	// OpJmpLink is a call: chain, callee, argument registers..., register
	// mask, optional glue. Results: chain, glue.
	OpJmpLink = dag.FirstTargetOpcode + iota
	// OpHi materializes the upper half of an address (value << 16).
	OpHi
	// OpLo is the sign-extended lower half of an address.
	OpLo
	// OpGPRel is a GP-relative small data offset.
	OpGPRel
	// OpRet returns: chain, return registers..., optional glue.
	OpRet
	// OpDivRem and OpDivRemU write quotient and remainder to LO and HI.
	// Results: glue.
	OpDivRem
	OpDivRemU
	// OpWrapper adds a GOT or constant offset to a base register.
	OpWrapper
)

var targetNames = map[dag.Opcode]string{
	OpJmpLink: "Cpu0ISD::JmpLink",
	OpHi:      "Cpu0ISD::Hi",
	OpLo:      "Cpu0ISD::Lo",
	OpGPRel:   "Cpu0ISD::GPRel",
	OpRet:     "Cpu0ISD::Ret",
	OpDivRem:  "Cpu0ISD::DivRem",
	OpDivRemU: "Cpu0ISD::DivRemU",
	OpWrapper: "Cpu0ISD::Wrapper",
}

// TargetNodeName returns the name of a Cpu0 opcode. Asking for any other
// target opcode is an invariant violation.
func TargetNodeName(op dag.Opcode) (string, error) {
	if name, ok := targetNames[op]; ok {
		return name, nil
	}
	return "", cerrors.UnknownTargetNode(int(op))
}
