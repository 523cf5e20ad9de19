package dag

import "fmt"

// Opcode identifies the operation of a node. Target specific opcodes start
// at FirstTargetOpcode and are named by the target through a NameFunc.
type Opcode uint16

const (
	EntryToken Opcode = iota
	TokenFactor
	MergeValues

	Constant
	TargetConstant
	Register
	RegisterMask
	FrameIndex
	SrcValue

	GlobalAddress
	ExternalSymbol
	BlockAddress
	JumpTable
	ConstantPool
	TargetGlobalAddress
	TargetExternalSymbol
	TargetBlockAddress
	TargetJumpTable
	TargetConstantPool
	GlobalOffsetTable

	CopyToReg
	CopyFromReg
	Load
	Store
	Memcpy
	CallSeqStart
	CallSeqEnd

	Add
	Sub
	Mul
	And
	Or
	Xor
	Shl
	Srl
	Sra
	Select
	SetCC
	SignExtend
	ZeroExtend
	AnyExtend
	SignExtendInReg

	ShlParts
	SraParts
	SrlParts
	SDivRem
	UDivRem
	SDiv
	SRem
	UDiv
	URem

	BrCond
	BrCC
	BrJT
	SelectCC

	VAStart
	VAArg
	VACopy
	VAEnd
	DynamicStackAlloc

	// FirstTargetOpcode is the first opcode number available to targets.
	FirstTargetOpcode
)

var opNames = [...]string{
	EntryToken:           "EntryToken",
	TokenFactor:          "TokenFactor",
	MergeValues:          "merge_values",
	Constant:             "Constant",
	TargetConstant:       "TargetConstant",
	Register:             "Register",
	RegisterMask:         "RegisterMask",
	FrameIndex:           "FrameIndex",
	SrcValue:             "SrcValue",
	GlobalAddress:        "GlobalAddress",
	ExternalSymbol:       "ExternalSymbol",
	BlockAddress:         "BlockAddress",
	JumpTable:            "JumpTable",
	ConstantPool:         "ConstantPool",
	TargetGlobalAddress:  "TargetGlobalAddress",
	TargetExternalSymbol: "TargetExternalSymbol",
	TargetBlockAddress:   "TargetBlockAddress",
	TargetJumpTable:      "TargetJumpTable",
	TargetConstantPool:   "TargetConstantPool",
	GlobalOffsetTable:    "GLOBAL_OFFSET_TABLE",
	CopyToReg:            "CopyToReg",
	CopyFromReg:          "CopyFromReg",
	Load:                 "load",
	Store:                "store",
	Memcpy:               "memcpy",
	CallSeqStart:         "callseq_start",
	CallSeqEnd:           "callseq_end",
	Add:                  "add",
	Sub:                  "sub",
	Mul:                  "mul",
	And:                  "and",
	Or:                   "or",
	Xor:                  "xor",
	Shl:                  "shl",
	Srl:                  "srl",
	Sra:                  "sra",
	Select:               "select",
	SetCC:                "setcc",
	SignExtend:           "sign_extend",
	ZeroExtend:           "zero_extend",
	AnyExtend:            "any_extend",
	SignExtendInReg:      "sign_extend_inreg",
	ShlParts:             "shl_parts",
	SraParts:             "sra_parts",
	SrlParts:             "srl_parts",
	SDivRem:              "sdivrem",
	UDivRem:              "udivrem",
	SDiv:                 "sdiv",
	SRem:                 "srem",
	UDiv:                 "udiv",
	URem:                 "urem",
	BrCond:               "brcond",
	BrCC:                 "br_cc",
	BrJT:                 "br_jt",
	SelectCC:             "select_cc",
	VAStart:              "vastart",
	VAArg:                "vaarg",
	VACopy:               "vacopy",
	VAEnd:                "vaend",
	DynamicStackAlloc:    "dynamic_stackalloc",
}

// IsTarget reports whether op is a target specific opcode.
func (op Opcode) IsTarget() bool { return op >= FirstTargetOpcode }

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("target_op<%d>", uint16(op-FirstTargetOpcode))
}

// NameFunc names target opcodes for dumps.
type NameFunc func(op Opcode) (string, error)

// LookupOpcode returns the generic opcode printed as name.
func LookupOpcode(name string) (Opcode, bool) {
	for i, n := range opNames {
		if n != "" && n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}
