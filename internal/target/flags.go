package target

// OperandFlag selects the relocation applied to a target symbol operand.
type OperandFlag uint8

const (
	FlagNone OperandFlag = iota
	// FlagGPRel is a GP-relative offset into the small data section.
	FlagGPRel
	// FlagGOTCall is a GOT entry of a called function.
	FlagGOTCall
	// FlagGOT16 is a 16 bit GOT offset of a global symbol.
	FlagGOT16
	// FlagGOT is a GOT entry holding the page address of a local symbol.
	FlagGOT
	FlagAbsHi
	FlagAbsLo
	// FlagGOTHi16 and FlagGOTLo16 address GOT entries beyond a 16 bit offset.
	FlagGOTHi16
	FlagGOTLo16
)

var flagNames = [...]string{
	FlagNone:    "",
	FlagGPRel:   "gp_rel",
	FlagGOTCall: "got_call",
	FlagGOT16:   "got16",
	FlagGOT:     "got",
	FlagAbsHi:   "abs_hi",
	FlagAbsLo:   "abs_lo",
	FlagGOTHi16: "got_hi16",
	FlagGOTLo16: "got_lo16",
}

func (f OperandFlag) String() string {
	if int(f) < len(flagNames) {
		return flagNames[f]
	}
	return "?"
}

// SplitHiLo splits a 32 bit address into the halves carried by the
// abs_hi / abs_lo relocations. The high half is rounded so that adding the
// sign-extended low half reconstructs addr.
func SplitHiLo(addr uint32) (hi, lo uint16) {
	hi = uint16(((addr + 0x8000) >> 16) & 0xffff)
	lo = uint16(addr & 0xffff)
	return hi, lo
}

// JoinHiLo recombines halves the way the hardware does: hi<<16 plus the
// sign-extended lo.
func JoinHiLo(hi, lo uint16) uint32 {
	return uint32(hi)<<16 + uint32(int32(int16(lo)))
}
