// Package dag defines the per-function selection graph: an arena of
// immutable nodes addressed by index, with chain and glue edges that order
// side effects.
package dag

// ValueType is the machine value type of one node result.
type ValueType uint8

const (
	// Other is the chain (ordering token) type.
	Other ValueType = iota
	// Glue ties two nodes so that they are scheduled adjacently.
	Glue
	I1
	I8
	I16
	I32
	I64
	// Untyped marks payload-only nodes such as register masks.
	Untyped
)

var vtNames = [...]string{
	Other:   "ch",
	Glue:    "glue",
	I1:      "i1",
	I8:      "i8",
	I16:     "i16",
	I32:     "i32",
	I64:     "i64",
	Untyped: "untyped",
}

func (vt ValueType) String() string {
	if int(vt) < len(vtNames) {
		return vtNames[vt]
	}
	return "?"
}

// Bits returns the width of an integer type; 0 for non-integer types.
func (vt ValueType) Bits() int {
	switch vt {
	case I1:
		return 1
	case I8:
		return 8
	case I16:
		return 16
	case I32:
		return 32
	case I64:
		return 64
	}
	return 0
}

// Bytes returns the store size of an integer type.
func (vt ValueType) Bytes() int { return (vt.Bits() + 7) / 8 }

// IsInteger reports whether vt is an integer type.
func (vt ValueType) IsInteger() bool { return vt.Bits() != 0 }

// ParseValueType maps the textual names used in dumps and requests back to types.
func ParseValueType(s string) (ValueType, bool) {
	for i, n := range vtNames {
		if n == s {
			return ValueType(i), true
		}
	}
	return 0, false
}
