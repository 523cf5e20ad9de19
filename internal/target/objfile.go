package target

import "reflect"

// GlobalObject is the view of a global symbol needed to place it.
type GlobalObject interface {
	SizeInBytes() int
	SectionName() string
	IsFunction() bool
	IsDeclaration() bool
}

// ObjectFile decides section placement of globals.
type ObjectFile struct {
	UseSmallSection       bool
	SmallSectionThreshold int
}

// IsGlobalInSmallSection reports whether g lives in .sdata/.sbss and can
// therefore be reached with a single GP-relative offset.
func (o ObjectFile) IsGlobalInSmallSection(g GlobalObject) bool {
	if !o.UseSmallSection || isNilObject(g) {
		return false
	}
	if g.IsFunction() || g.IsDeclaration() {
		return false
	}
	switch g.SectionName() {
	case ".sdata", ".sbss":
		return true
	case "":
	default:
		return false
	}
	size := g.SizeInBytes()
	return size > 0 && size <= o.SmallSectionThreshold
}

// isNilObject also catches a nil pointer stored in the interface.
func isNilObject(g GlobalObject) bool {
	if g == nil {
		return true
	}
	v := reflect.ValueOf(g)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
