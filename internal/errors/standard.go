// Package errors provides standardized error values for the Cpu0 lowering pass.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	// CategoryInvariant marks a defect in an upstream pass or in the lowering
	// itself. Compilation of the unit must abort.
	CategoryInvariant  ErrorCategory = "INTERNAL_INVARIANT"
	CategoryValidation ErrorCategory = "VALIDATION"
	CategoryConfig     ErrorCategory = "CONFIG"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// IsInvariantViolation reports whether err carries an internal invariant violation.
func IsInvariantViolation(err error) bool {
	var se *StandardError
	return stderrors.As(err, &se) && se.Category == CategoryInvariant
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code string) bool {
	var se *StandardError
	return stderrors.As(err, &se) && se.Code == code
}

// Error codes. All but the last two are invariant violations.
const (
	CodeMissingSRetReg     = "MISSING_SRET_REGISTER"
	CodeZeroSizeByVal      = "ZERO_SIZE_BYVAL"
	CodeUnexpectedRegLoc   = "UNEXPECTED_REGISTER_LOCATION"
	CodeUnknownTargetNode  = "UNKNOWN_TARGET_NODE"
	CodeUnknownLocInfo     = "UNKNOWN_LOC_INFO"
	CodeReturnNotInReg     = "RETURN_NOT_IN_REGISTERS"
	CodeUnsupportedType    = "UNSUPPORTED_VALUE_TYPE"
	CodeUnexpectedNode     = "UNEXPECTED_NODE"
	CodeSRetAlreadyCreated = "SRET_REGISTER_REASSIGNED"
	CodeUnbalancedCallSeq  = "UNBALANCED_CALL_SEQUENCE"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidRequest     = "INVALID_REQUEST"
)

// Common error constructors
func MissingSRetRegister(function string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeMissingSRetReg,
		fmt.Sprintf("sret virtual register not created in the entry block of %s", function),
		map[string]interface{}{"function": function})
}

func SRetRegisterReassigned(function string, existing uint32) *StandardError {
	return NewStandardError(CategoryInvariant, CodeSRetAlreadyCreated,
		fmt.Sprintf("sret virtual register of %s already set to %%vreg%d", function, existing),
		map[string]interface{}{"function": function, "existing": existing})
}

func ZeroSizeByVal(argIndex int) *StandardError {
	return NewStandardError(CategoryInvariant, CodeZeroSizeByVal,
		fmt.Sprintf("byval argument %d has size 0 and should have been elided by the front end", argIndex),
		map[string]interface{}{"arg": argIndex})
}

func UnexpectedRegLoc(argIndex int, reg string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnexpectedRegLoc,
		fmt.Sprintf("formal argument %d assigned to register %s; incoming scalars must be memory located", argIndex, reg),
		map[string]interface{}{"arg": argIndex, "reg": reg})
}

func UnknownTargetNode(opcode int) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnknownTargetNode,
		fmt.Sprintf("no name for target opcode %d", opcode),
		map[string]interface{}{"opcode": opcode})
}

func UnknownLocInfo(info string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnknownLocInfo,
		fmt.Sprintf("unknown loc info %q", info),
		map[string]interface{}{"loc_info": info})
}

func ReturnNotInRegisters(valNo int) *StandardError {
	return NewStandardError(CategoryInvariant, CodeReturnNotInReg,
		fmt.Sprintf("return value %d cannot be assigned a register; can only return in registers", valNo),
		map[string]interface{}{"value": valNo})
}

func UnsupportedValueType(vt string, where string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnsupportedType,
		fmt.Sprintf("value type %s has no calling convention rule in %s", vt, where),
		map[string]interface{}{"type": vt, "where": where})
}

func UnexpectedNode(op string, where string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnexpectedNode,
		fmt.Sprintf("unexpected %s node in %s", op, where),
		map[string]interface{}{"op": op, "where": where})
}

func UnbalancedCallSequence(node int, detail string) *StandardError {
	return NewStandardError(CategoryInvariant, CodeUnbalancedCallSeq,
		fmt.Sprintf("call sequence at t%d: %s", node, detail),
		map[string]interface{}{"node": node})
}

// InvalidConfig reports a malformed target descriptor or tool configuration.
func InvalidConfig(field, detail string) *StandardError {
	return NewStandardError(CategoryConfig, CodeInvalidConfig,
		fmt.Sprintf("invalid %s: %s", field, detail),
		map[string]interface{}{"field": field})
}

// InvalidRequest reports a malformed lowering request.
func InvalidRequest(detail string) *StandardError {
	return NewStandardError(CategoryValidation, CodeInvalidRequest, detail, nil)
}
