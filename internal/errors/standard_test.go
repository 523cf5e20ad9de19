package errors_test

import (
	"fmt"
	"strings"
	"testing"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
	"github.com/orizon-lang/cpu0isel/internal/testrunner/assert"
)

func TestStandardErrorFormat(t *testing.T) {
	err := cerrors.ZeroSizeByVal(2)
	assert.Equal(t, err.Category, cerrors.CategoryInvariant)
	assert.Equal(t, err.Code, cerrors.CodeZeroSizeByVal)
	assert.Equal[any](t, err.Context["arg"], 2)
	assert.Contains(t, err.Error(), "[INTERNAL_INVARIANT:ZERO_SIZE_BYVAL]")
	assert.True(t, strings.HasSuffix(err.Caller, ".ZeroSizeByVal"), err.Caller)
}

func TestCategoriesAndCodes(t *testing.T) {
	cases := []struct {
		err       *cerrors.StandardError
		code      string
		invariant bool
	}{
		{cerrors.MissingSRetRegister("f"), cerrors.CodeMissingSRetReg, true},
		{cerrors.SRetRegisterReassigned("f", 3), cerrors.CodeSRetAlreadyCreated, true},
		{cerrors.UnexpectedRegLoc(0, "$t0"), cerrors.CodeUnexpectedRegLoc, true},
		{cerrors.UnknownTargetNode(999), cerrors.CodeUnknownTargetNode, true},
		{cerrors.UnknownLocInfo("fext"), cerrors.CodeUnknownLocInfo, true},
		{cerrors.ReturnNotInRegisters(2), cerrors.CodeReturnNotInReg, true},
		{cerrors.UnsupportedValueType("f32", "call"), cerrors.CodeUnsupportedType, true},
		{cerrors.UnexpectedNode("vastart", "f"), cerrors.CodeUnexpectedNode, true},
		{cerrors.UnbalancedCallSequence(4, "end without start"), cerrors.CodeUnbalancedCallSeq, true},
		{cerrors.InvalidConfig("arch", "x"), cerrors.CodeInvalidConfig, false},
		{cerrors.InvalidRequest("empty"), cerrors.CodeInvalidRequest, false},
	}
	for _, c := range cases {
		t.Run(c.code, func(t *testing.T) {
			wrapped := fmt.Errorf("lowering: %w", c.err)
			assert.Code(t, wrapped, c.code)
			assert.Equal(t, cerrors.IsInvariantViolation(wrapped), c.invariant)
		})
	}

	assert.False(t, cerrors.HasCode(fmt.Errorf("plain"), cerrors.CodeInvalidConfig))
	assert.False(t, cerrors.IsInvariantViolation(nil))
}
