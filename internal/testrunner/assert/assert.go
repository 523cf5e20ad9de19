// Package assert holds the assertions used by the lowering tests. Every
// assertion reports through t.Error, so a test keeps running after a
// failed check and sees all mismatches at once. Each returns whether the
// check held.
package assert

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	cerrors "github.com/orizon-lang/cpu0isel/internal/errors"
)

// check reports op as failed with the lazily built detail when ok is false.
// msgAndArgs are joined with fmt.Sprint.
func check(t testing.TB, ok bool, op string, detail func() string, msgAndArgs ...any) bool {
	t.Helper()
	if ok {
		return true
	}
	msg := op + ": " + detail()
	if len(msgAndArgs) > 0 {
		msg += ": " + fmt.Sprint(msgAndArgs...)
	}
	t.Error(msg)
	return false
}

func Equal[T comparable](t testing.TB, got, want T, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, got == want, "Equal", func() string {
		return fmt.Sprintf("got=%v want=%v (%T)", got, want, got)
	}, msgAndArgs...)
}

func NotEqual[T comparable](t testing.TB, got, notWant T, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, got != notWant, "NotEqual", func() string {
		return fmt.Sprintf("both are %v (%T)", got, got)
	}, msgAndArgs...)
}

// SliceEqual asserts that two slices hold the same elements in the same order.
func SliceEqual[T comparable](t testing.TB, got, want []T, msgAndArgs ...any) bool {
	t.Helper()
	if len(got) != len(want) {
		return check(t, false, "SliceEqual", func() string {
			return fmt.Sprintf("got %v (len=%d), want %v (len=%d)", got, len(got), want, len(want))
		}, msgAndArgs...)
	}
	for i := range got {
		if got[i] != want[i] {
			return check(t, false, "SliceEqual", func() string {
				return fmt.Sprintf("index %d: got=%v want=%v", i, got[i], want[i])
			}, msgAndArgs...)
		}
	}
	return true
}

// Nil treats typed nil pointers, maps, slices, funcs and channels as nil.
func Nil(t testing.TB, v any, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, isNil(v), "Nil", func() string { return fmt.Sprintf("got %T(%v)", v, v) }, msgAndArgs...)
}

func NotNil(t testing.TB, v any, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, !isNil(v), "NotNil", func() string { return "unexpected nil" }, msgAndArgs...)
}

func True(t testing.TB, cond bool, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, cond, "True", func() string { return "condition is false" }, msgAndArgs...)
}

func False(t testing.TB, cond bool, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, !cond, "False", func() string { return "condition is true" }, msgAndArgs...)
}

func Error(t testing.TB, err error, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, err != nil, "Error", func() string { return "expected error, got nil" }, msgAndArgs...)
}

func NoError(t testing.TB, err error, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, err == nil, "NoError", func() string { return fmt.Sprintf("unexpected error: %v", err) }, msgAndArgs...)
}

func ErrorIs(t testing.TB, err, target error, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, errors.Is(err, target), "ErrorIs", func() string {
		return fmt.Sprintf("%v is not %v", err, target)
	}, msgAndArgs...)
}

// Code asserts that err, possibly wrapped, is a StandardError with code.
func Code(t testing.TB, err error, code string, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, cerrors.HasCode(err, code), "Code", func() string {
		return fmt.Sprintf("want %s, got %v", code, err)
	}, msgAndArgs...)
}

// Invariant is Code plus the requirement that err is an invariant violation.
func Invariant(t testing.TB, err error, code string, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, cerrors.IsInvariantViolation(err) && cerrors.HasCode(err, code), "Invariant", func() string {
		return fmt.Sprintf("want invariant violation %s, got %v", code, err)
	}, msgAndArgs...)
}

func Contains(t testing.TB, s, substr string, msgAndArgs ...any) bool {
	t.Helper()
	return check(t, strings.Contains(s, substr), "Contains", func() string {
		return fmt.Sprintf("%q does not contain %q", s, substr)
	}, msgAndArgs...)
}

// Len works with arrays, slices, maps, strings and channels.
func Len(t testing.TB, v any, want int, msgAndArgs ...any) bool {
	t.Helper()
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array, reflect.Slice, reflect.Map, reflect.String, reflect.Chan:
		return check(t, rv.Len() == want, "Len", func() string {
			return fmt.Sprintf("got len=%d, want %d", rv.Len(), want)
		}, msgAndArgs...)
	default:
		return check(t, false, "Len", func() string { return fmt.Sprintf("unsupported kind %s", rv.Kind()) }, msgAndArgs...)
	}
}

func Panics(t testing.TB, fn func(), msgAndArgs ...any) bool {
	t.Helper()
	panicked := func() (p bool) {
		defer func() { p = recover() != nil }()
		fn()
		return false
	}()
	return check(t, panicked, "Panics", func() string { return "function did not panic" }, msgAndArgs...)
}

// Eventually polls condition every interval until it holds or within elapses.
func Eventually(t testing.TB, condition func() bool, within, interval time.Duration, msgAndArgs ...any) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for !condition() {
		if time.Now().After(deadline) {
			return check(t, false, "Eventually", func() string {
				return fmt.Sprintf("condition not met within %s", within)
			}, msgAndArgs...)
		}
		time.Sleep(interval)
	}
	return true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
