// Package vkerr defines the typed error kinds used at every fallible
// boundary of the engine core. The frame driver classifies them into
// fatal termination or local recovery (see engine.Engine.DrawFrame).
package vkerr

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies a failure the way the frame driver needs to react to it.
type Kind int

const (
	// KindInit covers startup failures: no suitable device, missing
	// extension/feature, failed surface or swapchain creation.
	KindInit Kind = iota
	// KindTransient covers OutOfDate/Suboptimal results from acquire
	// or present; recovered locally by the frame driver.
	KindTransient
	// KindResource covers allocation failures, unsupported formats,
	// unsupported blits, and texture load failures.
	KindResource
	// KindDeviceLost covers VK_ERROR_DEVICE_LOST and fence-wait timeout.
	KindDeviceLost
	// KindProgramming covers contract violations: undefined layout
	// transitions, missing required queue families. Intended to be
	// caught during development.
	KindProgramming
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindTransient:
		return "transient"
	case KindResource:
		return "resource"
	case KindDeviceLost:
		return "device-lost"
	case KindProgramming:
		return "programming"
	default:
		return "unknown"
	}
}

// Error is the single error type returned at component API boundaries.
type Error struct {
	Kind   Kind
	Op     string
	Result vk.Result
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: vk result %d", e.Op, e.Kind, e.Result)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error, capturing the caller's frame in Op when op is empty.
func New(kind Kind, op string, result vk.Result, cause error) *Error {
	if op == "" {
		op = callerOp()
	}
	return &Error{Kind: kind, Op: op, Result: result, Err: cause}
}

// Fatal reports whether an error of this kind must terminate the engine.
func (k Kind) Fatal() bool {
	return k != KindTransient
}

func callerOp() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s (%s:%d)", name, file, line)
}

// CheckResult is a small helper that turns a non-Success vk.Result into
// a typed *Error, mirroring the teacher's isError/newError pair but
// returning an inspectable value instead of a bare formatted string.
func CheckResult(kind Kind, op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	return New(kind, op, result, nil)
}
