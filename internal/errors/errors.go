// Package errors provides the error kinds used across reconciliation.
// Callers branch on Kind instead of inspecting concrete error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a reconciliation failure
type Kind string

const (
	KindNone              Kind = ""
	KindInputDefect       Kind = "input_defect"       // Malformed candidate from an upstream extractor
	KindNoEvidence        Kind = "no_evidence"        // Zero candidates; informational, never returned as a failure
	KindUnsupportedPolicy Kind = "unsupported_policy" // Policy requested but not implemented
	KindProviderIO        Kind = "provider_io"        // Extraction outputs could not be read
	KindConfig            Kind = "config"             // Invalid configuration
	KindPersist           Kind = "persist"            // Report could not be written
)

// Sentinel errors, one per kind
var (
	ErrInputDefect       = errors.New("input defect")
	ErrNoEvidence        = errors.New("no evidence")
	ErrUnsupportedPolicy = errors.New("unsupported policy")
	ErrProviderIO        = errors.New("provider read failed")
	ErrConfig            = errors.New("invalid configuration")
	ErrPersist           = errors.New("persist failed")
	ErrNotFound          = errors.New("not found")
)

// Re-exported helpers so callers only need one errors import.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

func (k Kind) sentinel() error {
	switch k {
	case KindInputDefect:
		return ErrInputDefect
	case KindNoEvidence:
		return ErrNoEvidence
	case KindUnsupportedPolicy:
		return ErrUnsupportedPolicy
	case KindProviderIO:
		return ErrProviderIO
	case KindConfig:
		return ErrConfig
	case KindPersist:
		return ErrPersist
	default:
		return nil
	}
}

// ReconcileError is a failure scoped to one claim
type ReconcileError struct {
	Kind    Kind
	ClaimID string
	Op      string
	Err     error
}

// Error implements the error interface
func (e *ReconcileError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op
	}
	if e.ClaimID != "" {
		msg = fmt.Sprintf("claim %s: %s", e.ClaimID, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *ReconcileError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Wrap builds a ReconcileError of the given kind
func Wrap(kind Kind, claimID, op string, err error) *ReconcileError {
	return &ReconcileError{Kind: kind, ClaimID: claimID, Op: op, Err: err}
}

// InputDefect reports a malformed candidate
func InputDefect(format string, args ...any) *ReconcileError {
	return &ReconcileError{Kind: KindInputDefect, Op: "invalid candidate", Err: fmt.Errorf(format, args...)}
}

// UnsupportedPolicy reports a reconciliation policy with no implementation
func UnsupportedPolicy(policy string, supported ...string) *ReconcileError {
	return &ReconcileError{
		Kind: KindUnsupportedPolicy,
		Op:   "select policy",
		Err:  fmt.Errorf("reconciliation policy %q is not implemented; use %q", policy, strings.Join(supported, ", ")),
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Component != "" {
		msg = fmt.Sprintf("configuration error in %s", e.Component)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// KindOf returns the kind carried by err, or KindNone
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Kind
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return KindConfig
	}
	for _, k := range []Kind{KindInputDefect, KindUnsupportedPolicy, KindProviderIO, KindConfig, KindPersist} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindNone
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
