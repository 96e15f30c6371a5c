// Package lnrouteerrors defines the structured error kinds shared by the
// routing, fund, and accelerator packages. Errors carry an RPC-style
// numeric code so that a transport layer (out of scope for this module)
// can translate them without re-deriving the failure kind from a string.
package lnrouteerrors

import "fmt"

// Code is an RPC-style error code, mirroring the conventions lncli's
// commands assume of the surface they're calling.
type Code int

const (
	// CodeOther is used when no more specific code applies.
	CodeOther Code = -1

	// CodeParam indicates a caller-supplied parameter was invalid.
	CodeParam Code = -32602

	// CodeExceedsMaxFunding indicates a destination amount exceeds the
	// configured large-channel limit without the peer supporting it.
	CodeExceedsMaxFunding Code = 300

	// CodeInsufficientFunds indicates the wallet could not satisfy the
	// requested outputs.
	CodeInsufficientFunds Code = 301

	// CodeDust indicates a destination amount fell below the dust
	// threshold.
	CodeDust Code = 302

	// CodeBroadcastFailed indicates the final transaction's broadcast
	// failed. NewAmbiguousBroadcast uses it for a failure after which the
	// transaction may already have been published.
	CodeBroadcastFailed Code = 303

	// CodeRouteNotFound is returned by permuteroute on failure.
	CodeRouteNotFound Code = 204
)

// Kind classifies an error for propagation-policy purposes, per the design
// in spec section 7: ParamError, Transient, BudgetExceeded, Unreachable,
// ProtocolFailure, AmbiguousBroadcast.
type Kind int

const (
	KindParam Kind = iota
	KindTransient
	KindBudgetExceeded
	KindUnreachable
	KindProtocolFailure
	KindAmbiguousBroadcast
)

// RPCError is the structured error type surfaced across package
// boundaries. It always carries an RPC code and message, and optionally
// names the external sub-command that failed.
type RPCError struct {
	Code Code
	Kind Kind

	// Message is a human-readable description of the failure.
	Message string

	// FailingSubcommand names the external collaborator operation (per
	// section 6) that was in flight when the error occurred, if any.
	FailingSubcommand string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.FailingSubcommand != "" {
		return fmt.Sprintf("%s (sub-command: %s)", e.Message, e.FailingSubcommand)
	}
	return e.Message
}

// NewParamError builds a caller-fault error.
func NewParamError(format string, args ...interface{}) *RPCError {
	return &RPCError{
		Code:    CodeParam,
		Kind:    KindParam,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewRouteNotFound builds the permuteroute failure described in spec
// section 6, optionally naming the sub-command that failed.
func NewRouteNotFound(subcommand string, format string, args ...interface{}) *RPCError {
	return &RPCError{
		Code:              CodeRouteNotFound,
		Kind:              KindUnreachable,
		Message:           fmt.Sprintf(format, args...),
		FailingSubcommand: subcommand,
	}
}

// NewBudgetExceeded builds a fee/CLTV budget error.
func NewBudgetExceeded(format string, args ...interface{}) *RPCError {
	return &RPCError{
		Code:    CodeOther,
		Kind:    KindBudgetExceeded,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewProtocolFailure builds an error for a peer-refused operation,
// optionally naming the failing sub-command.
func NewProtocolFailure(subcommand string, format string, args ...interface{}) *RPCError {
	return &RPCError{
		Code:              CodeOther,
		Kind:              KindProtocolFailure,
		Message:           fmt.Sprintf(format, args...),
		FailingSubcommand: subcommand,
	}
}

// NewAmbiguousBroadcast builds the "may already be published" error that
// the orchestrator treats as success for state-machine purposes (spec
// section 7) while still surfacing to the caller.
func NewAmbiguousBroadcast(format string, args ...interface{}) *RPCError {
	return &RPCError{
		Code:    CodeBroadcastFailed,
		Kind:    KindAmbiguousBroadcast,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsAmbiguousBroadcast reports whether err is an AmbiguousBroadcast kind.
func IsAmbiguousBroadcast(err error) bool {
	rpcErr, ok := err.(*RPCError)
	return ok && rpcErr.Kind == KindAmbiguousBroadcast
}
