package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed taxonomy of failures the system surfaces.
type ErrorKind string

const (
	ErrValidation              ErrorKind = "validation"
	ErrNotFound                ErrorKind = "not_found"
	ErrConcurrentExecution     ErrorKind = "concurrent_execution"
	ErrInvalidTransition       ErrorKind = "invalid_transition"
	ErrNoWorkflowForStrategy   ErrorKind = "no_workflow_for_strategy"
	ErrAgentUnavailable        ErrorKind = "agent_unavailable"
	ErrConsensusStrategyFailed ErrorKind = "consensus_strategy_failed"
	ErrIOTransient             ErrorKind = "io_transient"
	ErrIOFatal                 ErrorKind = "io_fatal"
	ErrIndexingPerFile         ErrorKind = "indexing_per_file"
	ErrCancelled               ErrorKind = "cancelled"
)

// Retryable reports whether the kind is worth retrying at all.
func (k ErrorKind) Retryable() bool {
	return k == ErrAgentUnavailable || k == ErrIOTransient
}

// DomainError is the user-visible failure shape: a kind, a message, and the
// domain identifiers involved.
type DomainError struct {
	Kind    ErrorKind
	Message string
	TaskID  string
	AgentID string
	Err     error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.TaskID != "" {
		fmt.Fprintf(&b, " (task=%s)", e.TaskID)
	}
	if e.AgentID != "" {
		fmt.Fprintf(&b, " (agent=%s)", e.AgentID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DomainError) Unwrap() error { return e.Err }

// KindOf extracts the error kind from an error chain. Context cancellation
// maps to cancelled; anything unclassified is treated as io_fatal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return ErrIOFatal
}
