package mcp

import (
	"errors"
	"fmt"
)

// Sentinel errors for routing outcomes.
var (
	// ErrNoAgents is returned when no healthy agent serves a capability.
	ErrNoAgents = errors.New("mcp: no agents available")

	// ErrAllAgentsFailed is returned when every retry pass was exhausted.
	ErrAllAgentsFailed = errors.New("mcp: all agents failed")

	// ErrAgentExists is returned when registering a duplicate name.
	ErrAgentExists = errors.New("mcp: agent already registered")

	// ErrAgentNotFound is returned when unregistering an unknown name.
	ErrAgentNotFound = errors.New("mcp: agent not found")

	// ErrBadExpression is returned by the calculator for input it
	// refuses to evaluate.
	ErrBadExpression = errors.New("mcp: invalid expression")
)

// CapabilityError wraps a routing failure with the capability asked for.
type CapabilityError struct {
	Capability string
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("mcp [%s]: %v after %d attempts", e.Capability, e.Err, e.Attempts)
	}
	return fmt.Sprintf("mcp [%s]: %v", e.Capability, e.Err)
}

// Unwrap returns the underlying error.
func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// AgentError wraps a single failed agent call.
type AgentError struct {
	Agent string
	Err   error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("mcp agent %s: %v", e.Agent, e.Err)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error {
	return e.Err
}
