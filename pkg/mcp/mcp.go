// Package mcp routes capability requests to remote agents with
// failover, plus a set of builtin handlers that keep basic skills
// working when no agent is connected.
//
// Agents register with a name, endpoint, capability list and priority.
// Routing prefers builtins, then healthy agents ordered by priority,
// success rate and average response time. Health is re-probed lazily:
// the first route after the check interval elapses triggers a sweep,
// so an idle router costs nothing.
package mcp

import (
	"github.com/google/uuid"
)

// Request is the wire format sent to remote agents.
type Request struct {
	ID     string                 `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

// NewRequest creates a request with a fresh ID.
func NewRequest(method string, params map[string]interface{}) *Request {
	if params == nil {
		params = map[string]interface{}{}
	}
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	}
}

// Result is the outcome of one routed request.
type Result struct {
	// Data is the payload returned by the handler or agent.
	Data map[string]interface{} `json:"data"`

	// Agent names the agent that answered. Builtin results use the
	// BuiltinAgent marker.
	Agent string `json:"agent"`

	// Builtin reports whether a local handler answered.
	Builtin bool `json:"builtin"`

	// ResponseTime is the handling latency in seconds.
	ResponseTime float64 `json:"response_time"`
}

// BuiltinAgent is the Agent value on results served locally.
const BuiltinAgent = "builtin"
