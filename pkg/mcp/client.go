package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/majordomo-ai/majordomo/internal/httpc"
)

// Caller performs the wire call to one agent. It exists as an interface
// so routing logic can be exercised without a network.
type Caller interface {
	Call(ctx context.Context, agent *Agent, req *Request) (map[string]interface{}, error)
}

// defaultCallTimeout bounds one agent call.
const defaultCallTimeout = 10 * time.Second

// HTTPCaller posts JSON requests to agent endpoints.
type HTTPCaller struct {
	client *http.Client
}

// NewHTTPCaller creates the production caller.
func NewHTTPCaller() *HTTPCaller {
	return &HTTPCaller{client: httpc.NewClient(defaultCallTimeout)}
}

// Call implements Caller. A non-200 status or an undecodable body is a
// failed call.
func (c *HTTPCaller) Call(ctx context.Context, agent *Agent, req *Request) (map[string]interface{}, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Err: fmt.Errorf("encode request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if agent.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+agent.AuthToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &AgentError{Agent: agent.Name, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &AgentError{Agent: agent.Name, Err: fmt.Errorf("decode response: %w", err)}
	}
	return data, nil
}

// Verify HTTPCaller implements Caller at compile time.
var _ Caller = (*HTTPCaller)(nil)
