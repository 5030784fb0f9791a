package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Routing defaults.
const (
	// DefaultHealthInterval is the minimum spacing between lazy
	// health-check sweeps.
	DefaultHealthInterval = 30 * time.Second

	// DefaultMaxRetries is the number of extra passes over the
	// candidate list after the first.
	DefaultMaxRetries = 2

	// unhealthyThreshold flips an agent unhealthy after a failure.
	unhealthyThreshold = 0.5
)

// Router routes capability requests to builtins or registered agents.
type Router struct {
	mu            sync.Mutex
	agents        map[string]*Agent
	capabilityMap map[string][]string

	builtins       map[string]Handler
	caller         Caller
	maxRetries     int
	healthInterval time.Duration
	lastHealth     time.Time
	now            func() time.Time
	logger         *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCaller swaps the agent transport.
func WithCaller(c Caller) RouterOption {
	return func(r *Router) {
		r.caller = c
	}
}

// WithMaxRetries sets the extra passes over the candidate list.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithHealthInterval sets the minimum spacing between health sweeps.
func WithHealthInterval(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.healthInterval = d
		}
	}
}

// WithRouterClock injects the clock, for tests.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		r.now = now
	}
}

// WithRouterLogger sets the structured logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger.With("component", "mcp.router")
	}
}

// WithBuiltin registers or replaces a local handler.
func WithBuiltin(capability string, h Handler) RouterOption {
	return func(r *Router) {
		r.builtins[capability] = h
	}
}

// NewRouter creates a router with the builtin handlers installed.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		agents:         make(map[string]*Agent),
		capabilityMap:  make(map[string][]string),
		caller:         NewHTTPCaller(),
		maxRetries:     DefaultMaxRetries,
		healthInterval: DefaultHealthInterval,
		now:            time.Now,
		logger:         slog.Default().With("component", "mcp.router"),
	}
	r.builtins = builtinHandlers(func() time.Time { return r.now() })
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an agent and indexes its capabilities.
func (r *Router) Register(name, endpoint string, capabilities []string, authToken string, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}

	r.agents[name] = NewAgent(name, endpoint, capabilities, authToken, priority)
	for _, capability := range capabilities {
		r.capabilityMap[capability] = append(r.capabilityMap[capability], name)
	}

	r.logger.Info("registered agent",
		"agent", name,
		"endpoint", endpoint,
		"capabilities", capabilities,
		"priority", priority)
	return nil
}

// Unregister removes an agent and de-indexes its capabilities.
func (r *Router) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	for _, capability := range agent.Capabilities {
		names := r.capabilityMap[capability]
		for i, n := range names {
			if n == name {
				r.capabilityMap[capability] = append(names[:i], names[i+1:]...)
				break
			}
		}
		if len(r.capabilityMap[capability]) == 0 {
			delete(r.capabilityMap, capability)
		}
	}
	delete(r.agents, name)

	r.logger.Info("unregistered agent", "agent", name)
	return nil
}

// Route sends a capability request to the best available handler.
// Builtins win over agents; agents are tried in preference order for
// maxRetries+1 passes before giving up.
func (r *Router) Route(ctx context.Context, capability string, params map[string]interface{}) (*Result, error) {
	r.maybeHealthCheck(ctx)

	if handler, ok := r.builtin(capability); ok {
		r.logger.Debug("handling locally", "capability", capability)
		start := r.now()
		data, err := handler(ctx, params)
		if err != nil {
			return nil, &CapabilityError{Capability: capability, Err: err}
		}
		return &Result{
			Data:         data,
			Agent:        BuiltinAgent,
			Builtin:      true,
			ResponseTime: r.now().Sub(start).Seconds(),
		}, nil
	}

	candidates := r.candidatesFor(capability)
	if len(candidates) == 0 {
		return nil, &CapabilityError{Capability: capability, Err: ErrNoAgents}
	}

	passes := r.maxRetries + 1
	for attempt := 0; attempt < passes; attempt++ {
		for _, agent := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.logger.Debug("routing to agent",
				"capability", capability,
				"agent", agent.Name,
				"attempt", attempt+1)

			result, err := r.callAgent(ctx, agent, capability, params)
			if err == nil {
				return result, nil
			}

			r.logger.Warn("agent call failed",
				"capability", capability,
				"agent", agent.Name,
				"error", err)
			if agent.SuccessRate() < unhealthyThreshold {
				agent.SetHealthy(false)
				r.logger.Warn("marking agent unhealthy",
					"agent", agent.Name,
					"success_rate", agent.SuccessRate())
			}
		}
	}

	return nil, &CapabilityError{
		Capability: capability,
		Attempts:   passes,
		Err:        ErrAllAgentsFailed,
	}
}

func (r *Router) builtin(capability string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.builtins[capability]
	return h, ok
}

// callAgent performs one wire call and folds the outcome into the
// agent's stats.
func (r *Router) callAgent(ctx context.Context, agent *Agent, capability string, params map[string]interface{}) (*Result, error) {
	req := NewRequest(capability, params)

	start := r.now()
	data, err := r.caller.Call(ctx, agent, req)
	elapsed := r.now().Sub(start).Seconds()

	if err != nil {
		agent.RecordResult(false, elapsed)
		return nil, err
	}

	agent.RecordResult(true, elapsed)
	return &Result{
		Data:         data,
		Agent:        agent.Name,
		ResponseTime: elapsed,
	}, nil
}

// candidatesFor returns healthy agents for a capability ordered by
// priority ascending, then success rate descending, then average
// response time ascending.
func (r *Router) candidatesFor(capability string) []*Agent {
	r.mu.Lock()
	names := append([]string(nil), r.capabilityMap[capability]...)
	agents := make([]*Agent, 0, len(names))
	for _, name := range names {
		if a, ok := r.agents[name]; ok {
			agents = append(agents, a)
		}
	}
	r.mu.Unlock()

	healthy := agents[:0]
	for _, a := range agents {
		if a.Healthy() {
			healthy = append(healthy, a)
		}
	}

	sort.SliceStable(healthy, func(i, j int) bool {
		if healthy[i].Priority != healthy[j].Priority {
			return healthy[i].Priority < healthy[j].Priority
		}
		ri, rj := healthy[i].SuccessRate(), healthy[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return healthy[i].AvgResponseTime() < healthy[j].AvgResponseTime()
	})
	return healthy
}

// maybeHealthCheck sweeps all agents if the interval has elapsed.
// Probes run concurrently; each agent's health flag follows the probe
// outcome, so a recovered agent comes back on the next sweep.
func (r *Router) maybeHealthCheck(ctx context.Context) {
	r.mu.Lock()
	if r.now().Sub(r.lastHealth) < r.healthInterval {
		r.mu.Unlock()
		return
	}
	r.lastHealth = r.now()
	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.Unlock()

	if len(agents) == 0 {
		return
	}
	r.logger.Debug("health checking agents", "count", len(agents))

	var wg sync.WaitGroup
	for _, agent := range agents {
		wg.Add(1)
		go func(a *Agent) {
			defer wg.Done()
			req := NewRequest("health_check", nil)
			_, err := r.caller.Call(ctx, a, req)
			a.SetHealthy(err == nil)
		}(agent)
	}
	wg.Wait()

	healthyCount := 0
	for _, a := range agents {
		if a.Healthy() {
			healthyCount++
		}
	}
	r.logger.Info("health check complete",
		"healthy", healthyCount,
		"total", len(agents))
}

// Capabilities lists every capability the router can serve, builtins
// and agents combined, sorted.
func (r *Router) Capabilities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.builtins)+len(r.capabilityMap))
	for c := range r.builtins {
		seen[c] = struct{}{}
	}
	for c := range r.capabilityMap {
		seen[c] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Handles reports whether any builtin or registered agent serves the
// capability, healthy or not.
func (r *Router) Handles(capability string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[capability]; ok {
		return true
	}
	return len(r.capabilityMap[capability]) > 0
}

// RouterStatus is the serializable router snapshot.
type RouterStatus struct {
	TotalAgents   int                    `json:"total_agents"`
	HealthyAgents int                    `json:"healthy_agents"`
	Capabilities  []string               `json:"capabilities"`
	Agents        map[string]AgentStatus `json:"agents"`
}

// Status snapshots every agent's health and stats.
func (r *Router) Status() RouterStatus {
	r.mu.Lock()
	agents := make(map[string]*Agent, len(r.agents))
	for name, a := range r.agents {
		agents[name] = a
	}
	r.mu.Unlock()

	status := RouterStatus{
		TotalAgents:  len(agents),
		Capabilities: r.Capabilities(),
		Agents:       make(map[string]AgentStatus, len(agents)),
	}
	for name, a := range agents {
		s := a.Status()
		if s.Healthy {
			status.HealthyAgents++
		}
		status.Agents[name] = s
	}
	return status
}
