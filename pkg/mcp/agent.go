package mcp

import (
	"sync"
)

// statsWindow bounds the rolling response-time sample.
const statsWindow = 10

// Agent is a registered remote capability provider with its rolling
// performance stats.
type Agent struct {
	Name         string
	Endpoint     string
	Capabilities []string
	AuthToken    string
	Priority     int

	mu            sync.Mutex
	healthy       bool
	responseTimes []float64
	totalRequests int
	successful    int
}

// NewAgent creates an agent that starts healthy with a perfect record.
func NewAgent(name, endpoint string, capabilities []string, authToken string, priority int) *Agent {
	return &Agent{
		Name:         name,
		Endpoint:     endpoint,
		Capabilities: append([]string(nil), capabilities...),
		AuthToken:    authToken,
		Priority:     priority,
		healthy:      true,
	}
}

// RecordResult folds one call outcome into the rolling stats.
func (a *Agent) RecordResult(success bool, responseTime float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRequests++
	if success {
		a.successful++
	}

	a.responseTimes = append(a.responseTimes, responseTime)
	if len(a.responseTimes) > statsWindow {
		a.responseTimes = a.responseTimes[1:]
	}
}

// SuccessRate is successful/total, or 1.0 before any requests.
func (a *Agent) SuccessRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.totalRequests == 0 {
		return 1.0
	}
	return float64(a.successful) / float64(a.totalRequests)
}

// AvgResponseTime averages the rolling sample, 0 when empty.
func (a *Agent) AvgResponseTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.responseTimes) == 0 {
		return 0
	}
	var sum float64
	for _, rt := range a.responseTimes {
		sum += rt
	}
	return sum / float64(len(a.responseTimes))
}

// Healthy reports the current health flag.
func (a *Agent) Healthy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.healthy
}

// SetHealthy overwrites the health flag.
func (a *Agent) SetHealthy(healthy bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthy = healthy
}

// TotalRequests reports the lifetime request count.
func (a *Agent) TotalRequests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalRequests
}

// AgentStatus is the serializable status snapshot of one agent.
type AgentStatus struct {
	Healthy         bool     `json:"healthy"`
	SuccessRate     float64  `json:"success_rate"`
	AvgResponseTime float64  `json:"avg_response_time"`
	Capabilities    []string `json:"capabilities"`
	TotalRequests   int      `json:"total_requests"`
}

// Status captures a consistent snapshot of the agent's stats.
func (a *Agent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	var avg float64
	if len(a.responseTimes) > 0 {
		var sum float64
		for _, rt := range a.responseTimes {
			sum += rt
		}
		avg = sum / float64(len(a.responseTimes))
	}

	rate := 1.0
	if a.totalRequests > 0 {
		rate = float64(a.successful) / float64(a.totalRequests)
	}

	return AgentStatus{
		Healthy:         a.healthy,
		SuccessRate:     rate,
		AvgResponseTime: avg,
		Capabilities:    append([]string(nil), a.Capabilities...),
		TotalRequests:   a.totalRequests,
	}
}
