// Package budget tracks per-service API spend against daily, weekly and
// monthly limits, persisting the ledger after every mutation.
//
// The ledger is the one piece of mutable state shared across concurrent
// requests; a single mutex guards the whole check-then-commit sequence so
// two requests can never both pass the affordability gate against the same
// remaining balance. Callers that are about to spend money take a
// Reservation, then either Commit the actual cost or Release it.
//
// Example usage:
//
//	ledger, _ := budget.NewLedger(budget.NewJSONStore("budget_data.json"))
//	defer ledger.Close()
//
//	res, err := ledger.Reserve("openai", estimate)
//	if err != nil {
//	    // budget denied, skip the call entirely
//	}
//	// ... perform the provider call ...
//	res.Commit(actualCost) // or res.Release() on failure
package budget

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Period is a budget accounting window.
type Period string

// The three period granularities, each independently tracked and reset.
const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// Periods lists all period granularities in reset order.
var Periods = []Period{Daily, Weekly, Monthly}

// state is the persisted wire shape. It round-trips exactly.
type state struct {
	Usage     map[string]map[Period]float64 `json:"usage"`
	Limits    map[string]map[Period]float64 `json:"limits"`
	LastReset map[Period]string             `json:"last_reset"`
}

// Ledger tracks spend per service and period.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger
	now    func() time.Time

	usage     map[string]map[Period]float64
	limits    map[string]map[Period]float64
	lastReset map[Period]string

	// holds is outstanding reserved-but-uncommitted spend per service.
	holds map[string]float64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLimits sets budget limits, overriding any persisted ones.
func WithLimits(limits map[string]map[Period]float64) Option {
	return func(l *Ledger) {
		for service, periods := range limits {
			if l.limits[service] == nil {
				l.limits[service] = make(map[Period]float64)
			}
			for period, amount := range periods {
				l.limits[service][period] = amount
			}
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger.With("component", "budget.ledger")
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// DefaultLimits returns the stock per-service limits.
func DefaultLimits() map[string]map[Period]float64 {
	return map[string]map[Period]float64{
		"openai": {
			Daily: 1.00, Weekly: 6.00, Monthly: 25.00,
		},
		"claude": {
			Daily: 0.75, Weekly: 4.50, Monthly: 15.00,
		},
		"elevenlabs": {
			Daily: 0.50, Weekly: 3.00, Monthly: 10.00,
		},
	}
}

// NewLedger creates a Ledger backed by store. Prior persisted state is
// loaded if present; a missing or corrupt file means "no prior usage",
// never a fatal error.
func NewLedger(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("budget: store is required")
	}

	l := &Ledger{
		store:     store,
		logger:    slog.Default().With("component", "budget.ledger"),
		now:       time.Now,
		usage:     make(map[string]map[Period]float64),
		limits:    DefaultLimits(),
		lastReset: make(map[Period]string),
		holds:     make(map[string]float64),
	}

	l.load()

	for _, opt := range opts {
		opt(l)
	}

	// Stamp any missing reset markers so the first rollover is detected
	// relative to process start, not the zero value.
	for _, p := range Periods {
		if l.lastReset[p] == "" {
			l.lastReset[p] = l.periodKey(p, l.now())
		}
	}

	return l, nil
}

// load restores persisted state. Errors degrade to a fresh ledger.
func (l *Ledger) load() {
	data, err := l.store.Load()
	if err != nil {
		l.logger.Warn("failed to load budget state, starting fresh", "error", err)
		return
	}
	if len(data) == 0 {
		return
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		l.logger.Warn("corrupt budget state, starting fresh", "error", err)
		return
	}

	if st.Usage != nil {
		l.usage = st.Usage
	}
	if st.Limits != nil {
		l.limits = st.Limits
	}
	if st.LastReset != nil {
		l.lastReset = st.LastReset
	}
}

// persistLocked writes the ledger to the store. I/O failure is logged and
// swallowed; in-memory state stays authoritative for the process lifetime.
// Must be called with the lock held.
func (l *Ledger) persistLocked() {
	data, err := json.MarshalIndent(state{
		Usage:     l.usage,
		Limits:    l.limits,
		LastReset: l.lastReset,
	}, "", "  ")
	if err != nil {
		l.logger.Error("failed to encode budget state", "error", err)
		return
	}
	if err := l.store.Save(data); err != nil {
		l.logger.Warn("failed to persist budget state", "error", err)
	}
}

// periodKey derives the rollover marker for a period at time t.
func (l *Ledger) periodKey(p Period, t time.Time) string {
	switch p {
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// resetPeriodsLocked zeroes usage for any period whose key has rolled over.
// Runs before every read or write; calling it twice within the same period
// performs no additional mutation the second time.
func (l *Ledger) resetPeriodsLocked() {
	now := l.now()
	for _, p := range Periods {
		key := l.periodKey(p, now)
		if l.lastReset[p] == key {
			continue
		}
		for service := range l.usage {
			if _, ok := l.usage[service][p]; ok {
				l.usage[service][p] = 0
			}
		}
		l.lastReset[p] = key
		l.logger.Info("budget period reset", "period", p, "key", key)
	}
}

// ResetPeriods applies any pending period rollovers immediately.
// Reads and writes do this implicitly; this is exposed for callers that
// want fresh figures without mutating usage.
func (l *Ledger) ResetPeriods() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetPeriodsLocked()
}

// ensureServiceLocked initializes the usage buckets for a service.
func (l *Ledger) ensureServiceLocked(service string) {
	if l.usage[service] == nil {
		l.usage[service] = map[Period]float64{Daily: 0, Weekly: 0, Monthly: 0}
	}
}

// checkLocked returns a denial for the first configured period that the
// estimated cost would overrun, or nil. Outstanding holds count as spend.
func (l *Ledger) checkLocked(service string, estimated float64) *Error {
	l.resetPeriodsLocked()
	l.ensureServiceLocked(service)

	usage := l.usage[service]
	limits := l.limits[service]
	hold := l.holds[service]

	for _, p := range Periods {
		limit, ok := limits[p]
		if !ok {
			continue
		}
		current := usage[p] + hold
		if current+estimated > limit {
			return &Error{
				Service:   service,
				Period:    p,
				Usage:     current,
				Estimated: estimated,
				Limit:     limit,
			}
		}
	}
	return nil
}

// CanAfford reports whether the estimated cost fits every configured
// period for the service. The returned reason is "OK" on success and the
// denial detail otherwise. No state is mutated beyond pending resets.
func (l *Ledger) CanAfford(service string, estimated float64) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if denial := l.checkLocked(service, estimated); denial != nil {
		return false, denial.Reason()
	}
	return true, "OK"
}

// Reservation is a held slice of budget awaiting the outcome of a call.
// Exactly one of Commit or Release should be called; extra calls are no-ops.
type Reservation struct {
	ledger  *Ledger
	service string
	amount  float64
	settled bool
}

// Reserve atomically checks affordability and holds the estimated amount
// so concurrent requests cannot jointly overspend a limit. On denial it
// returns a *budget.Error (errors.Is ErrExceeded) and holds nothing.
func (l *Ledger) Reserve(service string, estimated float64) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if denial := l.checkLocked(service, estimated); denial != nil {
		return nil, denial
	}

	l.holds[service] += estimated
	return &Reservation{ledger: l, service: service, amount: estimated}, nil
}

// Commit replaces the hold with the actual cost, debiting every period
// bucket for the service and persisting the ledger.
func (r *Reservation) Commit(actual float64) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return
	}
	r.settled = true

	l.holds[r.service] -= r.amount
	l.recordLocked(r.service, actual)
}

// Release drops the hold without recording any cost. Failed or aborted
// calls are free by design.
func (r *Reservation) Release() {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return
	}
	r.settled = true

	l.holds[r.service] -= r.amount
}

// recordLocked debits all periods and persists. Must hold the lock.
func (l *Ledger) recordLocked(service string, actual float64) {
	l.resetPeriodsLocked()
	l.ensureServiceLocked(service)

	actual = Round(actual)
	for _, p := range Periods {
		l.usage[service][p] = Round(l.usage[service][p] + actual)
	}
	l.persistLocked()

	l.logger.Info("recorded usage", "service", service, "cost", actual)
}

// RecordUsage adds the actual cost to every period bucket for the service
// and persists. Callers holding a Reservation should use Commit instead.
func (l *Ledger) RecordUsage(service string, actual float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(service, actual)
}

// SetLimit sets the budget limit for a service and period and persists.
func (l *Ledger) SetLimit(service string, period Period, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limits[service] == nil {
		l.limits[service] = make(map[Period]float64)
	}
	l.limits[service][period] = amount
	l.persistLocked()

	l.logger.Info("budget limit set", "service", service, "period", period, "amount", amount)
}

// ServiceStatus summarizes a service's budget position.
type ServiceStatus struct {
	Usage     map[Period]float64 `json:"usage"`
	Limits    map[Period]float64 `json:"limits"`
	Remaining map[Period]float64 `json:"remaining"`
}

// Status returns the budget position of every configured service.
func (l *Ledger) Status() map[string]ServiceStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetPeriodsLocked()

	status := make(map[string]ServiceStatus, len(l.limits))
	for service, limits := range l.limits {
		usage := l.usage[service]
		st := ServiceStatus{
			Usage:     make(map[Period]float64, len(Periods)),
			Limits:    make(map[Period]float64, len(limits)),
			Remaining: make(map[Period]float64, len(limits)),
		}
		for _, p := range Periods {
			st.Usage[p] = usage[p]
			if limit, ok := limits[p]; ok {
				st.Limits[p] = limit
				remaining := limit - usage[p]
				if remaining < 0 {
					remaining = 0
				}
				st.Remaining[p] = remaining
			}
		}
		status[service] = st
	}
	return status
}

// Usage returns the current spend for one service and period.
func (l *Ledger) Usage(service string, period Period) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetPeriodsLocked()
	return l.usage[service][period]
}

// Close flushes the ledger and releases the store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	l.persistLocked()
	l.mu.Unlock()
	return l.store.Close()
}
