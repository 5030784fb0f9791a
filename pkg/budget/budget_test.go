package budget

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func testLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	l, err := NewLedger(&MemoryStore{}, opts...)
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	return l
}

func TestCanAffordDenies(t *testing.T) {
	l := testLedger(t, WithLimits(map[string]map[Period]float64{
		"openai": {Daily: 1.00},
	}))
	l.RecordUsage("openai", 0.95)

	ok, reason := l.CanAfford("openai", 0.10)
	if ok {
		t.Fatal("Expected denial when usage + estimate exceeds limit")
	}

	want := "openai daily budget exceeded (0.9500 + 0.1000 > 1.00)"
	if reason != want {
		t.Errorf("Unexpected reason:\n got %q\nwant %q", reason, want)
	}
}

func TestCanAffordAllows(t *testing.T) {
	l := testLedger(t)

	ok, reason := l.CanAfford("openai", 0.10)
	if !ok {
		t.Fatalf("Expected fresh ledger to afford small cost, got %q", reason)
	}
	if reason != "OK" {
		t.Errorf("Expected reason OK, got %q", reason)
	}
}

func TestRecordUsageDebitsAllPeriods(t *testing.T) {
	l := testLedger(t)

	for i := 0; i < 3; i++ {
		l.RecordUsage("openai", 0.30)
	}

	for _, p := range Periods {
		got := l.Usage("openai", p)
		if math.Abs(got-0.90) > 1e-9 {
			t.Errorf("Expected %s usage 0.90, got %v", p, got)
		}
	}
}

func TestReserveHoldBlocksConcurrentOverspend(t *testing.T) {
	l := testLedger(t, WithLimits(map[string]map[Period]float64{
		"openai": {Daily: 1.00},
	}))

	// First reservation takes most of the budget.
	res, err := l.Reserve("openai", 0.80)
	if err != nil {
		t.Fatalf("First reserve failed: %v", err)
	}

	// A second request must see the hold and be denied.
	if _, err := l.Reserve("openai", 0.80); err == nil {
		t.Fatal("Expected second reserve to be denied while hold outstanding")
	} else if !errors.Is(err, ErrExceeded) {
		t.Errorf("Expected ErrExceeded, got %v", err)
	}

	// Releasing frees the budget again.
	res.Release()
	if _, err := l.Reserve("openai", 0.80); err != nil {
		t.Fatalf("Expected reserve to succeed after release: %v", err)
	}
}

func TestReleaseRecordsNothing(t *testing.T) {
	l := testLedger(t)

	res, err := l.Reserve("openai", 0.25)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	res.Release()
	res.Release() // idempotent

	if got := l.Usage("openai", Daily); got != 0 {
		t.Errorf("Expected no usage after release, got %v", got)
	}
}

func TestCommitReplacesHoldWithActual(t *testing.T) {
	l := testLedger(t)

	res, err := l.Reserve("openai", 0.50)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	res.Commit(0.12)
	res.Commit(0.12) // idempotent

	if got := l.Usage("openai", Daily); math.Abs(got-0.12) > 1e-9 {
		t.Errorf("Expected usage 0.12 after commit, got %v", got)
	}

	// The hold is gone: the full remaining budget is reservable.
	if _, err := l.Reserve("openai", 0.80); err != nil {
		t.Errorf("Expected hold to be released by commit: %v", err)
	}
}

func TestConcurrentReservationsNeverOverspend(t *testing.T) {
	l := testLedger(t, WithLimits(map[string]map[Period]float64{
		"openai": {Daily: 1.00},
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Reserve("openai", 0.10)
			if err != nil {
				return
			}
			res.Commit(0.10)
		}()
	}
	wg.Wait()

	if got := l.Usage("openai", Daily); got > 1.00+1e-9 {
		t.Errorf("Concurrent commits overspent the daily limit: %v", got)
	}
}

func TestPeriodResetIsLazyAndIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	l := testLedger(t, WithClock(clock))
	l.RecordUsage("openai", 0.40)

	// Same day: nothing resets.
	l.ResetPeriods()
	l.ResetPeriods()
	if got := l.Usage("openai", Daily); math.Abs(got-0.40) > 1e-9 {
		t.Fatalf("Expected usage to survive same-day resets, got %v", got)
	}

	// Next day: daily resets, weekly and monthly survive.
	now = now.Add(24 * time.Hour)
	if got := l.Usage("openai", Daily); got != 0 {
		t.Errorf("Expected daily usage reset after rollover, got %v", got)
	}
	if got := l.Usage("openai", Weekly); math.Abs(got-0.40) > 1e-9 {
		t.Errorf("Expected weekly usage to survive daily rollover, got %v", got)
	}

	// Next ISO week.
	now = now.AddDate(0, 0, 7)
	if got := l.Usage("openai", Weekly); got != 0 {
		t.Errorf("Expected weekly usage reset after week rollover, got %v", got)
	}
	if got := l.Usage("openai", Monthly); math.Abs(got-0.40) > 1e-9 {
		t.Errorf("Expected monthly usage to survive week rollover, got %v", got)
	}

	// Next month.
	now = now.AddDate(0, 1, 0)
	if got := l.Usage("openai", Monthly); got != 0 {
		t.Errorf("Expected monthly usage reset after month rollover, got %v", got)
	}
}

func TestPersistedStateRoundTrips(t *testing.T) {
	store := &MemoryStore{}

	l, err := NewLedger(store)
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	l.RecordUsage("openai", 0.123456)
	l.SetLimit("openai", Daily, 2.50)

	// Check wire shape.
	data, _ := store.Load()
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("Persisted state is not valid JSON: %v", err)
	}
	if st.LastReset[Daily] == "" || st.LastReset[Weekly] == "" || st.LastReset[Monthly] == "" {
		t.Error("Expected last_reset markers for all periods")
	}

	// A new ledger over the same store sees the prior usage.
	l2, err := NewLedger(store)
	if err != nil {
		t.Fatalf("NewLedger reload failed: %v", err)
	}
	if got := l2.Usage("openai", Daily); math.Abs(got-0.123456) > 1e-9 {
		t.Errorf("Expected reloaded usage 0.123456, got %v", got)
	}
	status := l2.Status()
	if got := status["openai"].Limits[Daily]; got != 2.50 {
		t.Errorf("Expected reloaded daily limit 2.50, got %v", got)
	}
}

func TestCorruptStateStartsFresh(t *testing.T) {
	store := &MemoryStore{}
	store.Save([]byte("{not json"))

	l, err := NewLedger(store)
	if err != nil {
		t.Fatalf("Expected corrupt state to degrade, got error: %v", err)
	}
	if got := l.Usage("openai", Daily); got != 0 {
		t.Errorf("Expected fresh ledger, got usage %v", got)
	}
}

func TestStatusRemaining(t *testing.T) {
	l := testLedger(t, WithLimits(map[string]map[Period]float64{
		"elevenlabs": {Daily: 0.50, Weekly: 3.00, Monthly: 10.00},
	}))
	l.RecordUsage("elevenlabs", 0.20)

	status := l.Status()
	st, ok := status["elevenlabs"]
	if !ok {
		t.Fatal("Expected elevenlabs in status")
	}
	if math.Abs(st.Remaining[Daily]-0.30) > 1e-9 {
		t.Errorf("Expected daily remaining 0.30, got %v", st.Remaining[Daily])
	}
	if math.Abs(st.Remaining[Monthly]-9.80) > 1e-9 {
		t.Errorf("Expected monthly remaining 9.80, got %v", st.Remaining[Monthly])
	}
}

func TestUnlimitedServiceAlwaysAffords(t *testing.T) {
	l := testLedger(t)

	// ollama has no configured limits: always affordable.
	if ok, _ := l.CanAfford("ollama", 100); !ok {
		t.Error("Expected service without limits to always afford")
	}
}
