package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockGenerator struct {
	calls []time.Time
	err   error
}

func (m *mockGenerator) Run(_ context.Context, now time.Time, _ bool) error {
	m.calls = append(m.calls, now)
	return m.err
}

type mockDeliverer struct {
	dates []string
	err   error
}

func (m *mockDeliverer) Send(_ context.Context, date string) (bool, error) {
	m.dates = append(m.dates, date)
	if m.err != nil {
		return false, m.err
	}
	return true, nil
}

// schedClock drives the Daily loop without real sleeping. After
// cancelAfter sleeps it cancels the context to stop the loop.
type schedClock struct {
	now         time.Time
	sleeps      []time.Duration
	cancel      context.CancelFunc
	cancelAfter int
}

func (c *schedClock) Now() time.Time { return c.now }

func (c *schedClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if len(c.sleeps) >= c.cancelAfter {
		c.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

func newTestDaily(t *testing.T, clock *schedClock, gen *mockGenerator, del *mockDeliverer) *Daily {
	t.Helper()
	d, err := NewDaily(gen, del, "06:00", "08:00", nil, WithClock(clock.Now, clock.Sleep))
	if err != nil {
		t.Fatalf("NewDaily: %v", err)
	}
	return d
}

// --- Tests ---

func TestDaily_RunsStepsAtConfiguredTimes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &schedClock{
		now:         time.Date(2025, 9, 1, 5, 0, 0, 0, time.UTC),
		cancel:      cancel,
		cancelAfter: 3,
	}
	gen := &mockGenerator{}
	del := &mockDeliverer{}

	d := newTestDaily(t, clock, gen, del)
	err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	// 05:00 start: one hour to generation, two hours to delivery, then the
	// sleep to midnight stops the loop.
	wantSleeps := []time.Duration{time.Hour, 2 * time.Hour, 16 * time.Hour}
	if len(clock.sleeps) != len(wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, wantSleeps)
	}
	for i, want := range wantSleeps {
		if clock.sleeps[i] != want {
			t.Errorf("sleep %d = %v, want %v", i, clock.sleeps[i], want)
		}
	}

	if len(gen.calls) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.calls))
	}
	if got := gen.calls[0]; got.Hour() != 6 {
		t.Errorf("generation ran at %v, want 06:00", got)
	}

	if len(del.dates) != 1 || del.dates[0] != "2025-09-01" {
		t.Errorf("delivery dates = %v, want [2025-09-01]", del.dates)
	}
}

func TestDaily_LateStartRunsPastDueStepsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &schedClock{
		now:         time.Date(2025, 9, 1, 9, 30, 0, 0, time.UTC),
		cancel:      cancel,
		cancelAfter: 1,
	}
	gen := &mockGenerator{}
	del := &mockDeliverer{}

	d := newTestDaily(t, clock, gen, del)
	_ = d.Run(ctx)

	// Both times already passed: no waiting before either step.
	if len(gen.calls) != 1 || len(del.dates) != 1 {
		t.Fatalf("generator calls = %d, deliveries = %d, want 1 each", len(gen.calls), len(del.dates))
	}
	// The single recorded sleep is the one to midnight.
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 14*time.Hour+30*time.Minute {
		t.Errorf("sleeps = %v, want [14h30m]", clock.sleeps)
	}
}

func TestDaily_StepFailureDoesNotStopTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := &schedClock{
		now:         time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC),
		cancel:      cancel,
		cancelAfter: 1,
	}
	gen := &mockGenerator{err: errors.New("model down")}
	del := &mockDeliverer{}

	d := newTestDaily(t, clock, gen, del)
	_ = d.Run(ctx)

	// Generation failed, but delivery still ran.
	if len(del.dates) != 1 {
		t.Fatalf("delivery did not run after a generation failure")
	}
}

func TestNewDaily_RejectsMalformedTimes(t *testing.T) {
	for _, bad := range []string{"6:00", "24:00", "06:60", "06-00", "0600", "06:00:00"} {
		if _, err := NewDaily(&mockGenerator{}, &mockDeliverer{}, bad, "08:00", nil); err == nil {
			t.Errorf("NewDaily accepted generate time %q", bad)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := parseTimeOfDay("06:05")
	if err != nil || h != 6 || m != 5 {
		t.Fatalf("parseTimeOfDay(06:05) = %d, %d, %v", h, m, err)
	}
	if _, _, err := parseTimeOfDay("23:59"); err != nil {
		t.Errorf("23:59 should parse: %v", err)
	}
	if _, _, err := parseTimeOfDay(""); err == nil {
		t.Error("empty string should fail")
	}
}
