package alarms

import "testing"

func TestRegisterIsIdempotent(t *testing.T) {
	a := Register("test-idempotent", SeverityWarning)
	b := Register("test-idempotent", SeverityCritical)
	if a != b {
		t.Fatalf("second Register returned a different alarm")
	}
}

func TestRateWatch_RaiseAndClear(t *testing.T) {
	a := Register("test-rate", SeverityWarning)
	w := NewRateWatch(a, 10000)
	const tps = 1000

	w.Observe(0, 0, tps) // priming sample
	w.Observe(20000, tps, tps)
	if !a.Raised() {
		t.Fatalf("20k/s did not raise a 10k/s alarm")
	}

	w.Observe(20500, 2*tps, tps)
	if a.Raised() {
		t.Fatalf("500/s did not clear the alarm")
	}
}

func TestRateWatch_SubSecondWindowIgnored(t *testing.T) {
	a := Register("test-rate-window", SeverityWarning)
	w := NewRateWatch(a, 10)
	const tps = 1000

	w.Observe(0, 0, tps)
	w.Observe(1000, 100, tps) // only 0.1s elapsed; no verdict yet
	if a.Raised() {
		t.Fatalf("alarm raised inside a sub-second window")
	}
}
