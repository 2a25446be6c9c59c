package circuitbreaker

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(cooldown time.Duration) *Breaker {
	return New(&Config{
		FailureThreshold: 3,
		Cooldown:         cooldown,
		Logger:           zap.NewNop(),
	})
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newTestBreaker(time.Hour)

	for i := 0; i < 2; i++ {
		if !b.Allow("amazon") {
			t.Fatalf("call %d rejected below threshold", i)
		}
		b.Failure("amazon")
	}
	if b.Open("amazon") {
		t.Fatal("open after 2 failures, threshold is 3")
	}

	b.Failure("amazon")
	if !b.Open("amazon") {
		t.Fatal("not open after 3 failures")
	}
	if b.Allow("amazon") {
		t.Error("open breaker must reject")
	}
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b := newTestBreaker(time.Hour)

	for i := 0; i < 3; i++ {
		b.Failure("ebay")
	}

	if !b.Open("ebay") {
		t.Fatal("ebay not open")
	}
	if !b.Allow("amazon") {
		t.Error("amazon must be unaffected by ebay failures")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(time.Hour)

	b.Failure("amazon")
	b.Failure("amazon")
	b.Success("amazon")
	b.Failure("amazon")
	b.Failure("amazon")

	if b.Open("amazon") {
		t.Error("success must reset the consecutive failure count")
	}
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Failure("amazon")
	}
	if b.Allow("amazon") {
		t.Fatal("must reject during cooldown")
	}

	time.Sleep(20 * time.Millisecond)

	if !b.Allow("amazon") {
		t.Fatal("cooldown elapsed, probe must be admitted")
	}
	if b.Allow("amazon") {
		t.Error("only one probe may be in flight")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Failure("amazon")
	}
	time.Sleep(20 * time.Millisecond)

	if !b.Allow("amazon") {
		t.Fatal("probe not admitted")
	}
	b.Success("amazon")

	if b.Open("amazon") {
		t.Error("probe success must close the breaker")
	}
	if !b.Allow("amazon") {
		t.Error("closed breaker must allow calls")
	}
}

func TestBreakerProbeFailureRestartsCooldown(t *testing.T) {
	b := newTestBreaker(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Failure("amazon")
	}
	time.Sleep(60 * time.Millisecond)

	if !b.Allow("amazon") {
		t.Fatal("probe not admitted")
	}
	b.Failure("amazon")

	if !b.Open("amazon") {
		t.Error("probe failure must keep the breaker open")
	}
	if b.Allow("amazon") {
		t.Error("cooldown restarted, calls must be rejected again")
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New(&Config{Logger: zap.NewNop()})

	if b.threshold != DefaultFailureThreshold {
		t.Errorf("threshold = %d, want %d", b.threshold, DefaultFailureThreshold)
	}
	if b.cooldown != DefaultCooldown {
		t.Errorf("cooldown = %v, want %v", b.cooldown, DefaultCooldown)
	}
}
