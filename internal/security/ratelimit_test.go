package security

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_AllowsWithinBurst(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !s.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if s.Allow("1.2.3.4") {
		t.Error("request over burst should be denied")
	}
}

func TestLimiterStore_IsolatesClients(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("1.1.1.1") {
		t.Fatal("first client should be allowed")
	}
	if !s.Allow("2.2.2.2") {
		t.Error("second client must not share the first client's budget")
	}
	if s.Size() != 2 {
		t.Errorf("expected 2 tracked clients, got %d", s.Size())
	}
}

func TestLimiterStore_EmptyIPFallsBack(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("") {
		t.Error("empty ip should still be tracked under a fallback key")
	}
	if s.Size() != 1 {
		t.Errorf("expected 1 tracked client, got %d", s.Size())
	}
}
