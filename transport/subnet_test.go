package transport

import (
	"testing"
	"time"
)

func TestSubnetRingRoundRobin(t *testing.T) {
	r := NewSubnetRing([]string{"", "_n2", "_n3"}, time.Minute)
	seen := []string{r.Next(), r.Next(), r.Next(), r.Next()}
	want := []string{"", "_n2", "_n3", ""}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("step %d: got %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestSubnetRingSkipsBlackedOut(t *testing.T) {
	r := NewSubnetRing([]string{"_n1", "_n2"}, time.Hour)
	r.MarkBad("_n1")

	for i := 0; i < 4; i++ {
		if got := r.Next(); got != "_n2" {
			t.Fatalf("iteration %d: got %q, want _n2 (only usable suffix)", i, got)
		}
	}
}

func TestSubnetRingDisableThenEnable(t *testing.T) {
	r := NewSubnetRing([]string{"_n1", "_n2"}, time.Minute)
	r.Disable("_n1")
	if got := r.Next(); got != "_n2" {
		t.Fatalf("got %q, want _n2 while _n1 disabled", got)
	}
	r.Enable("_n1")
	status := r.Status()
	if !status["_n1"] {
		t.Fatalf("expected _n1 usable again after Enable")
	}
}
