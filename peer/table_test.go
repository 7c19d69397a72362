package peer

import (
	"testing"
	"time"
)

func TestTableInsertIdempotent(t *testing.T) {
	tbl := NewTable(nil, QueueConfig{MaxQueue: 10})

	p1, inserted1 := tbl.Insert("Replica-A", 4700)
	if !inserted1 {
		t.Fatalf("expected first insert to report inserted")
	}
	p2, inserted2 := tbl.Insert("replica-a", 4701)
	if inserted2 {
		t.Fatalf("expected second insert of same name (different case) to be a no-op")
	}
	if p1 != p2 {
		t.Fatalf("expected the same peer instance back")
	}
}

func TestTableLookupCaseFold(t *testing.T) {
	tbl := NewTable(nil, QueueConfig{MaxQueue: 10})
	tbl.Insert("Replica-B", 4700)

	if _, ok := tbl.Lookup("REPLICA-B"); !ok {
		t.Fatalf("expected case-insensitive lookup to find the peer")
	}
}

func TestTableSanctionedIndependentOfConnectivity(t *testing.T) {
	tbl := NewTable(nil, QueueConfig{MaxQueue: 10})
	tbl.Sanction("replica-c")

	if !tbl.IsSanctioned("replica-c") {
		t.Fatalf("expected replica-c to be sanctioned")
	}
	if _, ok := tbl.Lookup("replica-c"); ok {
		t.Fatalf("sanctioning must not implicitly create a peer table entry")
	}
}

func TestTableRemoveIsDeferred(t *testing.T) {
	tbl := NewTable(nil, QueueConfig{MaxQueue: 10})
	p, _ := tbl.Insert("replica-d", 4700)
	p.WorkerAdd(1)

	tbl.Remove("replica-d")

	if _, ok := tbl.Lookup("replica-d"); ok {
		t.Fatalf("expected removed peer to be gone from lookup immediately")
	}
	if p.ReallyClosed() {
		t.Fatalf("expected ReallyClosed to stay false until worker threads join")
	}

	p.WorkerDone()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.ReallyClosed() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected ReallyClosed to become true after worker threads joined")
}
