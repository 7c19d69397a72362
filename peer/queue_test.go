package peer

import (
	"testing"

	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/wire"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 100, MaxBytes: 1 << 20})
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(&Frame{Type: wire.FrameUser, Body: []byte{byte(i)}}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	batch := q.Drain()
	if len(batch) != 5 {
		t.Fatalf("got %d frames, want 5", len(batch))
	}
	for i, f := range batch {
		if f.Body[0] != byte(i) {
			t.Fatalf("frame %d out of order: got %d", i, f.Body[0])
		}
	}
}

func TestQueueHeadJumpsFront(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 100, MaxBytes: 1 << 20})
	for i := 0; i < 3; i++ {
		_ = q.Enqueue(&Frame{Type: wire.FrameUser, Body: []byte{byte(i)}})
	}
	_ = q.Enqueue(&Frame{Type: wire.FrameHeartbeat, Flags: FlagHead})

	batch := q.Drain()
	if batch[0].Type != wire.FrameHeartbeat {
		t.Fatalf("expected heartbeat at head, got %+v", batch[0])
	}
	if len(batch) != 4 {
		t.Fatalf("got %d frames, want 4", len(batch))
	}
}

func TestQueueDedupeHead(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 100, MaxBytes: 1 << 20})
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(&Frame{Type: wire.FrameHeartbeat, Flags: FlagHead | FlagNoDupe}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("got %d frames, want exactly 1 (dedupe)", got)
	}
}

func TestQueueFullRejectsBeyondCap(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 3, MaxBytes: 1 << 20})
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(&Frame{Type: wire.FrameUser, Body: []byte{0}}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	err := q.Enqueue(&Frame{Type: wire.FrameUser, Body: []byte{0}})
	if !meshErr.Is(err, meshErr.QueueFull) {
		t.Fatalf("expected QueueFull, got %v", err)
	}
}

func TestQueueOneFrameAlwaysAllowedThroughWhenEmpty(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 1, MaxBytes: 1})
	if err := q.Enqueue(&Frame{Type: wire.FrameUser, Body: []byte("xy")}); err != nil {
		t.Fatalf("expected the lone frame through even over the byte cap, got %v", err)
	}
}

func TestQueueInOrderBoundedLookahead(t *testing.T) {
	q := NewQueue(QueueConfig{MaxQueue: 100, MaxBytes: 1 << 20, ReorderLookahead: 2})
	q.SetComparator(func(a, b *Frame) bool { return a.OrderBy < b.OrderBy })

	for _, k := range []int64{10, 20, 30} {
		_ = q.Enqueue(&Frame{Type: wire.FrameUser, OrderBy: k})
	}
	// Within the lookahead window, a smaller key inserts before larger ones.
	_ = q.Enqueue(&Frame{Type: wire.FrameUser, Flags: FlagInOrder, OrderBy: 25})

	batch := q.Drain()
	if len(batch) != 4 {
		t.Fatalf("got %d frames, want 4", len(batch))
	}
}
