/*
 * MIT License
 *
 * Copyright (c) 2026 meshnet authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package peer

import (
	"container/list"
	"sync"

	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/wire"
)

// SendFlag is the bitset a caller attaches to an enqueue (§4.C).
type SendFlag uint8

const (
	FlagHead SendFlag = 1 << iota
	FlagNoDupe
	FlagNoDelay
	FlagNoLimit
	FlagInOrder
)

// Frame is one outbound unit sitting in a peer's send queue: a fully
// encoded envelope-plus-body ready for the writer, tagged with the
// metadata the queue's policies need (§4.C).
type Frame struct {
	Type    wire.FrameType
	Flags   SendFlag
	Body    []byte // pre-encoded payload, envelope is written by the writer
	OrderBy int64  // comparator key, only meaningful with FlagInOrder
}

func (f *Frame) size() int {
	return len(f.Body)
}

// Comparator reports whether a orders before b under the registered
// reorder key (§4.C "in-order insertion", netcmp hook in §6).
type Comparator func(a, b *Frame) bool

// QueueConfig bounds and tunes one peer's send queue.
type QueueConfig struct {
	MaxQueue         int
	MaxBytes         int
	ReorderLookahead int
	ThrottlePercent  int
}

// Queue is a per-peer outbound FIFO: a doubly-linked list (container/list
// stands in for the source's hand-rolled list) protected by a mutex, plus
// a throttle condition variable bulk producers wait on (§4.C).
type Queue struct {
	cfg QueueConfig

	mu          sync.Mutex
	items       *list.List
	bytes       int
	dedupeCount int
	fullCount   int
	peak        int

	comparator Comparator

	throttleMu   sync.Mutex
	throttleCond *sync.Cond

	sendCount int // total user enqueue attempts, drives the flush-interval promotion
}

// NewQueue builds an empty queue bounded by cfg.
func NewQueue(cfg QueueConfig) *Queue {
	q := &Queue{cfg: cfg, items: list.New()}
	q.throttleCond = sync.NewCond(&q.throttleMu)
	return q
}

// SetComparator installs the caller-supplied ordering key used by
// in-order insertion (the "netcmp" hook, §6).
func (q *Queue) SetComparator(cmp Comparator) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.comparator = cmp
}

// Len reports the current frame count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Bytes reports the current byte sum (Invariant 5).
func (q *Queue) Bytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Enqueue inserts f per the flags it carries. It enforces the count/byte
// caps (unless FlagNoLimit, or the queue is currently empty — exactly one
// frame is always allowed through so a critical message can't deadlock
// behind a full queue), applies dedupe-head, head insertion, and bounded
// in-order insertion.
func (q *Queue) Enqueue(f *Frame) error {
	q.mu.Lock()

	if f.Flags&FlagNoDupe != 0 && q.items.Len() > 0 {
		head := q.items.Front().Value.(*Frame)
		if head.Type == f.Type {
			q.dedupeCount++
			q.mu.Unlock()
			return nil
		}
	}

	overCount := q.cfg.MaxQueue > 0 && q.items.Len() >= q.cfg.MaxQueue
	overBytes := q.cfg.MaxBytes > 0 && q.bytes+f.size() > q.cfg.MaxBytes
	if (overCount || overBytes) && f.Flags&FlagNoLimit == 0 && q.items.Len() > 0 {
		q.fullCount++
		q.mu.Unlock()
		return meshErr.New(meshErr.QueueFull, nil)
	}

	switch {
	case f.Flags&FlagHead != 0:
		q.items.PushFront(f)
	case f.Flags&FlagInOrder != 0 && q.comparator != nil:
		q.insertOrdered(f)
	default:
		q.items.PushBack(f)
	}

	q.bytes += f.size()
	if q.items.Len() > q.peak {
		q.peak = q.items.Len()
	}
	q.mu.Unlock()

	q.throttleCond.L.Lock()
	q.throttleCond.Broadcast()
	q.throttleCond.L.Unlock()
	return nil
}

// EnqueueUser enqueues a user-type frame and, every flushInterval such
// sends on this peer, promotes that very frame to no-delay so a run of
// small sends doesn't wait for the writer's idle poll before flushing
// (§4.C "Flush interval"). flushInterval <= 0 disables the promotion.
func (q *Queue) EnqueueUser(f *Frame, flushInterval int) error {
	if flushInterval > 0 {
		q.mu.Lock()
		q.sendCount++
		if q.sendCount%flushInterval == 0 {
			f.Flags |= FlagNoDelay
		}
		q.mu.Unlock()
	}
	return q.Enqueue(f)
}

// insertOrdered walks the tail backward up to ReorderLookahead steps,
// inserting at the first position where f no longer compares less than
// the current node (§4.C, §8 invariant 8). Caller holds q.mu.
func (q *Queue) insertOrdered(f *Frame) {
	lookahead := q.cfg.ReorderLookahead
	if lookahead <= 0 {
		q.items.PushBack(f)
		return
	}

	e := q.items.Back()
	steps := 0
	for e != nil && steps < lookahead {
		cur := e.Value.(*Frame)
		if !q.comparator(f, cur) {
			q.items.InsertAfter(f, e)
			return
		}
		e = e.Prev()
		steps++
	}
	if e != nil {
		q.items.InsertAfter(f, e)
		return
	}
	q.items.PushFront(f)
}

// Drain detaches the whole list under the mutex and resets counters,
// returning the batch for the writer to transmit without holding the
// lock across any socket I/O (§4.C "writer batch").
func (q *Queue) Drain() []*Frame {
	q.mu.Lock()
	n := q.items.Len()
	batch := make([]*Frame, 0, n)
	for e := q.items.Front(); e != nil; e = e.Next() {
		batch = append(batch, e.Value.(*Frame))
	}
	q.items.Init()
	q.bytes = 0
	q.mu.Unlock()

	q.throttleCond.L.Lock()
	q.throttleCond.Broadcast()
	q.throttleCond.L.Unlock()
	return batch
}

// NeedsFlush reports whether the batch just drained should trigger an
// immediate stream flush: any frame flagged no-delay, or the flush
// interval promoting this batch.
func (q *Queue) NeedsFlush(batch []*Frame) bool {
	for _, f := range batch {
		if f.Flags&FlagNoDelay != 0 {
			return true
		}
	}
	return false
}

// ThrottleWait blocks the caller until queue depth drops below
// ThrottlePercent of MaxQueue (the byte cap is not consulted; a zero
// MaxQueue or ThrottlePercent never blocks), giving heartbeats and other
// head-inserted traffic room (§4.C "throttle wait").
func (q *Queue) ThrottleWait() {
	if q.cfg.MaxQueue <= 0 || q.cfg.ThrottlePercent <= 0 {
		return
	}
	threshold := q.cfg.MaxQueue * q.cfg.ThrottlePercent / 100

	q.throttleCond.L.Lock()
	defer q.throttleCond.L.Unlock()
	for q.Len() >= threshold {
		q.throttleCond.Wait()
	}
}

// Stats is a point-in-time snapshot of queue counters for introspection
// (the "qstat" hook, §6).
type Stats struct {
	Len         int
	Bytes       int
	Peak        int
	DedupeCount int
	FullCount   int
}

func (q *Queue) Stat() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:         q.items.Len(),
		Bytes:       q.bytes,
		Peak:        q.peak,
		DedupeCount: q.dedupeCount,
		FullCount:   q.fullCount,
	}
}
