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

// Package ack implements the synchronous request/reply primitive layered
// on top of the fire-and-forget send path (§4.H): a per-peer wait list of
// outstanding sequence numbers, each with a condition variable a caller
// blocks on until the peer's reader thread delivers the matching ack.
package ack

import (
	"sync"
	"time"

	meshErr "github.com/nabbar/meshnet/errors"
)

// MaxPayload is the hard cap on an ack's result payload (§4.H).
const MaxPayload = 1024

type waiter struct {
	done    bool
	outRC   int32
	payload []byte
}

// Registry is one peer's wait list of outstanding seqnums.
type Registry struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiters map[int32]*waiter
}

// NewRegistry returns an empty wait list.
func NewRegistry() *Registry {
	r := &Registry{waiters: make(map[int32]*waiter)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Register appends a {seqnum, ack=false} record before the caller writes
// the user message with waitforack=1 (§4.H). The caller must Register
// before the frame can possibly be written, so the reader can never
// observe the ack before the waiter exists.
func (r *Registry) Register(seqnum int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters[seqnum] = &waiter{}
}

// Wait blocks up to timeout for Deliver(seqnum, ...) to fire, returning
// the handler's outrc (and payload, if any) or a Timeout error. On
// timeout the waiter record is removed so a late, straggling ack is
// silently dropped.
func (r *Registry) Wait(seqnum int32, timeout time.Duration) (int32, []byte, error) {
	deadline := time.Now().Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiters[seqnum]
	if !ok {
		return 0, nil, meshErr.New(meshErr.Internal, nil)
	}

	for !w.done {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			delete(r.waiters, seqnum)
			return 0, nil, meshErr.New(meshErr.Timeout, nil)
		}
		waitWithTimeout(r.cond, remaining)
	}

	delete(r.waiters, seqnum)
	return w.outRC, w.payload, nil
}

// Deliver is called by the peer's reader on an Ack/AckWithPayload frame.
// A negative outRC is remapped to InvalidAckRC-carrying semantics by the
// caller of Wait, not here: the reader only records what the wire said.
func (r *Registry) Deliver(seqnum int32, outRC int32, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.waiters[seqnum]
	if !ok {
		return // late or unknown ack, drop
	}
	w.done = true
	w.outRC = outRC
	w.payload = payload
	r.cond.Broadcast()
}

// Cancel removes a waiter without delivering, used when the enqueue of
// the user message itself fails after Register.
func (r *Registry) Cancel(seqnum int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, seqnum)
}

// waitWithTimeout wakes r's condvar after d even absent a Broadcast, by
// racing a timer goroutine against the blocking Cond.Wait. sync.Cond has
// no native timed wait; this is the idiomatic substitute.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
