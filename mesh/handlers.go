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

package mesh

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/metrics"
)

type handlerEntry struct {
	name    string
	fn      HandlerFunc
	calls   atomic.Uint64
	nanos   atomic.Uint64
}

// handlerTable is sized by config.MeshConfig.MaxUserType at construction
// (§9 Open Question 2: MAX_USER_TYPE made runtime-configurable).
type handlerTable struct {
	max     int
	metrics *metrics.Collectors

	mu      sync.RWMutex
	entries map[int32]*handlerEntry
}

func newHandlerTable(max int) *handlerTable {
	return &handlerTable{max: max, entries: make(map[int32]*handlerEntry)}
}

func (t *handlerTable) register(userType int32, name string, fn HandlerFunc) error {
	if userType < 0 || int(userType) >= t.max {
		return meshErr.New(meshErr.ConfigInvalid, fmt.Errorf("user type %d out of range [0,%d)", userType, t.max))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[userType] = &handlerEntry{name: name, fn: fn}
	return nil
}

func (t *handlerTable) lookup(userType int32) (*handlerEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[userType]
	return e, ok
}

// invoke runs the handler for userType if one is registered, tracking
// call count and cumulative duration (§4.E "Update handler stats").
func (t *handlerTable) invoke(from string, userType int32, body []byte, ack *AckState) (outRC int32, handled bool) {
	e, ok := t.lookup(userType)
	if !ok {
		return 0, false
	}
	start := time.Now()
	outRC = e.fn(from, userType, body, ack)
	elapsed := time.Since(start)
	e.calls.Add(1)
	e.nanos.Add(uint64(elapsed.Nanoseconds()))
	if t.metrics != nil {
		t.metrics.ObserveHandler(userType, elapsed.Seconds())
	}
	return outRC, true
}

// HandlerStat is one registered handler's introspection snapshot.
type HandlerStat struct {
	UserType int32
	Name     string
	Calls    uint64
	Nanos    uint64
}

func (t *handlerTable) stats() []HandlerStat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HandlerStat, 0, len(t.entries))
	for ut, e := range t.entries {
		out = append(out, HandlerStat{UserType: ut, Name: e.name, Calls: e.calls.Load(), Nanos: e.nanos.Load()})
	}
	return out
}

// AckState is the handle a handler uses to reply to a waitforack sender
// (§4.E "the reader has already built an ack-state handle"). A handler
// that never calls Reply implicitly acks with its own return value.
type AckState struct {
	seqnum  int32
	replied atomic.Bool
	replyFn func(seqnum int32, outRC int32, payload []byte)
}

// Reply sends outRC (and optional payload, capped at ack.MaxPayload) back
// to the original sender. A payload over the cap is rejected by the ack
// encoder and no ack is sent. Calling Reply more than once is a no-op.
func (a *AckState) Reply(outRC int32, payload []byte) {
	if a == nil || a.replyFn == nil {
		return
	}
	if a.replied.Swap(true) {
		return
	}
	a.replyFn(a.seqnum, outRC, payload)
}
