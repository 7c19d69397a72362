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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nabbar/meshnet/logger"
)

// cacheEntry is the single-slot "last successful lookup" cache the
// source keeps beside its O(n) linked-list scan (§4.B). A Go map makes
// the scan itself O(1) already; the cache is kept anyway since it is
// part of the observable design this package is grounded on, and it
// still saves a map lookup + case-fold on repeat sends to the same peer.
type cacheEntry struct {
	name string
	peer *Peer
}

// Table is the mesh's membership: every known peer keyed by canonical
// (case-folded) hostname, plus the separate sanctioned set (§4.B).
type Table struct {
	log logger.Logger

	mu    sync.RWMutex
	peers map[string]*Peer
	cache atomic.Pointer[cacheEntry]

	sanctionedMu sync.Mutex
	sanctioned   map[string]struct{}

	qcfg QueueConfig
}

// NewTable builds an empty table. qcfg is applied to every peer created
// through Insert so all peers in one mesh share the same queue tunables.
func NewTable(log logger.Logger, qcfg QueueConfig) *Table {
	return &Table{
		log:        log,
		peers:      make(map[string]*Peer),
		sanctioned: make(map[string]struct{}),
		qcfg:       qcfg,
	}
}

func canon(name string) string { return strings.ToLower(name) }

// Lookup finds a peer by name, consulting the single-entry cache first
// (§4.B).
func (t *Table) Lookup(name string) (*Peer, bool) {
	key := canon(name)

	if c := t.cache.Load(); c != nil && c.name == key {
		return c.peer, true
	}

	t.mu.RLock()
	p, ok := t.peers[key]
	t.mu.RUnlock()
	if ok {
		t.cache.Store(&cacheEntry{name: key, peer: p})
	}
	return p, ok
}

// Insert is idempotent on hostname (Invariant 1): if the peer already
// exists it is returned unchanged and inserted=false.
func (t *Table) Insert(name string, port uint16) (p *Peer, inserted bool) {
	key := canon(name)

	t.mu.Lock()
	if existing, ok := t.peers[key]; ok {
		t.mu.Unlock()
		return existing, false
	}
	p = New(key, port, t.qcfg)
	t.peers[key] = p
	t.mu.Unlock()

	t.cache.Store(&cacheEntry{name: key, peer: p})
	if t.log != nil {
		t.log.WithField("peer", key).Infof("peer added to table")
	}
	return p, true
}

// List returns a snapshot of every peer currently in the table.
func (t *Table) List() []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Remove marks name decom under the write lock, splices it out so no new
// lookup can find it, then joins its worker threads in the background
// before the entry is finally forgotten (§4.B "removal is deferred").
// Callers must already have shut the peer's socket down so its reader
// and writer loops are unblocked and on their way out.
func (t *Table) Remove(name string) {
	key := canon(name)

	t.mu.Lock()
	p, ok := t.peers[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	p.Decom()
	delete(t.peers, key)
	t.mu.Unlock()

	if c := t.cache.Load(); c != nil && c.name == key {
		t.cache.Store(nil)
	}

	go func() {
		p.awaitIdle()
		p.WaitWorkers()
		p.MarkReallyClosed()
		if t.log != nil {
			t.log.WithField("peer", key).Infof("peer removed from table")
		}
	}()
}

// Sanction adds name to the quorum-eligible set. Being sanctioned grants
// quorum membership but does not imply connectivity (§4.B).
func (t *Table) Sanction(name string) {
	t.sanctionedMu.Lock()
	defer t.sanctionedMu.Unlock()
	t.sanctioned[canon(name)] = struct{}{}
}

// Unsanction removes name from the quorum-eligible set.
func (t *Table) Unsanction(name string) {
	t.sanctionedMu.Lock()
	defer t.sanctionedMu.Unlock()
	delete(t.sanctioned, canon(name))
}

// IsSanctioned reports whether name is in the quorum-eligible set.
func (t *Table) IsSanctioned(name string) bool {
	t.sanctionedMu.Lock()
	defer t.sanctionedMu.Unlock()
	_, ok := t.sanctioned[canon(name)]
	return ok
}

// SanctionedList returns a snapshot of the quorum-eligible set.
func (t *Table) SanctionedList() []string {
	t.sanctionedMu.Lock()
	defer t.sanctionedMu.Unlock()
	out := make([]string, 0, len(t.sanctioned))
	for name := range t.sanctioned {
		out = append(out, name)
	}
	return out
}

// CountConnected reports how many peers currently have a live socket
// (the "count nodes" introspection hook, §6).
func (t *Table) CountConnected() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, p := range t.peers {
		if p.State() == StateUp {
			n++
		}
	}
	return n
}
