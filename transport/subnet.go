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

package transport

import (
	"sync"
	"time"
)

// SubnetRing rotates a peer's dial target across a list of DNS-name
// suffixes (e.g. "", "_n2", "_n3"), skipping any suffix recently marked
// bad for the blackout window (§4.D "Multi-subnet rotation").
type SubnetRing struct {
	suffixes []string
	blackout time.Duration

	mu      sync.Mutex
	next    int
	badTill map[string]time.Time
	disabled map[string]bool
}

// NewSubnetRing builds a ring over suffixes (suffixes[0] may be "" for
// the primary, un-suffixed name). A nil/empty list behaves as a
// single-entry ring over "".
func NewSubnetRing(suffixes []string, blackout time.Duration) *SubnetRing {
	if len(suffixes) == 0 {
		suffixes = []string{""}
	}
	return &SubnetRing{
		suffixes: suffixes,
		blackout: blackout,
		badTill:  make(map[string]time.Time),
		disabled: make(map[string]bool),
	}
}

// Next returns the next usable suffix in round-robin order, skipping any
// currently blacked-out or administratively disabled entry. If every
// suffix is unusable it still returns one (the ring never blocks the
// dial loop indefinitely).
func (r *SubnetRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i := 0; i < len(r.suffixes); i++ {
		idx := (r.next + i) % len(r.suffixes)
		s := r.suffixes[idx]
		if r.disabled[s] {
			continue
		}
		if till, ok := r.badTill[s]; ok && now.Before(till) {
			continue
		}
		r.next = (idx + 1) % len(r.suffixes)
		return s
	}
	r.next = (r.next + 1) % len(r.suffixes)
	return r.suffixes[r.next]
}

// MarkBad blacks out suffix for the configured blackout window, e.g.
// because the reader timed out while connected over it.
func (r *SubnetRing) MarkBad(suffix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badTill[suffix] = time.Now().Add(r.blackout)
}

// Disable administratively removes suffix from rotation until Enable is
// called. Callers are responsible for shutting down any open sockets on
// that subnet across all meshes (§4.D) before/after calling this.
func (r *SubnetRing) Disable(suffix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[suffix] = true
}

// Enable re-admits suffix to rotation.
func (r *SubnetRing) Enable(suffix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disabled, suffix)
	delete(r.badTill, suffix)
}

// Status reports, for every configured suffix, whether it is currently
// usable (the "subnet status" introspection hook, §6).
func (r *SubnetRing) Status() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	out := make(map[string]bool, len(r.suffixes))
	for _, s := range r.suffixes {
		usable := !r.disabled[s]
		if till, ok := r.badTill[s]; ok && now.Before(till) {
			usable = false
		}
		out[s] = usable
	}
	return out
}
