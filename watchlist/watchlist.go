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

// Package watchlist layers read/write idle timers on top of admitted
// appsock sessions (§4.I / §6's appsock hooks): connections accepted on
// the first-byte-nonzero path (client sockets, not inter-peer mesh
// links) that this transport hands off to the host's appsock hook, but
// still owns for idle-close bookkeeping.
package watchlist

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/nabbar/meshnet/logger"
)

// Entry tracks one admitted appsock connection's idle deadlines.
type Entry struct {
	Conn      net.Conn
	lastRead  time.Time
	lastWrite time.Time
}

// List is the set of admitted appsock sessions currently being watched.
type List struct {
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	entries map[net.Conn]*Entry
}

// New builds a watchlist closing any session idle on reads for longer
// than readTimeout, or on writes for longer than writeTimeout. A zero
// duration disables that axis.
func New(readTimeout, writeTimeout time.Duration) *List {
	return &List{
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		entries:      make(map[net.Conn]*Entry),
	}
}

// Admit starts watching conn.
func (l *List) Admit(conn net.Conn) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[conn] = &Entry{Conn: conn, lastRead: now, lastWrite: now}
}

// TouchRead records a read on conn.
func (l *List) TouchRead(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conn]; ok {
		e.lastRead = time.Now()
	}
}

// TouchWrite records a write on conn.
func (l *List) TouchWrite(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conn]; ok {
		e.lastWrite = time.Now()
	}
}

// Forget stops watching conn, e.g. once the host's appsock hook closes
// it on its own.
func (l *List) Forget(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, conn)
}

// Sweep closes every session idle past its configured timeout and
// forgets it, returning how many were closed. Intended to run
// periodically alongside the heartbeat-check loop.
func (l *List) Sweep() int {
	now := time.Now()

	l.mu.Lock()
	var stale []net.Conn
	for conn, e := range l.entries {
		readStale := l.readTimeout > 0 && now.Sub(e.lastRead) > l.readTimeout
		writeStale := l.writeTimeout > 0 && now.Sub(e.lastWrite) > l.writeTimeout
		if readStale || writeStale {
			stale = append(stale, conn)
		}
	}
	for _, conn := range stale {
		delete(l.entries, conn)
	}
	l.mu.Unlock()

	for _, conn := range stale {
		_ = conn.Close()
	}
	return len(stale)
}

// Len reports how many sessions are currently watched.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps on interval until ctx is cancelled, alongside the
// heartbeat-check loop it was designed to run next to.
func (l *List) Run(ctx context.Context, interval time.Duration, log logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := l.Sweep(); n > 0 && log != nil {
				log.WithField("closed", n).Debugf("watchlist swept idle appsock sessions")
			}
		}
	}
}

// conn wraps a net.Conn admitted into a List, touching the list's idle
// timers on every Read/Write and forgetting itself on Close — so a host
// appsock hook that just uses the conn normally still drives the idle
// bookkeeping without knowing the watchlist exists.
type conn struct {
	net.Conn
	list *List
}

// Watch admits conn into l and returns a wrapper that keeps l's idle
// timers fresh for as long as the host reads from or writes to it.
func Watch(l *List, c net.Conn) net.Conn {
	l.Admit(c)
	return &conn{Conn: c, list: l}
}

func (c *conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.list.TouchRead(c.Conn)
	}
	return n, err
}

func (c *conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.list.TouchWrite(c.Conn)
	}
	return n, err
}

func (c *conn) Close() error {
	c.list.Forget(c.Conn)
	return c.Conn.Close()
}
