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

// Package peer holds the per-peer data structure (§3) and the peer table
// that owns the mesh's membership (§4.B): network/threading/queue/ack/
// liveness/admin/stat state, one mutex each for peer lifecycle, the send
// queue and the ack wait list, and the atomic flags the reader, writer,
// dial and heartbeat-check loops all poll cooperatively.
package peer

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/nabbar/meshnet/ack"
)

// State is the connection-engine state machine (§4.D).
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHelloPending
	StateUp
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHelloPending:
		return "hello-pending"
	case StateUp:
		return "up"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats are the per-peer counters exposed through introspection (§6).
type Stats struct {
	BytesIn        uint64
	BytesOut       uint64
	UDPBytesIn     uint64
	UDPBytesOut    uint64
	ThrottleWaits  uint64
	ReorderedCount uint64
}

// Peer is one entry in the mesh's membership: the identity is its
// case-folded hostname (Invariant 1 — a Go map substitutes for the
// original's pointer-interned-string comparison).
type Peer struct {
	Hostname     string // canonical, case-folded
	Port         uint16 // 0 = resolve on each dial
	ChildNet     uint8
	SubnetSuffix string

	mu           sync.Mutex
	state        State
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	reallyClosed bool
	sessionID    string // regenerated on each Attach, exposed for log correlation

	haveConnectThread atomic.Bool
	haveReaderThread  atomic.Bool
	haveWriterThread  atomic.Bool

	Queue   *Queue
	Acks    *ack.Registry
	writeWk chan struct{} // writer wakeup, buffered 1 so Wake is non-blocking

	lastRxNano      atomic.Int64
	runningUserFunc atomic.Bool
	distress        atomic.Int32
	gotHello        atomic.Bool
	decomFlag       atomic.Bool

	statsMu sync.Mutex
	stats   Stats

	refs   sync.WaitGroup // in-flight holders, resolves the send_with_ack race (§9 Open Question 1)
	worker sync.WaitGroup // connect/reader/writer goroutines, joined on decom
}

// New allocates a peer entry. It is always reachable from Table.Insert;
// nothing else should construct one directly.
func New(hostname string, port uint16, qcfg QueueConfig) *Peer {
	p := &Peer{
		Hostname: hostname,
		Port:     port,
		Queue:    NewQueue(qcfg),
		Acks:     ack.NewRegistry(),
		writeWk:  make(chan struct{}, 1),
	}
	p.lastRxNano.Store(time.Now().UnixNano())
	return p
}

// Hold pins the peer against concurrent decom for the duration of a
// blocking operation (send_with_ack's wait): a peer whose refs are
// non-zero is not spliced out of the table until Release balances
// every Hold.
func (p *Peer) Hold() { p.refs.Add(1) }

// Release balances a prior Hold.
func (p *Peer) Release() { p.refs.Done() }

// awaitIdle blocks until every outstanding Hold has Released; called by
// the table's deferred-removal goroutine before joining worker threads.
func (p *Peer) awaitIdle() { p.refs.Wait() }

// State returns the current connection-engine state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// SetState transitions the peer's connection state (used by the
// connection engine, exported for transport's package to drive it).
func (p *Peer) SetState(s State) { p.setState(s) }

// Conn returns the live connection, or nil if none is attached.
func (p *Peer) Conn() net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// Streams returns the buffered reader/writer wrapping the current
// connection, or nil, nil if no socket is attached.
func (p *Peer) Streams() (*bufio.Reader, *bufio.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader, p.writer
}

// Attach installs a freshly dialed or accepted connection and clears the
// closed flags (§4.D step 8).
func (p *Peer) Attach(conn net.Conn) {
	sid, err := uuid.GenerateUUID()
	if err != nil {
		sid = ""
	}
	p.mu.Lock()
	p.conn = conn
	p.reader = bufio.NewReader(conn)
	p.writer = bufio.NewWriter(conn)
	p.reallyClosed = false
	p.sessionID = sid
	p.mu.Unlock()
	p.Touch()
}

// SessionID identifies the current socket instance, regenerated on every
// Attach, so log lines and admin output can tell successive connections
// to the same peer apart.
func (p *Peer) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// CloseSocket shuts the connection down, which is the universal
// interruption primitive (§5 "shutdown as a barrier"): it forces any
// blocked reader/writer syscall to return, and does not itself wait for
// those goroutines to exit. It never takes the mesh table lock, so it is
// safe to call with or without that lock held (§9 Open Question 3,
// non-reentrancy with the heartbeat-check loop).
func (p *Peer) CloseSocket() {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// MarkReallyClosed records that both reader and writer have exited and
// the socket is fully released (Invariant 3).
func (p *Peer) MarkReallyClosed() {
	p.mu.Lock()
	p.reallyClosed = true
	p.conn = nil
	p.reader = nil
	p.writer = nil
	p.mu.Unlock()
}

// ReallyClosed reports whether the socket has been fully released.
func (p *Peer) ReallyClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reallyClosed
}

// HaveConnectThread, HaveReaderThread, HaveWriterThread report and set
// the per-role liveness flags (Invariant 2: at most one of each).
func (p *Peer) HaveConnectThread() bool { return p.haveConnectThread.Load() }
func (p *Peer) SetConnectThread(v bool) { p.haveConnectThread.Store(v) }
func (p *Peer) HaveReaderThread() bool  { return p.haveReaderThread.Load() }
func (p *Peer) SetReaderThread(v bool)  { p.haveReaderThread.Store(v) }
func (p *Peer) HaveWriterThread() bool  { return p.haveWriterThread.Load() }
func (p *Peer) SetWriterThread(v bool)  { p.haveWriterThread.Store(v) }

// WorkerAdd/WorkerDone track the goroutines decom must join before the
// entry can be freed.
func (p *Peer) WorkerAdd(n int) { p.worker.Add(n) }
func (p *Peer) WorkerDone()     { p.worker.Done() }

// WaitWorkers blocks until every outstanding WorkerAdd has been balanced
// by a WorkerDone — used both by the table's deferred removal and by a
// reconnect racing an old reader/writer pair still unwinding from a
// CloseSocket, so a fresh Attach never hands the new socket to workers
// that still believe they own the old one.
func (p *Peer) WaitWorkers() { p.worker.Wait() }

// Touch records an inbound byte's arrival time (heartbeat liveness).
func (p *Peer) Touch() { p.lastRxNano.Store(time.Now().UnixNano()) }

// IdleFor reports how long it has been since the last inbound byte.
func (p *Peer) IdleFor() time.Duration {
	return time.Since(time.Unix(0, p.lastRxNano.Load()))
}

// SetRunningUserFunc suppresses the heartbeat-check kill while a handler
// is executing (Invariant 3's sibling rule in §4.F).
func (p *Peer) SetRunningUserFunc(v bool) { p.runningUserFunc.Store(v) }
func (p *Peer) RunningUserFunc() bool     { return p.runningUserFunc.Load() }

// Distress is the consecutive read-failure counter (§3, §7).
func (p *Peer) Distress() int32    { return p.distress.Load() }
func (p *Peer) IncDistress() int32 { return p.distress.Add(1) }
func (p *Peer) ResetDistress()     { p.distress.Store(0) }

// GotHello gates application sends (Invariant 4).
func (p *Peer) GotHello() bool   { return p.gotHello.Load() }
func (p *Peer) SetGotHello(v bool) { p.gotHello.Store(v) }

// Decom marks the peer for removal; Decommed reports it.
func (p *Peer) Decom()      { p.decomFlag.Store(true) }
func (p *Peer) Decommed() bool { return p.decomFlag.Load() }

// WakeWriter signals the writer loop that fresh frames are waiting,
// without blocking if a wakeup is already pending.
func (p *Peer) WakeWriter() {
	select {
	case p.writeWk <- struct{}{}:
	default:
	}
}

// WriteWakeup exposes the wakeup channel for the writer's select loop.
func (p *Peer) WriteWakeup() <-chan struct{} { return p.writeWk }

// AddBytesIn/AddBytesOut/AddThrottleWait/AddReordered update stats.
func (p *Peer) AddBytesIn(n uint64) {
	p.statsMu.Lock()
	p.stats.BytesIn += n
	p.statsMu.Unlock()
}

func (p *Peer) AddBytesOut(n uint64) {
	p.statsMu.Lock()
	p.stats.BytesOut += n
	p.statsMu.Unlock()
}

func (p *Peer) AddUDPBytesIn(n uint64) {
	p.statsMu.Lock()
	p.stats.UDPBytesIn += n
	p.statsMu.Unlock()
}

func (p *Peer) AddUDPBytesOut(n uint64) {
	p.statsMu.Lock()
	p.stats.UDPBytesOut += n
	p.statsMu.Unlock()
}

func (p *Peer) AddThrottleWait() {
	p.statsMu.Lock()
	p.stats.ThrottleWaits++
	p.statsMu.Unlock()
}

func (p *Peer) AddReordered() {
	p.statsMu.Lock()
	p.stats.ReorderedCount++
	p.statsMu.Unlock()
}

// Stat returns a snapshot of the peer's counters.
func (p *Peer) Stat() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}
