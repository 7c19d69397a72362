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

// Package mesh is the public API surface (§4.I, §6): registration of
// handlers and hooks, the send variants, and the introspection queries.
// It is the one package that wires peer, transport, heartbeat, gossip,
// ack and watchlist together into one running mesh membership.
package mesh

import "net"

// HandlerFunc is invoked for an inbound user message bound to its
// registered user type. ack is non-nil only when the sender set
// waitforack; calling ack.Reply sends the outrc (and optional payload)
// back to the sender. The handler's own return value is used as outrc
// when it does not call ack.Reply explicitly.
type HandlerFunc func(from string, userType int32, body []byte, ack *AckState) int32

// AllowHook gates whether an inbound connect from host should be
// admitted at all (the "allow"/admission hook, §6).
type AllowHook func(host string) bool

// NewNodeHook is called when a peer is learned for the first time by
// explicit add or gossip. A peer first learned from an inbound connect
// does not fire it.
type NewNodeHook func(host string)

// HostDownHook is called when a peer's socket is closed by the liveness
// checker. A socket closed by a reader or writer I/O error does not fire it.
type HostDownHook func(host string)

// HelloHook is called after processing an inbound hello/hello-reply,
// once the sender's got_hello gate has been set.
type HelloHook func(host string)

// GetLSNHook supports queue-dump introspection keyed by a caller-defined
// log sequence number concept; the core has no opinion on what an LSN
// means, it just asks the host for one per peer and reports whatever
// comes back through Peers().
type GetLSNHook func(host string) (lsn int64, ok bool)

// NetCmpHook is the reorder comparator registered for send-in-order
// (the "netcmp" hook, §6); it is installed on every peer's Queue.
type NetCmpHook func(aOrderKey, bOrderKey int64) bool

// AppsockHook hands an admitted non-mesh connection to the host.
type AppsockHook func(conn net.Conn)

// AdminAppsockHook is the loopback-restricted sibling of AppsockHook.
type AdminAppsockHook func(conn net.Conn)

// StartStopThreadHook lets a host process do thread-local setup/teardown
// around each of this mesh's background goroutines.
type StartStopThreadHook func(name string, starting bool)

// QStatHook is called every time Peers() is computed, once per peer,
// with that peer's current send-queue depth and byte count — a push
// variant of the same numbers Peers() returns, for a host that wants to
// feed its own metrics pipeline from that call.
type QStatHook func(host string, queueLen, queueBytes int)

// Hooks bundles every pluggable hook the core exposes to the host (§6).
type Hooks struct {
	Allow           AllowHook
	NewNode         NewNodeHook
	HostDown        HostDownHook
	Hello           HelloHook
	GetLSN          GetLSNHook
	NetCmp          NetCmpHook
	Appsock         AppsockHook
	AdminAppsock    AdminAppsockHook
	StartStopThread StartStopThreadHook
	QStat           QStatHook
}
