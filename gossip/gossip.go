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

// Package gossip implements the hello/hello-reply membership exchange
// (§4.G): every new connection trades full peer lists, and a receiver
// only ever adds peers it doesn't already know, so a single seed
// eventually reveals the whole mesh (§8 invariant 10, gossip closure).
package gossip

import (
	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

// Snapshot builds the HelloPayload advertising every peer currently in
// table. table.List() already includes self (mesh.New inserts its own
// identity at construction, §4.B Invariant 7), so no separate self entry
// is added here.
func Snapshot(table *peer.Table, selfHost string, selfPort uint16) wire.HelloPayload {
	peers := table.List()
	entries := make([]wire.HelloEntry, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, wire.HelloEntry{Host: p.Hostname, Port: int32(p.Port)})
	}
	return wire.HelloPayload{Entries: entries}
}

// OnNewPeer is called for each peer the integration step inserts for the
// first time; the caller (the reader loop) uses it to spin up that
// peer's connect thread.
type OnNewPeer func(p *peer.Peer)

// Integrate adds every entry in payload that table doesn't already know
// about (§4.G "adds new peers, never removes"), invoking onNew for each
// one actually inserted, and skipping the local node's own hostname.
func Integrate(table *peer.Table, payload wire.HelloPayload, selfHost string, log logger.Logger, onNew OnNewPeer) {
	for _, e := range payload.Entries {
		if e.Host == "" || e.Host == selfHost {
			continue
		}
		p, inserted := table.Insert(e.Host, uint16(e.Port))
		if inserted {
			if log != nil {
				log.WithField("peer", e.Host).Infof("learned new peer via gossip")
			}
			if onNew != nil {
				onNew(p)
			}
		}
	}
}
