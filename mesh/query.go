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

import "github.com/nabbar/meshnet/peer"

// PeerInfo is the introspection snapshot of one peer (§6 "per-peer byte
// counters, queue-size time metric... subnet status").
type PeerInfo struct {
	Hostname    string
	SessionID   string
	State       string
	Sanctioned  bool
	GotHello    bool
	Stats       peer.Stats
	QueueStat   peer.Stats
	QueueLen    int
	QueueBytes  int
	IdleSeconds float64
	LSN         int64
	HasLSN      bool
}

// Peers returns a snapshot of every peer currently in the table,
// including self.
func (c *Context) Peers() []PeerInfo {
	peers := c.table.List()
	out := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		qs := p.Queue.Stat()
		if c.hooks.QStat != nil {
			c.hooks.QStat(p.Hostname, qs.Len, qs.Bytes)
		}
		info := PeerInfo{
			Hostname:    p.Hostname,
			SessionID:   p.SessionID(),
			State:       p.State().String(),
			Sanctioned:  c.table.IsSanctioned(p.Hostname),
			GotHello:    p.GotHello(),
			Stats:       p.Stat(),
			QueueLen:    qs.Len,
			QueueBytes:  qs.Bytes,
			IdleSeconds: p.IdleFor().Seconds(),
		}
		if c.hooks.GetLSN != nil {
			info.LSN, info.HasLSN = c.hooks.GetLSN(p.Hostname)
		}
		out = append(out, info)
	}
	return out
}

// MeshStats is the mesh-wide introspection summary (§6 "count nodes
// (total, connected, sanctioned)").
type MeshStats struct {
	NodesTotal      int
	NodesConnected  int
	NodesSanctioned int
	SubnetStatus    map[string]bool
	Handlers        []HandlerStat
}

// Stats returns a mesh-wide introspection summary.
func (c *Context) Stats() MeshStats {
	return MeshStats{
		NodesTotal:      len(c.table.List()),
		NodesConnected:  c.table.CountConnected(),
		NodesSanctioned: len(c.table.SanctionedList()),
		SubnetStatus:    c.ring.Status(),
		Handlers:        c.handlers.stats(),
	}
}

// Sanction adds host to the quorum-eligible set without requiring
// connectivity (§4.B "being sanctioned grants quorum membership but does
// not imply connectivity").
func (c *Context) Sanction(host string) { c.table.Sanction(host) }

// Unsanction removes host from the quorum-eligible set.
func (c *Context) Unsanction(host string) { c.table.Unsanction(host) }

// Decom marks host for removal: its socket is shut down, its worker
// threads are allowed to exit, and the entry is then deferredly removed
// from the table (§4.B "Lifecycle").
func (c *Context) Decom(host string) {
	if p, ok := c.table.Lookup(host); ok {
		p.CloseSocket()
	}
	c.table.Remove(host)
}
