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

package gossip_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/meshnet/gossip"
	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

func newTable() *peer.Table {
	log := logger.New(io.Discard, logger.InfoLevel)
	return peer.NewTable(log, peer.QueueConfig{MaxQueue: 100, MaxBytes: 1 << 20})
}

var _ = Describe("gossip", func() {
	It("Snapshot includes self plus every table member", func() {
		table := newTable()
		table.Insert("db1", 4700) // a running mesh always has itself in the table
		table.Insert("db2", 4700)
		table.Insert("db3", 4700)

		snap := gossip.Snapshot(table, "db1", 4700)

		hosts := make([]string, 0, len(snap.Entries))
		for _, e := range snap.Entries {
			hosts = append(hosts, e.Host)
		}
		Expect(hosts).To(ContainElements("db1", "db2", "db3"))
	})

	It("Snapshot does not advertise self twice", func() {
		table := newTable()
		table.Insert("db1", 4700)
		table.Insert("db2", 4700)

		snap := gossip.Snapshot(table, "db1", 4700)

		count := 0
		for _, e := range snap.Entries {
			if e.Host == "db1" {
				count++
			}
		}
		Expect(count).To(Equal(1))
	})

	It("Integrate adds unknown peers and skips self", func() {
		table := newTable()
		var learned []string

		payload := wire.HelloPayload{Entries: []wire.HelloEntry{
			{Host: "db1", Port: 4700}, // self, must be skipped
			{Host: "db2", Port: 4700},
			{Host: "db3", Port: 4700},
		}}

		gossip.Integrate(table, payload, "db1", nil, func(p *peer.Peer) {
			learned = append(learned, p.Hostname)
		})

		_, selfPresent := table.Lookup("db1")
		Expect(selfPresent).To(BeFalse()) // self is never inserted by Integrate itself
		_, ok2 := table.Lookup("db2")
		Expect(ok2).To(BeTrue())
		_, ok3 := table.Lookup("db3")
		Expect(ok3).To(BeTrue())
		Expect(learned).To(ConsistOf("db2", "db3"))
	})

	It("Integrate never re-adds or overwrites an already-known peer", func() {
		table := newTable()
		table.Insert("db2", 4700)

		calls := 0
		payload := wire.HelloPayload{Entries: []wire.HelloEntry{{Host: "db2", Port: 9999}}}
		gossip.Integrate(table, payload, "db1", nil, func(p *peer.Peer) { calls++ })

		Expect(calls).To(Equal(0))
		p, ok := table.Lookup("db2")
		Expect(ok).To(BeTrue())
		Expect(p.Port).To(Equal(uint16(4700)))
	})

	It("skips self only on an exact hostname match, not case-insensitively", func() {
		table := newTable()
		var learned []string

		payload := wire.HelloPayload{Entries: []wire.HelloEntry{{Host: "DB1", Port: 4700}}}
		gossip.Integrate(table, payload, "db1", nil, func(p *peer.Peer) {
			learned = append(learned, p.Hostname)
		})

		// Entries are matched against selfHost verbatim (§4.G skips exact
		// self-name matches); a differently-cased self entry is treated as
		// a distinct, learnable peer. The table itself still case-folds the
		// hostname on insert (Invariant 1), so the learned name comes back
		// lowercased.
		Expect(learned).To(ConsistOf("db1"))
	})
})
