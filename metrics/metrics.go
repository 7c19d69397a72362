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

// Package metrics exposes the introspection surface of §6 ("count nodes,
// per-peer byte counters, queue-size time metric, handler call/duration
// counters, subnet status") as prometheus collectors.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/transport"
)

// Collectors bundles every gauge/counter/histogram this transport
// publishes. A mesh registers one instance against its own registry (or
// the global default) at construction time.
type Collectors struct {
	PeersTotal      prometheus.Gauge
	PeersConnected  prometheus.Gauge
	PeersSanctioned prometheus.Gauge

	QueueDepth prometheus.GaugeVec
	QueueBytes prometheus.GaugeVec

	BytesIn  *prometheus.CounterVec
	BytesOut *prometheus.CounterVec

	HandlerCalls    *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec

	SubnetStatus *prometheus.GaugeVec

	lastMu  sync.Mutex
	lastIn  map[string]uint64
	lastOut map[string]uint64
}

// New builds a Collectors with namespace as the metric prefix (e.g.
// "meshnet"), ready to be registered against reg.
func New(namespace string, reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		PeersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers_total", Help: "Peers currently in the table.",
		}),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers_connected", Help: "Peers with a live socket.",
		}),
		PeersSanctioned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers_sanctioned", Help: "Peers in the quorum-eligible set.",
		}),
		QueueDepth: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth", Help: "Current send queue length, by peer.",
		}, []string{"peer"}),
		QueueBytes: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_bytes", Help: "Current send queue byte sum, by peer.",
		}, []string{"peer"}),
		BytesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_in_total", Help: "Bytes received, by peer.",
		}, []string{"peer"}),
		BytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_out_total", Help: "Bytes written, by peer.",
		}, []string{"peer"}),
		HandlerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handler_calls_total", Help: "Handler invocations, by user type.",
		}, []string{"user_type"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "handler_duration_seconds", Help: "Handler execution time, by user type.",
		}, []string{"user_type"}),
		SubnetStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subnet_status", Help: "1 if the subnet suffix is usable, 0 if blacked out.",
		}, []string{"suffix"}),
		lastIn:  make(map[string]uint64),
		lastOut: make(map[string]uint64),
	}

	if reg != nil {
		reg.MustRegister(c.PeersTotal, c.PeersConnected, c.PeersSanctioned,
			&c.QueueDepth, &c.QueueBytes, c.BytesIn, c.BytesOut,
			c.HandlerCalls, c.HandlerDuration, c.SubnetStatus)
	}
	return c
}

// Sample refreshes the node-count, queue and subnet-status gauges from a
// live snapshot of table and ring, and folds each peer's cumulative
// byte counters (peer.Peer.Stat) into the BytesIn/BytesOut counters as
// the delta since the previous Sample (§6 "per-peer byte counters").
func (c *Collectors) Sample(table *peer.Table, ring *transport.SubnetRing) {
	peers := table.List()
	c.PeersTotal.Set(float64(len(peers)))
	c.PeersSanctioned.Set(float64(len(table.SanctionedList())))
	c.PeersConnected.Set(float64(table.CountConnected()))

	c.lastMu.Lock()
	for _, p := range peers {
		st := p.Stat()
		qs := p.Queue.Stat()
		c.QueueDepth.WithLabelValues(p.Hostname).Set(float64(qs.Len))
		c.QueueBytes.WithLabelValues(p.Hostname).Set(float64(qs.Bytes))

		if d := st.BytesIn - c.lastIn[p.Hostname]; d > 0 {
			c.BytesIn.WithLabelValues(p.Hostname).Add(float64(d))
		}
		c.lastIn[p.Hostname] = st.BytesIn

		if d := st.BytesOut - c.lastOut[p.Hostname]; d > 0 {
			c.BytesOut.WithLabelValues(p.Hostname).Add(float64(d))
		}
		c.lastOut[p.Hostname] = st.BytesOut
	}
	c.lastMu.Unlock()

	for suffix, up := range ring.Status() {
		v := 0.0
		if up {
			v = 1
		}
		c.SubnetStatus.WithLabelValues(suffix).Set(v)
	}
}

// ObserveHandler records one handler invocation's outcome (§6 "handler
// call/duration counters").
func (c *Collectors) ObserveHandler(userType int32, seconds float64) {
	label := strconv.Itoa(int(userType))
	c.HandlerCalls.WithLabelValues(label).Inc()
	c.HandlerDuration.WithLabelValues(label).Observe(seconds)
}
