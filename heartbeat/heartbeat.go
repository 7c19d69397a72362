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

// Package heartbeat runs the two per-mesh singleton loops of §4.F: a
// sender that periodically jumps a heartbeat frame to the front of every
// peer's queue, and a checker that kills sockets gone quiet too long.
package heartbeat

import (
	"context"
	"time"

	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/resolve"
	"github.com/nabbar/meshnet/wire"
)

// Sender enqueues a heartbeat frame every interval on every peer whose
// connection is awaiting hello or up (self never has one). The frame carries head|no_dupe|no_delay|no_limit so it jumps
// the queue, collapses with any heartbeat already at the head, flushes
// immediately, and bypasses backpressure (§4.F).
type Sender struct {
	Table    *peer.Table
	Interval time.Duration
	Log      logger.Logger
}

// Run blocks until ctx is cancelled, emitting heartbeats on Interval.
func (s *Sender) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sender) tick() {
	for _, p := range s.Table.List() {
		if p.State() != peer.StateUp && p.State() != peer.StateHelloPending {
			continue
		}
		err := p.Queue.Enqueue(&peer.Frame{
			Type:  wire.FrameHeartbeat,
			Flags: peer.FlagHead | peer.FlagNoDupe | peer.FlagNoDelay | peer.FlagNoLimit,
		})
		if err == nil {
			p.WakeWriter()
		}
	}
}

// Checker scans every peer once per second; a peer with an open socket,
// not currently running a user handler, with no inbound byte for
// CheckTimeout, has its socket shut down — the dial loop reconnects it,
// rotating subnet if one is available (§4.F, §8 invariant 9). The same
// thread also re-registers this node with the name service every
// RegisterEvery, so a portmux-style rendezvous entry never expires out
// from under a long-running node.
type Checker struct {
	Table        *peer.Table
	CheckTimeout time.Duration
	OnStale      func(p *peer.Peer) // marks the peer's current subnet bad
	Log          logger.Logger

	Resolver      resolve.Resolver
	Service       resolve.Service
	SelfPort      uint16
	RegisterEvery time.Duration // 0 disables periodic re-registration
}

// Run blocks until ctx is cancelled, sweeping every second and, if a
// Resolver is configured, re-registering on RegisterEvery.
func (c *Checker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var registerC <-chan time.Time
	if c.Resolver != nil && c.RegisterEvery > 0 {
		registerTicker := time.NewTicker(c.RegisterEvery)
		defer registerTicker.Stop()
		registerC = registerTicker.C
		c.register(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep()
		case <-registerC:
			c.register(ctx)
		}
	}
}

func (c *Checker) register(ctx context.Context) {
	if err := c.Resolver.Register(ctx, c.Service, c.SelfPort); err != nil && c.Log != nil {
		c.Log.Warnf("portmux re-registration failed: %v", err)
	}
}

// sweep is called with no table-wide lock held beyond peer.Table.List's
// own brief read lock; Peer.CloseSocket must not reacquire it (§9 Open
// Question 3 — see peer.Peer.CloseSocket's doc comment).
func (c *Checker) sweep() {
	for _, p := range c.Table.List() {
		if p.Conn() == nil {
			continue
		}
		if p.RunningUserFunc() {
			continue
		}
		if p.IdleFor() < c.CheckTimeout {
			continue
		}
		if c.Log != nil {
			c.Log.WithField("peer", p.Hostname).Warnf("peer idle past heartbeat check timeout, closing")
		}
		if c.OnStale != nil {
			c.OnStale(p)
		}
		p.CloseSocket()
	}
}
