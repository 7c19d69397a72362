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

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nabbar/meshnet/config"
	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/gossip"
	"github.com/nabbar/meshnet/heartbeat"
	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/metrics"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/resolve"
	"github.com/nabbar/meshnet/transport"
	"github.com/nabbar/meshnet/watchlist"
	"github.com/nabbar/meshnet/wire"
)

// Context is one process's mesh membership: the public API surface of
// §4.I bound together with the table, transport, heartbeat, gossip and
// ack machinery that implement it. Analogous to the source's process-
// wide "net-context" (§3).
type Context struct {
	self transport.Identity
	cfg  *config.MeshConfig
	log  logger.Logger

	table      *peer.Table
	handlers   *handlerTable
	hooks      Hooks
	metrics    *metrics.Collectors
	watchlist  *watchlist.List
	ring       *transport.SubnetRing
	resolver   resolve.Resolver
	service    resolve.Service
	tls        transport.Hook
	listener   net.Listener
	udpConn    net.PacketConn
	dialer     *transport.Dialer
	acceptor   *transport.Acceptor

	seq atomic.Int32

	exiting atomic.Bool
	eg      *errgroup.Group
	egCtx   context.Context
	cancel  context.CancelFunc
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithMetrics installs already-built prometheus collectors; it does not
// register them with any registry.
func WithMetrics(c *metrics.Collectors) Option {
	return func(ctx *Context) { ctx.metrics = c }
}

// WithResolver installs the name-service hook (§6).
func WithResolver(r resolve.Resolver, svc resolve.Service) Option {
	return func(ctx *Context) { ctx.resolver = r; ctx.service = svc }
}

// WithTLS installs the pluggable TLS hook.
func WithTLS(h transport.Hook) Option {
	return func(ctx *Context) { ctx.tls = h }
}

// WithUDP installs a bound UDP socket used by SendUDP (§3's per-peer UDP
// counters, the [SUPPLEMENT] unreliable-datagram path).
func WithUDP(conn net.PacketConn) Option {
	return func(ctx *Context) { ctx.udpConn = conn }
}

// WithListener supplies an already-bound, already-listening socket,
// matching the source's "typically handed in by the host to prevent
// double-launch" accept path (§4.D).
func WithListener(l net.Listener) Option {
	return func(ctx *Context) { ctx.listener = l }
}

// New builds a Context for one mesh identified by selfHost:selfPort.
func New(selfHost string, selfPort uint16, cfg *config.MeshConfig, log logger.Logger, opts ...Option) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := transport.CheckMinVersion(cfg.MinEngineVersion); err != nil {
		return nil, meshErr.New(meshErr.ConfigInvalid, err)
	}

	ctx := &Context{
		self:      transport.Identity{Host: strings.ToLower(selfHost), Port: selfPort},
		cfg:       cfg,
		log:       log,
		handlers:  newHandlerTable(cfg.MaxUserType),
		watchlist: watchlist.New(cfg.AppsockIdleTimeout, cfg.AppsockIdleTimeout),
		ring:      transport.NewSubnetRing(cfg.SubnetSuffixes, cfg.SubnetBlackout),
	}
	ctx.table = peer.NewTable(log, peer.QueueConfig{
		MaxQueue:         cfg.MaxQueue,
		MaxBytes:         cfg.MaxBytes,
		ReorderLookahead: cfg.ReorderLookahead,
		ThrottlePercent:  cfg.ThrottlePercent,
	})

	for _, opt := range opts {
		opt(ctx)
	}
	ctx.handlers.metrics = ctx.metrics

	// The mesh always knows about itself, per Invariant 7 ("own hostname
	// is always present in the peer list but is never a send target").
	ctx.table.Insert(ctx.self.Host, ctx.self.Port)

	return ctx, nil
}

// RegisterHandler binds fn to userType (§6 "Handler registration").
func (c *Context) RegisterHandler(userType int32, name string, fn HandlerFunc) error {
	return c.handlers.register(userType, name, fn)
}

func (c *Context) SetAllowHook(h AllowHook)                     { c.hooks.Allow = h }
func (c *Context) SetNewNodeHook(h NewNodeHook)                 { c.hooks.NewNode = h }
func (c *Context) SetHostDownHook(h HostDownHook)               { c.hooks.HostDown = h }
func (c *Context) SetHelloHook(h HelloHook)                     { c.hooks.Hello = h }
func (c *Context) SetGetLSNHook(h GetLSNHook)                   { c.hooks.GetLSN = h }
func (c *Context) SetNetCmpHook(h NetCmpHook)                   { c.hooks.NetCmp = h }
func (c *Context) SetAppsockHook(h AppsockHook)                 { c.hooks.Appsock = h }
func (c *Context) SetAdminAppsockHook(h AdminAppsockHook)       { c.hooks.AdminAppsock = h }
func (c *Context) SetStartStopThreadHook(h StartStopThreadHook) { c.hooks.StartStopThread = h }
func (c *Context) SetQStatHook(h QStatHook)                     { c.hooks.QStat = h }

// AddPeer adds a peer by name (§3 "a peer entry is created when the
// owning process adds it by name") and, once the mesh is running, starts
// its dial loop. port 0 defers resolution to the configured Resolver.
func (c *Context) AddPeer(host string, port uint16) *peer.Peer {
	p, inserted := c.table.Insert(host, port)
	if inserted {
		if c.hooks.NewNode != nil {
			c.hooks.NewNode(host)
		}
		if c.hooks.NetCmp != nil {
			p.Queue.SetComparator(func(a, b *peer.Frame) bool { return c.hooks.NetCmp(a.OrderBy, b.OrderBy) })
		}
		if c.eg != nil {
			c.startDial(p)
		}
	}
	return p
}

// Start spawns the mesh's background loops (accept, heartbeat send/
// check, and a dial loop per already-known peer) under one errgroup, so
// a fatal error in any of them surfaces through Wait (§5 "per mesh: 1
// accept thread, 1 heartbeat-send, 1 heartbeat-check").
func (c *Context) Start(parent context.Context) error {
	c.egCtx, c.cancel = context.WithCancel(parent)
	c.eg, c.egCtx = errgroup.WithContext(c.egCtx)

	if c.listener != nil {
		c.acceptor = &transport.Acceptor{
			Listener: c.listener,
			Self:     c.self,
			Sockets:  transport.DefaultSocketOptions(),
			Log:      c.log,
			Table:    c.table,
			OnConnect: func(p *peer.Peer, conn net.Conn, childNet uint8) {
				p.ChildNet = childNet
				c.startReaderWriter(p)
			},
			Appsock: func(conn net.Conn, admin bool) {
				// Every admitted appsock session is idle-timer watched
				// (§4.I) regardless of which hook ultimately owns it.
				watched := watchlist.Watch(c.watchlist, conn)
				if admin && c.hooks.AdminAppsock != nil {
					c.hooks.AdminAppsock(watched)
					return
				}
				if c.hooks.Appsock != nil {
					c.hooks.Appsock(watched)
					return
				}
				_ = watched.Close()
			},
			Allow: func(host string) bool {
				if c.hooks.Allow == nil {
					return true
				}
				return c.hooks.Allow(host)
			},
		}
		c.startStopThread("accept", true)
		c.eg.Go(func() error {
			defer c.startStopThread("accept", false)
			return c.acceptor.Run(c.egCtx)
		})
	}

	c.dialer = &transport.Dialer{
		Self:        c.self,
		Resolver:    c.resolver,
		Service:     c.service,
		Ring:        c.ring,
		Sockets:     transport.DefaultSocketOptions(),
		TLS:         c.tls,
		Log:         c.log,
		DialTimeout: 100 * time.Millisecond,
		OnUp: func(p *peer.Peer, conn net.Conn, subnet string) {
			p.SubnetSuffix = subnet
			c.startReaderWriter(p)
		},
	}

	for _, p := range c.table.List() {
		if p.Hostname == c.self.Host {
			continue
		}
		c.startDial(p)
	}

	sender := &heartbeat.Sender{Table: c.table, Interval: c.cfg.HeartbeatSendTime, Log: c.log}
	checker := &heartbeat.Checker{
		Table:         c.table,
		CheckTimeout:  c.cfg.HeartbeatCheckTime,
		Log:           c.log,
		Resolver:      c.resolver,
		Service:       c.service,
		SelfPort:      c.self.Port,
		RegisterEvery: c.cfg.PortmuxRegisterInterval,
		OnStale: func(p *peer.Peer) {
			c.ring.MarkBad(p.SubnetSuffix)
			if c.hooks.HostDown != nil {
				c.hooks.HostDown(p.Hostname)
			}
		},
	}
	c.startStopThread("heartbeat-send", true)
	c.eg.Go(func() error {
		defer c.startStopThread("heartbeat-send", false)
		return sender.Run(c.egCtx)
	})
	c.startStopThread("heartbeat-check", true)
	c.eg.Go(func() error {
		defer c.startStopThread("heartbeat-check", false)
		return checker.Run(c.egCtx)
	})

	c.startStopThread("watchlist-sweep", true)
	c.eg.Go(func() error {
		defer c.startStopThread("watchlist-sweep", false)
		return c.watchlist.Run(c.egCtx, c.cfg.AppsockSweepInterval, c.log)
	})

	if c.metrics != nil {
		c.startStopThread("metrics-sample", true)
		c.eg.Go(func() error {
			defer c.startStopThread("metrics-sample", false)
			return c.sampleMetrics(c.egCtx)
		})
	}

	return nil
}

// sampleMetrics refreshes the prometheus surface on the same cadence as
// the heartbeat check, since both walk the full peer table.
func (c *Context) sampleMetrics(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.HeartbeatCheckTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.metrics.Sample(c.table, c.ring)
		}
	}
}

// startStopThread notifies the host-supplied StartStopThreadHook, if
// any, around the lifetime of one of this mesh's background goroutines.
func (c *Context) startStopThread(name string, starting bool) {
	if c.hooks.StartStopThread != nil {
		c.hooks.StartStopThread(name, starting)
	}
}

func (c *Context) startDial(p *peer.Peer) {
	p.WorkerAdd(1)
	c.startStopThread("dial:"+p.Hostname, true)
	c.eg.Go(func() error {
		defer p.WorkerDone()
		defer c.startStopThread("dial:"+p.Hostname, false)
		c.dialer.Run(c.egCtx, p)
		return nil
	})
}

func (c *Context) startReaderWriter(p *peer.Peer) {
	p.WorkerAdd(2)
	c.startStopThread("reader:"+p.Hostname, true)
	c.eg.Go(func() error {
		defer p.WorkerDone()
		defer c.startStopThread("reader:"+p.Hostname, false)
		transport.ReaderLoop(p, c.dispatch(), c.log)
		return nil
	})
	c.startStopThread("writer:"+p.Hostname, true)
	c.eg.Go(func() error {
		defer p.WorkerDone()
		defer c.startStopThread("writer:"+p.Hostname, false)
		transport.WriterLoop(p, c.self, c.cfg.WriterPollInterval, c.log)
		return nil
	})

	// Both sides send a hello right after the socket comes up (§4.G).
	c.sendHello(p, wire.FrameHello)
}

func (c *Context) dispatch() transport.Dispatch {
	return transport.Dispatch{
		OnHello: func(p *peer.Peer, payload wire.HelloPayload, wasHello bool) {
			gossip.Integrate(c.table, payload, c.self.Host, c.log, func(np *peer.Peer) {
				if c.hooks.NewNode != nil {
					c.hooks.NewNode(np.Hostname)
				}
				c.startDial(np)
			})
			if c.hooks.Hello != nil {
				c.hooks.Hello(p.Hostname)
			}
			if wasHello {
				c.sendHello(p, wire.FrameHelloReply)
			}
		},
		OnDecom: func(p *peer.Peer, host string) {
			c.table.Remove(host)
		},
		OnUserMessage: func(p *peer.Peer, msg wire.UserMessage) {
			var state *AckState
			if msg.WaitForAck {
				state = &AckState{seqnum: msg.SeqNum, replyFn: func(seqnum, outRC int32, payload []byte) {
					c.sendAck(p, seqnum, outRC, payload)
				}}
			}
			outRC, handled := c.handlers.invoke(p.Hostname, msg.UserType, msg.Data, state)
			if msg.WaitForAck && handled {
				state.Reply(outRC, nil)
			}
		},
		OnAck: func(p *peer.Peer, frame wire.AckFrame) {
			p.Acks.Deliver(frame.SeqNum, frame.OutRC, frame.Payload)
		},
	}
}

func (c *Context) sendHello(p *peer.Peer, frameType wire.FrameType) {
	payload := gossip.Snapshot(c.table, c.self.Host, c.self.Port)
	var body []byte
	if err := wire.EncodeHello(&byteSink{&body}, payload); err != nil {
		return
	}
	_ = p.Queue.Enqueue(&peer.Frame{Type: frameType, Body: body, Flags: peer.FlagNoDelay})
	p.WakeWriter()
}

func (c *Context) sendAck(p *peer.Peer, seqnum int32, outRC int32, payload []byte) {
	frameType := wire.FrameAck
	if len(payload) > 0 {
		frameType = wire.FrameAckPayload
	}
	var body []byte
	if err := wire.EncodeAck(&byteSink{&body}, wire.AckFrame{SeqNum: seqnum, OutRC: outRC, Payload: payload}); err != nil {
		return
	}
	_ = p.Queue.Enqueue(&peer.Frame{Type: frameType, Body: body, Flags: peer.FlagNoDelay})
	p.WakeWriter()
}

// nextSeq returns the next monotonically increasing sequence number for
// a synchronous send (§3 "sequence counter").
func (c *Context) nextSeq() int32 { return c.seq.Add(1) }

// Close marks the mesh exiting (polled cooperatively by every loop, §5)
// and waits for every background goroutine to return.
func (c *Context) Close() error {
	c.exiting.Store(true)
	if c.cancel != nil {
		c.cancel()
	}
	if c.listener != nil {
		_ = c.listener.Close()
	}
	if c.udpConn != nil {
		_ = c.udpConn.Close()
	}
	for _, p := range c.table.List() {
		p.CloseSocket()
	}
	if c.eg == nil {
		return nil
	}
	return c.eg.Wait()
}

// byteSink adapts a []byte pointer to io.Writer for the wire codec's
// Encode* functions, avoiding a bytes.Buffer allocation's extra growth
// bookkeeping for these small, one-shot frame bodies.
type byteSink struct{ buf *[]byte }

func (w *byteSink) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
