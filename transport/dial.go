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

// Package transport is the connection engine (§4.D): the dial loop with
// multi-subnet rotation, the accept loop distinguishing mesh peers from
// appsock clients, and the reader/writer goroutine pair that owns a
// peer's socket once it's up.
package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/resolve"
	"github.com/nabbar/meshnet/wire"
)

// Identity is this node's own addressable name/port, needed to fill the
// connect message's from_* fields and the envelope rewrite in the
// writer.
type Identity struct {
	Host string
	Port uint16
}

// Dialer runs the per-peer connect loop (§4.D "Dial loop").
type Dialer struct {
	Self     Identity
	Resolver resolve.Resolver
	Service  resolve.Service
	Ring     *SubnetRing
	Sockets  SocketOptions
	TLS      Hook
	Log      logger.Logger

	DialTimeout time.Duration // poll timeout after connect() (§4.D step 5, default 100ms)

	// OnUp is invoked once the peer's socket, stream and connect
	// handshake are all established and it is ready for reader/writer
	// threads (§4.D step 8).
	OnUp func(p *peer.Peer, conn net.Conn, subnet string)
}

// Run executes the dial loop for p until ctx is cancelled or p is
// decommed. It never returns except on cancellation/decom: a dial
// failure loops back to step 1 after a jittered backoff.
func (d *Dialer) Run(ctx context.Context, p *peer.Peer) {
	p.SetConnectThread(true)
	defer p.SetConnectThread(false)

	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}

	for {
		if ctx.Err() != nil || p.Decommed() {
			return
		}

		if p.Conn() != nil {
			// Keep-alive role: socket already up, just recheck periodically.
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		if !sleepCtx(ctx, time.Duration(rand.Intn(5000))*time.Millisecond) {
			return
		}

		subnet := d.Ring.Next()
		addr, port, err := d.resolveTarget(ctx, p, subnet)
		if err != nil {
			if d.Log != nil {
				d.Log.WithField("peer", p.Hostname).Warnf("resolve failed: %v", err)
			}
			continue
		}

		conn, err := d.dialOnce(ctx, addr, port, timeout)
		if err != nil {
			if d.Log != nil {
				d.Log.WithField("peer", p.Hostname).Debugf("dial attempt failed: %v", err)
			}
			continue
		}

		if err := d.handshake(ctx, p, conn); err != nil {
			if d.Log != nil {
				d.Log.WithField("peer", p.Hostname).Warnf("connect handshake failed: %v", err)
			}
			_ = conn.Close()
			continue
		}

		if d.OnUp != nil {
			d.OnUp(p, conn, subnet)
		}
	}
}

func (d *Dialer) resolveTarget(ctx context.Context, p *peer.Peer, subnet string) (string, uint16, error) {
	port := p.Port
	if port == 0 {
		if d.Resolver == nil {
			return "", 0, meshErr.New(meshErr.Internal, fmt.Errorf("no resolver configured and peer port is 0"))
		}
		resolved, err := d.Resolver.Resolve(ctx, d.Service)
		if err != nil {
			return "", 0, err
		}
		port = resolved
	}
	return p.Hostname + subnet, port, nil
}

// dialOnce opens a non-blocking socket, sets options, connects with the
// given timeout, and returns the live connection (§4.D step 5-6).
func (d *Dialer) dialOnce(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	if err := Apply(conn, d.Sockets); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// handshake sends the connect message and, if TLS was requested,
// performs the handshake via the pluggable hook (§4.D step 7).
func (d *Dialer) handshake(ctx context.Context, p *peer.Peer, conn net.Conn) error {
	var flags wire.ConnectFlag
	requireTLS := d.TLS != nil && d.TLS.Policy() == TLSRequire
	if requireTLS {
		flags |= wire.TLSRequired
	}

	msg := wire.ConnectMessage{
		ToHost:   p.Hostname,
		ToPort:   p.Port,
		ChildNet: p.ChildNet,
		Flags:    flags,
		FromHost: d.Self.Host,
		FromPort: d.Self.Port,
	}
	if err := msg.Encode(conn); err != nil {
		return err
	}

	if requireTLS || (d.TLS != nil && d.TLS.Policy() == TLSAllow) {
		tconn, err := d.TLS.ClientHandshake(ctx, conn, p.Hostname)
		if err != nil {
			return err
		}
		p.Attach(tconn)
		return nil
	}

	p.Attach(conn)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
