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

package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

// adminSentinel is the first byte an admin appsock client sends (§4.D
// step 4): it must additionally originate from loopback.
const adminSentinel = '@'

// AppsockHook hands an admitted non-mesh connection to the host, along
// with whether it arrived via the admin sentinel.
type AppsockHook func(conn net.Conn, admin bool)

// Acceptor runs one mesh's accept loop (§4.D "Accept path").
type Acceptor struct {
	Listener net.Listener
	Self     Identity
	Sockets  SocketOptions
	PollWait time.Duration // netpoll ceiling before a peeked connection is dropped
	Log      logger.Logger

	Table *peer.Table

	// OnConnect is invoked once a valid connect message has been
	// received and the stream is ready for reader/writer threads.
	OnConnect func(p *peer.Peer, conn net.Conn, childNet uint8)
	Appsock   AppsockHook

	// Allow, if set, gates whether an inbound connect from a given
	// hostname is admitted at all; returning false closes the
	// connection before any peer table entry is created for it.
	Allow func(host string) bool
}

// Run accepts connections until ctx is cancelled or the listener closes.
func (a *Acceptor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.Listener.Close()
	}()

	for {
		conn, err := a.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go a.handle(ctx, conn)
	}
}

func (a *Acceptor) handle(ctx context.Context, conn net.Conn) {
	if err := Apply(conn, a.Sockets); err != nil && a.Log != nil {
		a.Log.WithField("remote", conn.RemoteAddr().String()).Warnf("socket option apply failed: %v", err)
	}

	poll := a.PollWait
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	_ = conn.SetReadDeadline(time.Now().Add(poll))

	br := bufio.NewReader(conn)
	tagByte, err := br.Peek(1)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		_ = conn.Close()
		return
	}

	if tagByte[0] != 0x00 {
		admin := tagByte[0] == adminSentinel
		if admin && !isLoopback(conn.RemoteAddr()) {
			_ = conn.Close()
			return
		}
		if a.Appsock != nil {
			a.Appsock(conn, admin)
		} else {
			_ = conn.Close()
		}
		return
	}

	msg, err := wire.DecodeConnect(br)
	if err != nil {
		if a.Log != nil {
			a.Log.Warnf("malformed connect message from %s: %v", conn.RemoteAddr(), err)
		}
		_ = conn.Close()
		return
	}

	if !strings.EqualFold(msg.ToHost, a.Self.Host) || msg.ToPort != a.Self.Port {
		if a.Log != nil {
			a.Log.Warnf("connect target mismatch: got %s:%d, want %s:%d", msg.ToHost, msg.ToPort, a.Self.Host, a.Self.Port)
		}
		_ = conn.Close()
		return
	}

	if a.Allow != nil && !a.Allow(msg.FromHost) {
		if a.Log != nil {
			a.Log.WithField("peer", msg.FromHost).Warnf("connect rejected by allow hook")
		}
		_ = conn.Close()
		return
	}

	p, inserted := a.Table.Insert(msg.FromHost, msg.FromPort)
	if inserted {
		p.SetConnectThread(true) // the accept path becomes the connect thread for a brand-new peer
	}

	if old := p.Conn(); old != nil {
		// Force the old reader/writer out of their blocking syscalls and
		// wait for both to actually exit (§4.D step 5 "waiting for its
		// workers to exit") before attaching the new socket — otherwise a
		// still-unwinding old reader/writer can call CloseSocket on the
		// connection we are about to hand to the new pair.
		p.CloseSocket()
		p.WaitWorkers()
	}

	// The connect message's TLS flag is not acted on: the accepted conn is
	// attached and handed to OnConnect as plain TCP, and no server-side
	// TLS handshake is performed on this path.
	p.Attach(conn)
	if a.OnConnect != nil {
		a.OnConnect(p, conn, msg.ChildNet)
	}
}

func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
