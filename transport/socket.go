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
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// SocketOptions mirrors the knobs §4.D step 5 sets right after opening
// the dial socket: TCP_NODELAY, SO_KEEPALIVE, optional large send/recv
// buffers, and optional SO_LINGER{0,1}.
type SocketOptions struct {
	NoDelay     bool
	KeepAlive   bool
	SendBufSize int // 0 = leave at system default
	RecvBufSize int
	LingerSec   int // <0 = don't set SO_LINGER at all, per net.TCPConn.SetLinger semantics
}

// DefaultSocketOptions is the baseline every dialed/accepted socket
// gets: nodelay and keepalive on, linger untouched.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{NoDelay: true, KeepAlive: true, LingerSec: -1}
}

// Apply sets opts on conn. conn must be a *net.TCPConn (or wrap one via
// syscall.Conn), which both the dialer and the acceptor use.
func Apply(conn net.Conn, opts SocketOptions) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if opts.NoDelay {
			sockErr = firstErr(sockErr, unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1))
		}
		if opts.KeepAlive {
			sockErr = firstErr(sockErr, unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1))
		}
		if opts.SendBufSize > 0 {
			sockErr = firstErr(sockErr, unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBufSize))
		}
		if opts.RecvBufSize > 0 {
			sockErr = firstErr(sockErr, unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBufSize))
		}
		if opts.LingerSec >= 0 {
			sockErr = firstErr(sockErr, unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{
				Onoff: 1, Linger: int32(opts.LingerSec),
			}))
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

func firstErr(existing, next error) error {
	if existing != nil {
		return existing
	}
	return next
}
