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

package resolve

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// PortmuxResolver is the default Resolver: a thin client for an external
// rendezvous service ("portmux") that this codebase treats as opaque —
// the only contract it relies on is a line-oriented request/response
// exchanged over one short-lived TCP connection per call, which is
// enough to stand in for whatever concrete portmux protocol a
// deployment actually runs behind Addr.
//
//	-> GET app/service/instance\n
//	<- PORT 4700\n   (or ERR <reason>\n)
//
//	-> SET app/service/instance 4700\n
//	<- OK\n          (or ERR <reason>\n)
type PortmuxResolver struct {
	Addr    string // host:port of the portmux service
	Timeout time.Duration
}

// NewPortmuxResolver builds a PortmuxResolver dialing addr, with a
// default 2s per-call timeout if timeout is zero.
func NewPortmuxResolver(addr string, timeout time.Duration) *PortmuxResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PortmuxResolver{Addr: addr, Timeout: timeout}
}

func (p *PortmuxResolver) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: p.Timeout}
	return d.DialContext(ctx, "tcp", p.Addr)
}

func (p *PortmuxResolver) Resolve(ctx context.Context, svc Service) (uint16, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))

	if _, err := fmt.Fprintf(conn, "GET %s\n", key(svc)); err != nil {
		return 0, err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSpace(line)

	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "PORT" {
		return 0, fmt.Errorf("resolve: portmux replied %q", line)
	}
	port, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("resolve: portmux returned a bad port: %w", err)
	}
	return uint16(port), nil
}

func (p *PortmuxResolver) Register(ctx context.Context, svc Service, port uint16) error {
	conn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))

	if _, err := fmt.Fprintf(conn, "SET %s %d\n", key(svc), port); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line != "OK" {
		return fmt.Errorf("resolve: portmux register replied %q", line)
	}
	return nil
}
