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
	"context"
	"crypto/tls"
	"net"

	"golang.org/x/crypto/acme/autocert"
)

// TLSPolicy mirrors the host-supplied crypto policy enum of §6.
type TLSPolicy int

const (
	TLSDisabled TLSPolicy = iota
	TLSAllow
	TLSRequire
)

// ParseTLSPolicy maps the config string onto TLSPolicy.
func ParseTLSPolicy(s string) TLSPolicy {
	switch s {
	case "require":
		return TLSRequire
	case "allow":
		return TLSAllow
	default:
		return TLSDisabled
	}
}

// Hook is the pluggable TLS negotiation the core consumes from the host
// (§6 "Crypto: optional tls_accept/tls_connect"). The core never
// implements its own handshake; it only calls through this interface
// when Policy is not TLSDisabled.
type Hook interface {
	Policy() TLSPolicy
	ClientHandshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
	ServerHandshake(ctx context.Context, conn net.Conn) (net.Conn, error)
}

// StdHook is a Hook backed by crypto/tls and a caller-supplied
// *tls.Config, the default wiring a host process reaches for absent a
// custom certificate source (e.g. one backed by a secrets manager).
type StdHook struct {
	Config *tls.Config
	policy TLSPolicy
}

// NewStdHook builds a Hook running the standard library's TLS stack
// under cfg, active under policy.
func NewStdHook(cfg *tls.Config, policy TLSPolicy) *StdHook {
	return &StdHook{Config: cfg, policy: policy}
}

func (h *StdHook) Policy() TLSPolicy { return h.policy }

func (h *StdHook) ClientHandshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	cfg := h.Config.Clone()
	cfg.ServerName = serverName
	tconn := tls.Client(conn, cfg)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tconn, nil
}

func (h *StdHook) ServerHandshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	tconn := tls.Server(conn, h.Config)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tconn, nil
}

// NewAutocertConfig builds a *tls.Config whose certificates are fetched
// and renewed on demand by autocert for the given hostnames — the
// default production wiring for a host process that terminates TLS
// without hand-rolling certificate rotation.
func NewAutocertConfig(cacheDir string, hostnames ...string) *tls.Config {
	mgr := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hostnames...),
		Cache:      autocert.DirCache(cacheDir),
	}
	return mgr.TLSConfig()
}
