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

// Package resolve is the host-supplied name service hook (§6 "Name
// service"): turning an (app, service, instance) triple into a TCP port
// when a peer's configured port is 0, and registering this node's own
// triple so other nodes' resolvers can find it.
package resolve

import "context"

// Service identifies a rendezvous registration: the same triple carried
// in config.Service.
type Service struct {
	App      string
	Service  string
	Instance string
}

// Resolver is the name-service hook the connection engine consults
// whenever a peer's configured port is 0 (§4.D step 4).
type Resolver interface {
	// Resolve returns the TCP port currently registered for svc.
	Resolve(ctx context.Context, svc Service) (port uint16, err error)
	// Register advertises this node's own service triple so peers can
	// resolve it in turn.
	Register(ctx context.Context, svc Service, port uint16) error
}

// Static is a Resolver backed by a fixed, caller-supplied table — useful
// for tests and for deployments where every peer's port is already known
// and no rendezvous service is running.
type Static struct {
	ports map[string]uint16
}

// NewStatic builds a Resolver over a fixed app/service/instance → port map.
func NewStatic(ports map[string]uint16) *Static {
	if ports == nil {
		ports = map[string]uint16{}
	}
	return &Static{ports: ports}
}

func key(svc Service) string { return svc.App + "/" + svc.Service + "/" + svc.Instance }

func (s *Static) Resolve(_ context.Context, svc Service) (uint16, error) {
	if p, ok := s.ports[key(svc)]; ok {
		return p, nil
	}
	return 0, errNotFound{svc}
}

func (s *Static) Register(_ context.Context, svc Service, port uint16) error {
	s.ports[key(svc)] = port
	return nil
}

type errNotFound struct{ svc Service }

func (e errNotFound) Error() string {
	return "resolve: no registration for " + key(e.svc)
}
