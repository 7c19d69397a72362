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
	"bytes"
	"fmt"
	"net"
	"strings"
	"time"

	meshErr "github.com/nabbar/meshnet/errors"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

// lookupSendable resolves host to a peer eligible for an application
// send, enforcing Invariant 7 (never send to self) and Invariant 4
// (got_hello gates user sends) before anything touches the wire.
func (c *Context) lookupSendable(host string) (*peer.Peer, error) {
	if strings.EqualFold(host, c.self.Host) {
		return nil, meshErr.New(meshErr.SendToMe, nil)
	}
	p, ok := c.table.Lookup(host)
	if !ok {
		return nil, meshErr.New(meshErr.InvalidNode, nil)
	}
	if p.Conn() == nil {
		return nil, meshErr.New(meshErr.NoSocket, nil)
	}
	if !p.GotHello() {
		return nil, meshErr.New(meshErr.NoSocket, nil)
	}
	return p, nil
}

func encodeUserBody(userType int32, seqnum int32, waitForAck bool, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := wire.EncodeUserMessage(&buf, wire.UserMessage{
		UserType:   userType,
		SeqNum:     seqnum,
		WaitForAck: waitForAck,
		Data:       data,
	})
	return buf.Bytes(), err
}

// Send enqueues a fire-and-forget user message to host (§4.I "send").
func (c *Context) Send(host string, userType int32, body []byte) error {
	p, err := c.lookupSendable(host)
	if err != nil {
		return err
	}
	frameBody, err := encodeUserBody(userType, c.nextSeq(), false, body)
	if err != nil {
		return meshErr.New(meshErr.MallocFail, err)
	}
	if err := p.Queue.EnqueueUser(&peer.Frame{Type: wire.FrameUser, Body: frameBody}, c.cfg.EnqueFlushInterval); err != nil {
		return err
	}
	p.WakeWriter()
	return nil
}

// SendInOrder enqueues a user message ordered against its peer by
// orderKey, within the configured reorder lookahead (§4.C "in-order
// insertion").
func (c *Context) SendInOrder(host string, userType int32, body []byte, orderKey int64) error {
	p, err := c.lookupSendable(host)
	if err != nil {
		return err
	}
	frameBody, err := encodeUserBody(userType, c.nextSeq(), false, body)
	if err != nil {
		return meshErr.New(meshErr.MallocFail, err)
	}
	err = p.Queue.EnqueueUser(&peer.Frame{
		Type:    wire.FrameUser,
		Body:    frameBody,
		Flags:   peer.FlagInOrder,
		OrderBy: orderKey,
	}, c.cfg.EnqueFlushInterval)
	if err != nil {
		return err
	}
	p.AddReordered()
	p.WakeWriter()
	return nil
}

// SendWithTails is the scatter-gather variant of Send: body is the
// concatenation of tails, avoiding a pre-concatenation allocation on the
// caller's side when the payload is naturally built from several
// buffers (e.g. a fixed header plus a variable-length record, §4.I
// "send-with-tails").
func (c *Context) SendWithTails(host string, userType int32, tails ...[]byte) error {
	total := 0
	for _, t := range tails {
		total += len(t)
	}
	body := make([]byte, 0, total)
	for _, t := range tails {
		body = append(body, t...)
	}
	return c.Send(host, userType, body)
}

// SendWithAck sends a synchronous request and blocks up to waitms for
// the peer's handler to reply (§4.H). A negative handler return is
// remapped to InvalidAckRC so application code can't impersonate an
// internal transport error (§8 invariant 11).
func (c *Context) SendWithAck(host string, userType int32, body []byte, waitms time.Duration) (int32, []byte, error) {
	p, err := c.lookupSendable(host)
	if err != nil {
		return 0, nil, err
	}

	// Hold the peer across the wait so a concurrent decom can't free it
	// out from under this call (§9 Open Question 1).
	p.Hold()
	defer p.Release()

	seqnum := c.nextSeq()
	p.Acks.Register(seqnum)

	frameBody, err := encodeUserBody(userType, seqnum, true, body)
	if err != nil {
		p.Acks.Cancel(seqnum)
		return 0, nil, meshErr.New(meshErr.MallocFail, err)
	}
	if err := p.Queue.Enqueue(&peer.Frame{Type: wire.FrameUser, Body: frameBody, Flags: peer.FlagNoDelay}); err != nil {
		p.Acks.Cancel(seqnum)
		return 0, nil, err
	}
	p.WakeWriter()

	outRC, payload, err := p.Acks.Wait(seqnum, waitms)
	if err != nil {
		return 0, nil, err
	}
	if outRC < 0 {
		return 0, nil, meshErr.New(meshErr.InvalidAckRC, nil)
	}
	return outRC, payload, nil
}

// SendUDP is a best-effort unreliable datagram send, supplementing the
// reliable TCP-backed Send with a path for the per-peer UDP counters §3
// names but otherwise leaves without a defined send path.
func (c *Context) SendUDP(host string, body []byte) error {
	p, err := c.lookupSendable(host)
	if err != nil {
		return err
	}
	if c.udpConn == nil {
		return meshErr.New(meshErr.NoSocket, nil)
	}
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s%s:%d", p.Hostname, p.SubnetSuffix, p.Port))
	if err != nil {
		return meshErr.New(meshErr.Internal, err)
	}
	n, err := c.udpConn.WriteTo(body, addr)
	if err != nil {
		return meshErr.New(meshErr.WriteFail, err)
	}
	p.AddUDPBytesOut(uint64(n))
	return nil
}
