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
	"time"

	"github.com/nabbar/meshnet/logger"
	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

// Dispatch carries the mesh-level callbacks the reader invokes for each
// frame kind it decodes (§4.E "Reader"). The transport package stays
// ignorant of handler tables, gossip integration and ack bookkeeping;
// it only decodes and routes.
type Dispatch struct {
	OnHello       func(p *peer.Peer, payload wire.HelloPayload, reply bool)
	OnDecom       func(p *peer.Peer, host string)
	OnUserMessage func(p *peer.Peer, msg wire.UserMessage)
	OnAck         func(p *peer.Peer, frame wire.AckFrame)
}

// ReaderLoop reads envelopes off p's connection until the socket errs or
// closes, dispatching each by type (§4.E "Reader"). It moves the peer to
// HelloPending on entry, to Up once a hello or hello-reply arrives, and to
// Closed on exit. On a header read error it increments distress; on that
// or any payload decode error it closes the socket, clears the
// reader-thread flag, and returns; the dial loop is responsible for
// reconnecting.
func ReaderLoop(p *peer.Peer, d Dispatch, log logger.Logger) {
	p.SetReaderThread(true)
	defer p.SetReaderThread(false)
	p.SetState(peer.StateHelloPending)
	defer p.SetState(peer.StateClosed)

	for {
		reader, _ := p.Streams()
		if reader == nil {
			return
		}

		env, err := wire.DecodeHeader(reader)
		if err != nil {
			p.IncDistress()
			if log != nil {
				log.WithField("peer", p.Hostname).Debugf("reader error: %v", err)
			}
			p.CloseSocket()
			return
		}
		p.Touch()

		switch env.Type {
		case wire.FrameHeartbeat:
			// no payload, last-rx timestamp already touched above

		case wire.FrameHello:
			payload, err := wire.DecodeHello(reader)
			if err != nil {
				p.CloseSocket()
				return
			}
			p.SetGotHello(true)
			p.SetState(peer.StateUp)
			if d.OnHello != nil {
				d.OnHello(p, payload, true)
			}

		case wire.FrameHelloReply:
			payload, err := wire.DecodeHello(reader)
			if err != nil {
				p.CloseSocket()
				return
			}
			p.SetGotHello(true)
			p.SetState(peer.StateUp)
			if d.OnHello != nil {
				d.OnHello(p, payload, false)
			}

		case wire.FrameDecom:
			host, err := wire.DecodeDecom(reader)
			if err != nil {
				p.CloseSocket()
				return
			}
			if d.OnDecom != nil {
				d.OnDecom(p, host)
			}

		case wire.FrameUser:
			msg, err := wire.DecodeUserMessage(reader)
			if err != nil {
				p.CloseSocket()
				return
			}
			p.SetRunningUserFunc(true)
			if d.OnUserMessage != nil {
				d.OnUserMessage(p, msg)
			}
			p.SetRunningUserFunc(false)

		case wire.FrameAck:
			frame, err := wire.DecodeAck(reader, false)
			if err != nil {
				p.CloseSocket()
				return
			}
			if d.OnAck != nil {
				d.OnAck(p, frame)
			}

		case wire.FrameAckPayload:
			frame, err := wire.DecodeAck(reader, true)
			if err != nil {
				p.CloseSocket()
				return
			}
			if d.OnAck != nil {
				d.OnAck(p, frame)
			}

		default:
			p.CloseSocket()
			return
		}
	}
}

// WriterLoop drains p's send queue and writes each frame with a
// freshly rewritten envelope until the socket errs or p starts closing
// (§4.E "Writer", §4.C "writer batch").
func WriterLoop(p *peer.Peer, self Identity, pollInterval time.Duration, log logger.Logger) {
	p.SetWriterThread(true)
	defer p.SetWriterThread(false)

	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	for {
		_, writer := p.Streams()
		if writer == nil {
			return
		}
		if p.Decommed() {
			return
		}

		select {
		case <-p.WriteWakeup():
		case <-time.After(pollInterval):
		}

		batch := p.Queue.Drain()
		if len(batch) == 0 {
			continue
		}

		started := time.Now()
		_, writer = p.Streams()
		if writer == nil {
			return
		}

		for _, f := range batch {
			env := wire.Envelope{
				FromHost: self.Host,
				FromPort: int32(self.Port),
				ToHost:   p.Hostname,
				ToPort:   int32(p.Port),
				Type:     f.Type,
			}
			if err := wire.EncodeHeader(writer, env); err != nil {
				p.IncDistress()
				p.CloseSocket()
				return
			}
			if _, err := writer.Write(f.Body); err != nil {
				p.IncDistress()
				p.CloseSocket()
				return
			}
			p.AddBytesOut(uint64(wire.HeaderLen + len(f.Body)))
		}

		if p.Queue.NeedsFlush(batch) {
			if err := writer.Flush(); err != nil {
				p.IncDistress()
				p.CloseSocket()
				return
			}
		} else {
			_ = writer.Flush()
		}

		if elapsed := time.Since(started); elapsed >= 2*time.Second && log != nil {
			log.WithField("peer", p.Hostname).Warnf("writer batch took %s for %d frames", elapsed, len(batch))
		}
	}
}
