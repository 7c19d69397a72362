package transport

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/meshnet/peer"
	"github.com/nabbar/meshnet/wire"
)

// TestWriterReaderRoundTrip exercises S1: a user message enqueued on one
// side's queue arrives, intact, at the other side's dispatch callback.
func TestWriterReaderRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sender := peer.New("replica-b", 4700, peer.QueueConfig{MaxQueue: 10, MaxBytes: 1 << 20})
	sender.Attach(clientConn)

	received := make(chan wire.UserMessage, 1)
	recvPeer := peer.New("replica-a", 4700, peer.QueueConfig{MaxQueue: 10, MaxBytes: 1 << 20})
	recvPeer.Attach(serverConn)
	recvPeer.SetGotHello(true)

	go ReaderLoop(recvPeer, Dispatch{
		OnUserMessage: func(p *peer.Peer, msg wire.UserMessage) {
			received <- msg
		},
	}, nil)

	go WriterLoop(sender, Identity{Host: "replica-a", Port: 4700}, 20*time.Millisecond, nil)

	var body []byte
	if err := wire.EncodeUserMessage(newBodyBuf(&body), wire.UserMessage{UserType: 5, SeqNum: 1, Data: []byte("abc")}); err != nil {
		t.Fatalf("EncodeUserMessage: %v", err)
	}
	if err := sender.Queue.Enqueue(&peer.Frame{Type: wire.FrameUser, Body: body}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	sender.WakeWriter()

	select {
	case msg := <-received:
		if msg.UserType != 5 || string(msg.Data) != "abc" {
			t.Fatalf("got %+v, want usertype=5 data=abc", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for user message to arrive")
	}
}

type bodyBuf struct{ b *[]byte }

func (w bodyBuf) Write(p []byte) (int, error) {
	*w.b = append(*w.b, p...)
	return len(p), nil
}

func newBodyBuf(b *[]byte) bodyBuf { return bodyBuf{b: b} }
