package wire

import (
	"bytes"
	"strings"
	"testing"

	meshErr "github.com/nabbar/meshnet/errors"
)

func TestEncodeHostShortRoundTrip(t *testing.T) {
	field, tail, err := encodeHost("db1")
	if err != nil {
		t.Fatalf("encodeHost: %v", err)
	}
	if tail != nil {
		t.Fatalf("expected no tail for short name, got %q", tail)
	}
	got, err := decodeHost(field, bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("decodeHost: %v", err)
	}
	if got != "db1" {
		t.Fatalf("got %q, want db1", got)
	}
}

func TestEncodeHostLongEscape(t *testing.T) {
	name := strings.Repeat("a", 40)
	field, tail, err := encodeHost(name)
	if err != nil {
		t.Fatalf("encodeHost: %v", err)
	}
	if field[0] != '.' {
		t.Fatalf("expected escape marker, got %v", field)
	}
	if string(tail) != name {
		t.Fatalf("tail = %q, want %q", tail, name)
	}
	got, err := decodeHost(field, bytes.NewReader(tail))
	if err != nil {
		t.Fatalf("decodeHost: %v", err)
	}
	if got != name {
		t.Fatalf("got %q, want %q", got, name)
	}
}

func TestConnectMessageRoundTrip(t *testing.T) {
	msg := ConnectMessage{
		ToHost:   "replica-b",
		ToPort:   4700,
		ChildNet: 3,
		Flags:    TLSRequired,
		FromHost: "replica-a",
		FromPort: 4700,
	}

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeConnect(&buf)
	if err != nil {
		t.Fatalf("DecodeConnect: %v", err)
	}
	if got != msg {
		t.Fatalf("got %+v, want %+v", got, msg)
	}
}

func TestConnectMessageLongHostnames(t *testing.T) {
	long := strings.Repeat("x", 48)
	msg := ConnectMessage{
		ToHost:   long,
		ToPort:   1,
		FromHost: "short",
		FromPort: 2,
	}

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeConnect(&buf)
	if err != nil {
		t.Fatalf("DecodeConnect: %v", err)
	}
	if got.ToHost != long {
		t.Fatalf("got ToHost %q, want %q", got.ToHost, long)
	}
}

func TestDecodeConnectBadTag(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01})
	buf.Write(make([]byte, 48))
	if _, err := DecodeConnect(buf); !meshErr.Is(err, meshErr.ProtocolMalformed) {
		t.Fatalf("expected ProtocolMalformed, got %v", err)
	}
}

func TestEnvelopeHeaderLen(t *testing.T) {
	if HeaderLen != 52 {
		t.Fatalf("HeaderLen = %d, want 52", HeaderLen)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		FromHost: "replica-a",
		FromPort: 4700,
		ToHost:   "replica-b",
		ToPort:   4700,
		Type:     FrameUser,
	}

	var buf bytes.Buffer
	if err := EncodeHeader(&buf, env); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	got, err := DecodeHeader(&buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != env {
		t.Fatalf("got %+v, want %+v", got, env)
	}
}

func TestHelloRoundTrip(t *testing.T) {
	payload := HelloPayload{Entries: []HelloEntry{
		{Host: "db1", Port: 4700},
		{Host: strings.Repeat("b", 30), Port: 4701},
		{Host: "db3", Port: 4702},
	}}

	var buf bytes.Buffer
	if err := EncodeHello(&buf, payload); err != nil {
		t.Fatalf("EncodeHello: %v", err)
	}
	got, err := DecodeHello(&buf)
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if len(got.Entries) != len(payload.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Entries), len(payload.Entries))
	}
	for i, e := range payload.Entries {
		if got.Entries[i].Host != e.Host || got.Entries[i].Port != e.Port {
			t.Fatalf("entry %d: got %+v, want %+v", i, got.Entries[i], e)
		}
	}
}

func TestDecomRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeDecom(&buf, "replica-a"); err != nil {
		t.Fatalf("EncodeDecom: %v", err)
	}
	got, err := DecodeDecom(&buf)
	if err != nil {
		t.Fatalf("DecodeDecom: %v", err)
	}
	if got != "replica-a" {
		t.Fatalf("got %q, want replica-a", got)
	}
}

func TestDecomHostLenRejected(t *testing.T) {
	buf := bytes.NewBuffer(appendInt32(nil, 300))
	if _, err := DecodeDecom(buf); !meshErr.Is(err, meshErr.ProtocolDecomHostLen) {
		t.Fatalf("expected ProtocolDecomHostLen, got %v", err)
	}
}

func TestUserMessageRoundTrip(t *testing.T) {
	msg := UserMessage{UserType: 7, SeqNum: 42, WaitForAck: true, Data: []byte("replicate-me")}

	var buf bytes.Buffer
	if err := EncodeUserMessage(&buf, msg); err != nil {
		t.Fatalf("EncodeUserMessage: %v", err)
	}
	got, err := DecodeUserMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeUserMessage: %v", err)
	}
	if got.UserType != msg.UserType || got.SeqNum != msg.SeqNum || got.WaitForAck != msg.WaitForAck {
		t.Fatalf("got %+v, want %+v", got, msg)
	}
	if !bytes.Equal(got.Data, msg.Data) {
		t.Fatalf("got data %q, want %q", got.Data, msg.Data)
	}
}

func TestAckRoundTrip(t *testing.T) {
	a := AckFrame{SeqNum: 9, OutRC: 0}

	var buf bytes.Buffer
	if err := EncodeAck(&buf, a); err != nil {
		t.Fatalf("EncodeAck: %v", err)
	}
	got, err := DecodeAck(&buf, false)
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if got.SeqNum != a.SeqNum || got.OutRC != a.OutRC || !bytes.Equal(got.Payload, a.Payload) {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestAckWithPayloadRoundTrip(t *testing.T) {
	a := AckFrame{SeqNum: 9, OutRC: 1, Payload: []byte("result-bytes")}

	var buf bytes.Buffer
	if err := EncodeAck(&buf, a); err != nil {
		t.Fatalf("EncodeAck: %v", err)
	}
	got, err := DecodeAck(&buf, true)
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if got.SeqNum != a.SeqNum || got.OutRC != a.OutRC || !bytes.Equal(got.Payload, a.Payload) {
		t.Fatalf("got %+v, want %+v", got, a)
	}
}

func TestAckPayloadTooLargeRejected(t *testing.T) {
	buf := bytes.NewBuffer(appendInt32(nil, 1))
	buf.Write(appendInt32(nil, 0))
	buf.Write(appendInt32(nil, MaxAckPayload+1))
	if _, err := DecodeAck(buf, true); !meshErr.Is(err, meshErr.ProtocolMalformed) {
		t.Fatalf("expected ProtocolMalformed, got %v", err)
	}
}
