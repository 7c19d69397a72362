package wire

import (
	"encoding/binary"
	"io"

	meshErr "github.com/nabbar/meshnet/errors"
)

// HelloEntry is one member of the peer list exchanged by hello/hello-reply.
type HelloEntry struct {
	Host string
	Port int32
	Node int32 // retained for wire compatibility, always zero on send
}

// HelloPayload is the body of a Hello or HelloReply frame (§4.A): a full
// membership snapshot, `datasz`/`n` followed by n hostnames, n ports, n
// node numbers, then the long-name bodies of any escaped hostnames in
// field order.
type HelloPayload struct {
	Entries []HelloEntry
}

// EncodeHello writes datasz, n, the n (possibly escaped) hostname fields,
// n ports, n node numbers, then the long-name tails in order.
func EncodeHello(w io.Writer, p HelloPayload) error {
	n := len(p.Entries)

	fields := make([][HostnameLen]byte, n)
	tails := make([][]byte, 0, n)
	for i, e := range p.Entries {
		f, tail, err := encodeHost(e.Host)
		if err != nil {
			return err
		}
		fields[i] = f
		if tail != nil {
			tails = append(tails, tail)
		}
	}

	body := make([]byte, 0, n*HostnameLen+n*8)
	for _, f := range fields {
		body = append(body, f[:]...)
	}
	for _, e := range p.Entries {
		body = appendInt32(body, e.Port)
	}
	for range p.Entries {
		body = appendInt32(body, 0) // node number, always zero
	}

	datasz := int32(len(body))
	header := make([]byte, 0, 8)
	header = appendInt32(header, datasz)
	header = appendInt32(header, int32(n))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	for _, t := range tails {
		if _, err := w.Write(t); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHello reads a HelloPayload. Entries with an escaped hostname are
// resolved last, in field order, exactly mirroring EncodeHello's layout.
func DecodeHello(r io.Reader) (HelloPayload, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return HelloPayload{}, err
	}
	n := int(int32(binary.BigEndian.Uint32(hdr[4:8])))
	if n < 0 {
		return HelloPayload{}, meshErr.New(meshErr.ProtocolMalformed, nil)
	}

	fields := make([][HostnameLen]byte, n)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, fields[i][:]); err != nil {
			return HelloPayload{}, err
		}
	}

	ports := make([]int32, n)
	for i := 0; i < n; i++ {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return HelloPayload{}, err
		}
		ports[i] = int32(binary.BigEndian.Uint32(b[:]))
	}

	nodes := make([]int32, n)
	for i := 0; i < n; i++ {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return HelloPayload{}, err
		}
		nodes[i] = int32(binary.BigEndian.Uint32(b[:]))
	}

	entries := make([]HelloEntry, n)
	for i := 0; i < n; i++ {
		host, err := decodeHost(fields[i], r)
		if err != nil {
			return HelloPayload{}, err
		}
		entries[i] = HelloEntry{Host: host, Port: ports[i], Node: nodes[i]}
	}

	return HelloPayload{Entries: entries}, nil
}

// maxDecomHostLen is the protocol-error threshold from §7: a decom
// hostname longer than this is malformed, never a legitimately long name.
const maxDecomHostLen = 256

// EncodeDecom writes `hostlen:i32 host[hostlen]` — a plain length-prefixed
// name, not the 16-byte escape form (decom names are never truncated).
func EncodeDecom(w io.Writer, host string) error {
	buf := appendInt32(nil, int32(len(host)))
	buf = append(buf, host...)
	_, err := w.Write(buf)
	return err
}

// DecodeDecom reads a decom-by-name payload, rejecting hostlen > 256
// (§7 Protocol errors).
func DecodeDecom(r io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	n := int32(binary.BigEndian.Uint32(b[:]))
	if n < 0 || n > maxDecomHostLen {
		return "", meshErr.New(meshErr.ProtocolDecomHostLen, nil)
	}
	host := make([]byte, n)
	if _, err := io.ReadFull(r, host); err != nil {
		return "", meshErr.New(meshErr.ProtocolMalformed, err)
	}
	return string(host), nil
}

// UserMessage is the application payload: `usertype:i32 seqnum:i32
// waitforack:i32 datalen:i32` then datalen opaque bytes.
type UserMessage struct {
	UserType   int32
	SeqNum     int32
	WaitForAck bool
	Data       []byte
}

func EncodeUserMessage(w io.Writer, m UserMessage) error {
	buf := appendInt32(nil, m.UserType)
	buf = appendInt32(buf, m.SeqNum)
	if m.WaitForAck {
		buf = appendInt32(buf, 1)
	} else {
		buf = appendInt32(buf, 0)
	}
	buf = appendInt32(buf, int32(len(m.Data)))
	buf = append(buf, m.Data...)
	_, err := w.Write(buf)
	return err
}

func DecodeUserMessage(r io.Reader) (UserMessage, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return UserMessage{}, err
	}
	m := UserMessage{
		UserType:   int32(binary.BigEndian.Uint32(hdr[0:4])),
		SeqNum:     int32(binary.BigEndian.Uint32(hdr[4:8])),
		WaitForAck: binary.BigEndian.Uint32(hdr[8:12]) != 0,
	}
	datalen := int32(binary.BigEndian.Uint32(hdr[12:16]))
	if datalen < 0 {
		return UserMessage{}, meshErr.New(meshErr.ProtocolMalformed, nil)
	}
	m.Data = make([]byte, datalen)
	if _, err := io.ReadFull(r, m.Data); err != nil {
		return UserMessage{}, meshErr.New(meshErr.ProtocolMalformed, err)
	}
	return m, nil
}

// MaxAckPayload is the hard cap on ack-with-payload bodies (§4.H).
const MaxAckPayload = 1024

// AckFrame carries a handler's return code and, when FrameAckPayload is
// used, a small result payload.
type AckFrame struct {
	SeqNum  int32
	OutRC   int32
	Payload []byte // nil for a plain Ack
}

func EncodeAck(w io.Writer, a AckFrame) error {
	if len(a.Payload) > MaxAckPayload {
		return meshErr.New(meshErr.ProtocolMalformed, nil)
	}
	buf := appendInt32(nil, a.SeqNum)
	buf = appendInt32(buf, a.OutRC)
	if len(a.Payload) > 0 {
		buf = appendInt32(buf, int32(len(a.Payload)))
		buf = append(buf, a.Payload...)
	}
	_, err := w.Write(buf)
	return err
}

func DecodeAck(r io.Reader, withPayload bool) (AckFrame, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return AckFrame{}, err
	}
	a := AckFrame{
		SeqNum: int32(binary.BigEndian.Uint32(hdr[0:4])),
		OutRC:  int32(binary.BigEndian.Uint32(hdr[4:8])),
	}
	if !withPayload {
		return a, nil
	}

	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return AckFrame{}, err
	}
	n := int32(binary.BigEndian.Uint32(lb[:]))
	if n < 1 || n > MaxAckPayload {
		return AckFrame{}, meshErr.New(meshErr.ProtocolMalformed, nil)
	}
	a.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, a.Payload); err != nil {
		return AckFrame{}, meshErr.New(meshErr.ProtocolMalformed, err)
	}
	return a, nil
}
