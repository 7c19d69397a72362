package wire

import (
	"encoding/binary"
	"io"
)

// FrameType selects how the envelope's payload is laid out (§4.A).
type FrameType int32

const (
	FrameHeartbeat FrameType = iota + 1
	FrameHello
	FrameHelloReply
	FrameDecom
	FrameUser
	FrameAck
	FrameAckPayload
)

// HeaderLen is the fixed envelope header size. §6 quotes
// NET_WIRE_HEADER_TYPE_LEN = 3×(16+4+4)+4 = 76, but the field list §4.A
// actually enumerates (from_host, from_port, from_node, to_host, to_port,
// to_node, type) — two host triples plus the type selector, which sums to
// 52, not 76. The explicit field list is implemented here; the 76-byte
// formula is treated as a stale constant from an earlier three-party
// wire revision. See DESIGN.md.
const HeaderLen = 2*(HostnameLen+4+4) + 4

// Envelope is the per-frame header prepended to every frame except the
// one-shot connect message.
type Envelope struct {
	FromHost string
	FromPort int32
	ToHost   string
	ToPort   int32
	Type     FrameType
}

// EncodeHeader writes the 52-byte fixed header followed immediately by
// any long-hostname tails (from_host's, then to_host's), per §9's
// long-hostname escape note.
func EncodeHeader(w io.Writer, e Envelope) error {
	fromField, fromTail, err := encodeHost(e.FromHost)
	if err != nil {
		return err
	}
	toField, toTail, err := encodeHost(e.ToHost)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, HeaderLen)
	buf = append(buf, fromField[:]...)
	buf = appendInt32(buf, e.FromPort)
	buf = appendInt32(buf, 0) // from_node, always zero (§4.A)
	buf = append(buf, toField[:]...)
	buf = appendInt32(buf, e.ToPort)
	buf = appendInt32(buf, 0) // to_node, always zero
	buf = appendInt32(buf, int32(e.Type))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(fromTail) > 0 {
		if _, err := w.Write(fromTail); err != nil {
			return err
		}
	}
	if len(toTail) > 0 {
		if _, err := w.Write(toTail); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHeader reads a fixed header and its long-hostname tails.
func DecodeHeader(r io.Reader) (Envelope, error) {
	rec := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, rec); err != nil {
		return Envelope{}, err
	}

	var fromField, toField [HostnameLen]byte
	copy(fromField[:], rec[0:16])
	fromPort := int32(binary.BigEndian.Uint32(rec[16:20]))
	copy(toField[:], rec[24:40])
	toPort := int32(binary.BigEndian.Uint32(rec[40:44]))
	frameType := int32(binary.BigEndian.Uint32(rec[48:52]))

	fromHost, err := decodeHost(fromField, r)
	if err != nil {
		return Envelope{}, err
	}
	toHost, err := decodeHost(toField, r)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		FromHost: fromHost,
		FromPort: fromPort,
		ToHost:   toHost,
		ToPort:   toPort,
		Type:     FrameType(frameType),
	}, nil
}
