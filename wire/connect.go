package wire

import (
	"encoding/binary"
	"io"

	meshErr "github.com/nabbar/meshnet/errors"
)

// ConnectFlag is the bitset carried by the one-shot connect message.
type ConnectFlag uint32

// TLSRequired is the only defined connect flag bit (§6): the low 16 bits
// are reserved for the historical node number and always zero here.
const TLSRequired ConnectFlag = 1 << 31

// connectTag is the single byte that precedes every connect message,
// distinguishing it from an appsock client's first byte (§4.D accept path:
// "if first byte is 0" it's a connect message).
const connectTag = 0x00

// ConnectMessage is the first frame exchanged in either direction right
// after TCP accept/connect (§4.A).
type ConnectMessage struct {
	ToHost   string
	ToPort   uint16
	ChildNet uint8
	Flags    ConnectFlag
	FromHost string
	FromPort uint16
}

// Encode writes the one-shot tag byte followed by the fixed 48-byte
// record and any long-hostname tails, in ToHost-then-FromHost order.
func (c ConnectMessage) Encode(w io.Writer) error {
	toField, toTail, err := encodeHost(c.ToHost)
	if err != nil {
		return err
	}
	fromField, fromTail, err := encodeHost(c.FromHost)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 49)
	buf = append(buf, connectTag)
	buf = append(buf, toField[:]...)
	buf = appendInt32(buf, packPort(c.ToPort, c.ChildNet))
	buf = appendInt32(buf, int32(c.Flags))
	buf = append(buf, fromField[:]...)
	buf = appendInt32(buf, packPort(c.FromPort, 0))
	buf = appendInt32(buf, 0) // from_node, always zero (§4.A)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(toTail) > 0 {
		if _, err := w.Write(toTail); err != nil {
			return err
		}
	}
	if len(fromTail) > 0 {
		if _, err := w.Write(fromTail); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConnect reads the tag byte and the fixed record; the caller must
// have already peeked the tag byte per the accept path (§4.D step 4/5) —
// DecodeConnect re-reads it here so it can also be used stream-first by a
// dialer that always expects a connect message.
func DecodeConnect(r io.Reader) (ConnectMessage, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return ConnectMessage{}, err
	}
	if tag[0] != connectTag {
		return ConnectMessage{}, meshErr.New(meshErr.ProtocolMalformed, nil)
	}

	rec := make([]byte, 48)
	if _, err := io.ReadFull(r, rec); err != nil {
		return ConnectMessage{}, meshErr.New(meshErr.ProtocolMalformed, err)
	}

	var toField, fromField [HostnameLen]byte
	copy(toField[:], rec[0:16])
	toPortRaw := int32(binary.BigEndian.Uint32(rec[16:20]))
	flags := int32(binary.BigEndian.Uint32(rec[20:24]))
	copy(fromField[:], rec[24:40])
	fromPortRaw := int32(binary.BigEndian.Uint32(rec[40:44]))
	// rec[44:48] is from_node, retained for wire compatibility, ignored.

	toHost, err := decodeHost(toField, r)
	if err != nil {
		return ConnectMessage{}, err
	}
	fromHost, err := decodeHost(fromField, r)
	if err != nil {
		return ConnectMessage{}, err
	}

	toPort, childNet := unpackPort(toPortRaw)
	fromPort, _ := unpackPort(fromPortRaw)

	return ConnectMessage{
		ToHost:   toHost,
		ToPort:   toPort,
		ChildNet: childNet,
		Flags:    ConnectFlag(flags),
		FromHost: fromHost,
		FromPort: fromPort,
	}, nil
}

func packPort(port uint16, childNet uint8) int32 {
	return int32(uint32(childNet&0x0F)<<16 | uint32(port))
}

func unpackPort(raw int32) (port uint16, childNet uint8) {
	u := uint32(raw)
	return uint16(u & 0xFFFF), uint8((u >> 16) & 0x0F)
}

func appendInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}
