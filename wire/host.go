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

// Package wire implements the bit-exact frame layouts of §4.A/§6: the
// one-shot connect message and the 52-byte (see HeaderLen in envelope.go)
// envelope, with its five frame kinds, and the long-hostname escape
// that lets a 16-byte field carry an arbitrary DNS name.
package wire

import (
	"bytes"
	"io"
	"strconv"

	meshErr "github.com/nabbar/meshnet/errors"
)

// HostnameLen is the fixed width of every host field on the wire.
const HostnameLen = 16

// maxEscapedLen bounds the decimal length prefix so it always fits in the
// 15 remaining bytes of the field (HostnameLen-1 digit bytes at most).
const maxEscapedLen = HostnameLen - 1

// encodeHost packs name into a fixed HostnameLen field. If name fits
// (<=15 bytes) it is copied and zero-padded in place. Otherwise the field
// is replaced with the '.'+decimal-length escape and the literal name is
// returned as a tail to be appended after the record's fixed section, per
// §9 "Long-hostname escape".
func encodeHost(name string) (field [HostnameLen]byte, tail []byte, err error) {
	if len(name) <= HostnameLen-1 {
		copy(field[:], name)
		return field, nil, nil
	}

	lenStr := strconv.Itoa(len(name))
	if len(lenStr)+1 > maxEscapedLen {
		return field, nil, meshErr.New(meshErr.ProtocolBadEscape, nil)
	}

	field[0] = '.'
	copy(field[1:], lenStr)
	return field, []byte(name), nil
}

// decodeHost reads the literal or escaped name starting from field. When
// escaped, the literal bytes are read from tail (the stream positioned
// right after the record's fixed section, in field order).
func decodeHost(field [HostnameLen]byte, tail io.Reader) (string, error) {
	if field[0] != '.' {
		if end := bytes.IndexByte(field[:], 0); end >= 0 {
			return string(field[:end]), nil
		}
		return string(field[:]), nil
	}

	end := 1
	for end < HostnameLen && field[end] != 0 {
		end++
	}

	n, err := strconv.Atoi(string(field[1:end]))
	if err != nil || n <= 0 {
		return "", meshErr.New(meshErr.ProtocolBadEscape, err)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(tail, buf); err != nil {
		return "", meshErr.New(meshErr.ProtocolBadEscape, err)
	}
	return string(buf), nil
}

// isEscaped reports whether field encodes a long-hostname escape rather
// than carrying the literal name in place.
func isEscaped(field [HostnameLen]byte) bool {
	return field[0] == '.'
}
