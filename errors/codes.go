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

// Package errors provides the closed return-code enumeration the transport
// uses at its public boundary, plus a small parent-error chain so a caller
// can both switch on a stable code and log a full cause chain.
package errors

import (
	"fmt"
)

// CodeError is a small numeric classification, similar in spirit to an
// HTTP status code: callers pattern-match on it, logs carry the richer
// message and parent chain.
type CodeError uint16

const (
	OK CodeError = iota
	InvalidNode
	SendToMe
	NoSocket
	Closed
	WriteFail
	QueueFull
	MallocFail
	Timeout
	InvalidAckRC
	Internal

	// protocol-level codes, never returned to the application (§7): they
	// only ever drive a socket close + reconnect and a log line.
	ProtocolMalformed
	ProtocolNameMismatch
	ProtocolEnvelopeParse
	ProtocolBadEscape
	ProtocolDecomHostLen

	ConfigInvalid
)

var messages = map[CodeError]string{
	OK:                    "ok",
	InvalidNode:           "unknown peer",
	SendToMe:              "refusing to send to own hostname",
	NoSocket:              "peer has no open socket",
	Closed:                "peer connection is closing",
	WriteFail:             "write to peer socket failed",
	QueueFull:             "peer send queue is full",
	MallocFail:            "failed to allocate frame buffer",
	Timeout:               "ack wait timed out",
	InvalidAckRC:          "handler returned a negative ack code",
	Internal:              "internal error",
	ProtocolMalformed:     "malformed wire frame",
	ProtocolNameMismatch:  "connect message target host/port mismatch",
	ProtocolEnvelopeParse: "failed to parse envelope",
	ProtocolBadEscape:     "invalid long-hostname escape",
	ProtocolDecomHostLen:  "decom hostname length exceeds limit",
	ConfigInvalid:         "configuration failed validation",
}

// Message returns the registered human-readable message for code, or a
// generic fallback if none was registered.
func Message(code CodeError) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "unknown error"
}

// Error wraps a CodeError with an optional parent cause. It implements the
// standard error interface and unwraps to its parent so errors.Is/As keep
// working across the boundary.
type Error struct {
	code   CodeError
	parent error
}

// New returns an Error for code, chaining parent if non-nil.
func New(code CodeError, parent error) *Error {
	return &Error{code: code, parent: parent}
}

func (e *Error) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %v", Message(e.code), e.parent)
	}
	return Message(e.code)
}

// Unwrap exposes the parent cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.parent
}

// Code returns the closed return code carried by e.
func (e *Error) Code() CodeError {
	return e.code
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code CodeError) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.code == code {
				return true
			}
			err = e.parent
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
