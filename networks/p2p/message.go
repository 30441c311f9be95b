// Copyright 2018 The klaytn Authors
// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from p2p/message.go (2018/06/04).
// Modified and improved for the klaytn development.

// Package p2p implements the gossip network (C7): length-framed messages,
// a challenge/response handshake, header-first block sync, and peer
// discovery/persistence.
package p2p

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/knotcoin/knotcoin/params"
)

// Magic opens every frame, rejecting traffic from unrelated protocols.
var Magic = [4]byte{'K', 'N', 'O', 'T'}

// Message type codes (spec.md §4.6 table).
const (
	MsgVersion    byte = 0x01
	MsgVerack     byte = 0x02
	MsgGetHeaders byte = 0x10
	MsgHeaders    byte = 0x11
	MsgGetBlocks  byte = 0x12
	MsgBlocks     byte = 0x13
	MsgPing       byte = 0x20
	MsgPong       byte = 0x21
	MsgChallenge  byte = 0x30
	MsgResponse   byte = 0x31
	MsgAddr       byte = 0x40
	MsgGetAddr    byte = 0x41
	MsgTx         byte = 0x50
)

var (
	ErrFrameTooLarge = errors.New("p2p: frame exceeds MaxFrameSize")
	ErrBadMagic      = errors.New("p2p: bad magic bytes")
)

// Frame is one length-framed message: MAGIC(4) || length(4 LE) || type(1)
// || body.
type Frame struct {
	Type byte
	Body []byte
}

// WriteFrame writes f to w as MAGIC || length || type || body, where length
// counts the type byte plus the body.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Body)+1 > params.MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+4+1+len(f.Body))
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(f.Body)+1))
	buf[8] = f.Type
	copy(buf[9:], f.Body)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads and validates one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, err
	}
	if head[0] != Magic[0] || head[1] != Magic[1] || head[2] != Magic[2] || head[3] != Magic[3] {
		return Frame{}, ErrBadMagic
	}
	length := binary.LittleEndian.Uint32(head[4:8])
	if length == 0 || int(length) > params.MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Type: payload[0], Body: payload[1:]}, nil
}

// deadlineConn wraps net.Conn to apply a fixed read/write deadline before
// every frame during the handshake window; the caller clears it (Deadline
// zero value) once the peer is established.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func withDeadline(c net.Conn, d time.Duration) *deadlineConn { return &deadlineConn{Conn: c, timeout: d} }

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Write(b)
}
