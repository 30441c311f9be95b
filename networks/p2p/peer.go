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
// This file is derived from node/cn/peer.go (2018/06/04).
// Modified and improved for the klaytn development.

package p2p

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
	"github.com/knotcoin/knotcoin/log"
	"github.com/knotcoin/knotcoin/params"
)

var logger = log.NewModuleLogger(log.P2P)

const (
	maxKnownBlocks = 1024
	maxKnownTxs    = 32768

	// broadcastQueueSize is the bounded per-peer relay channel (spec.md §5
	// backpressure: "overflow drops oldest outgoing relay").
	broadcastQueueSize = 256
)

var (
	errClosed            = errors.New("p2p: peer set is closed")
	errAlreadyRegistered = errors.New("p2p: peer already registered")
	errNotRegistered     = errors.New("p2p: peer not registered")
	errHandshakeFailed   = errors.New("p2p: handshake failed")
)

// outboundMsg is one queued frame awaiting relay to a peer's broadcast loop.
type outboundMsg struct {
	frame Frame
}

// Peer wraps one established, post-handshake TCP connection. Reads are
// dispatched strictly FIFO (spec.md §5(e)); writes are serialized through a
// single broadcast goroutine reading off a bounded channel so no caller ever
// blocks on a slow remote.
type Peer struct {
	conn    net.Conn
	Inbound bool

	addr netAddr

	knownBlocks *lru.Cache
	knownTxs    *lru.Cache

	out    chan outboundMsg
	closed chan struct{}
	once   sync.Once

	height uint32
	mu     sync.Mutex
}

func newPeer(conn net.Conn, inbound bool) *Peer {
	kb, _ := lru.New(maxKnownBlocks)
	kt, _ := lru.New(maxKnownTxs)
	return &Peer{
		conn:        conn,
		Inbound:     inbound,
		knownBlocks: kb,
		knownTxs:    kt,
		out:         make(chan outboundMsg, broadcastQueueSize),
		closed:      make(chan struct{}),
	}
}

func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

func (p *Peer) Height() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *Peer) SetHeight(h uint32) {
	p.mu.Lock()
	p.height = h
	p.mu.Unlock()
}

func (p *Peer) KnowsBlock(h common.Hash) bool {
	_, ok := p.knownBlocks.Get(h)
	return ok
}

func (p *Peer) MarkBlock(h common.Hash) { p.knownBlocks.Add(h, struct{}{}) }

func (p *Peer) KnowsTx(h common.Hash) bool {
	_, ok := p.knownTxs.Get(h)
	return ok
}

func (p *Peer) MarkTx(h common.Hash) { p.knownTxs.Add(h, struct{}{}) }

// enqueue stages a frame on the bounded broadcast queue. A full queue drops
// the oldest pending frame, per spec.md §5 backpressure policy: sync is
// pull-driven by headers, so dropping a relay is safe.
func (p *Peer) enqueue(f Frame) {
	select {
	case p.out <- outboundMsg{frame: f}:
	default:
		select {
		case <-p.out:
		default:
		}
		select {
		case p.out <- outboundMsg{frame: f}:
		default:
		}
	}
}

// broadcastLoop is the sole writer goroutine for this peer; every outbound
// frame is serialized through it so no caller blocks on a slow socket.
func (p *Peer) broadcastLoop() {
	for {
		select {
		case <-p.closed:
			return
		case m := <-p.out:
			if err := WriteFrame(p.conn, m.frame); err != nil {
				p.Close()
				return
			}
		}
	}
}

func (p *Peer) Close() {
	p.once.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

func (p *Peer) Done() <-chan struct{} { return p.closed }

// handshake runs the full Version -> Challenge -> Response -> Verack
// exchange in both directions, bounded by params.HandshakeTimeoutSecs.
// Returns the peer's reported height.
func handshake(conn net.Conn, ourHeight uint32, localTest bool) (uint32, error) {
	dc := withDeadline(conn, params.HandshakeTimeoutSecs*time.Second)

	if err := WriteFrame(dc, Frame{Type: MsgVersion, Body: encodeVersion(ourHeight)}); err != nil {
		return 0, err
	}

	var peerHeight uint32
	var gotVersion, gotVerack bool
	var sentChallenge [32]byte
	var sentResponse, gotResponse, sentVerack bool

	if _, err := rand.Read(sentChallenge[:]); err != nil {
		return 0, err
	}
	if err := WriteFrame(dc, Frame{Type: MsgChallenge, Body: sentChallenge[:]}); err != nil {
		return 0, err
	}

	for !gotVerack || !sentVerack {
		f, err := ReadFrame(dc)
		if err != nil {
			return 0, err
		}
		switch f.Type {
		case MsgVersion:
			h, err := decodeVersion(f.Body)
			if err != nil {
				return 0, err
			}
			peerHeight = h
			gotVersion = true
		case MsgChallenge:
			if len(f.Body) != 32 {
				return 0, errHandshakeFailed
			}
			resp := crypto.Sha3_256(f.Body)
			if err := WriteFrame(dc, Frame{Type: MsgResponse, Body: resp[:]}); err != nil {
				return 0, err
			}
			sentResponse = true
		case MsgResponse:
			want := crypto.Sha3_256(sentChallenge[:])
			if len(f.Body) != 32 || !hashEqual(want, f.Body) {
				return 0, errHandshakeFailed
			}
			gotResponse = true
		case MsgVerack:
			gotVerack = true
		default:
			// ignore anything else arriving mid-handshake
		}
		if !sentVerack && gotVersion && sentResponse && gotResponse {
			if err := WriteFrame(dc, Frame{Type: MsgVerack}); err != nil {
				return 0, err
			}
			sentVerack = true
		}
	}

	return peerHeight, nil
}

func hashEqual(h common.Hash, b []byte) bool {
	for i := range h {
		if h[i] != b[i] {
			return false
		}
	}
	return true
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	private := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"}
	for _, cidr := range private {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}
	return false
}

// tcpAddrToNetAddr converts a dialable net.Addr to the wire netAddr form.
func tcpAddrToNetAddr(a net.Addr) (netAddr, error) {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		return netAddr{}, fmt.Errorf("p2p: not a TCP address: %v", a)
	}
	return netAddr{IP: tcp.IP, Port: uint16(tcp.Port)}, nil
}
