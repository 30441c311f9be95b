// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package p2p

import (
	"errors"
	"sync"

	"github.com/knotcoin/knotcoin/params"
)

var (
	ErrTooManyInboundPeers  = errors.New("p2p: too many inbound peers")
	ErrTooManyOutboundPeers = errors.New("p2p: too many outbound peers")
)

// PeerSet is the connection registry: one mutex guards lookups/counts, never
// held across I/O (spec.md §5's "lock" requirement). Caps on outbound and
// inbound counts are enforced here, the single chokepoint every accepted or
// dialed connection passes through before being promoted to a live Peer.
type PeerSet struct {
	mu     sync.Mutex
	peers  map[string]*Peer
	closed bool
}

func newPeerSet() *PeerSet {
	return &PeerSet{peers: make(map[string]*Peer)}
}

// Register adds p to the set, rejecting it if the set is closed, the peer's
// remote address is already registered, or the relevant connection cap
// (§4.6 "max 32 outbound, max 128 inbound") is already saturated.
func (ps *PeerSet) Register(key string, p *Peer) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return errClosed
	}
	if _, ok := ps.peers[key]; ok {
		return errAlreadyRegistered
	}
	var inbound, outbound int
	for _, existing := range ps.peers {
		if existing.Inbound {
			inbound++
		} else {
			outbound++
		}
	}
	if p.Inbound && inbound >= params.MaxInboundPeers {
		return ErrTooManyInboundPeers
	}
	if !p.Inbound && outbound >= params.MaxOutboundPeers {
		return ErrTooManyOutboundPeers
	}
	ps.peers[key] = p
	return nil
}

func (ps *PeerSet) Unregister(key string) {
	ps.mu.Lock()
	p, ok := ps.peers[key]
	if ok {
		delete(ps.peers, key)
	}
	ps.mu.Unlock()
	if ok {
		p.Close()
	}
}

func (ps *PeerSet) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.peers)
}

// Snapshot returns every currently registered peer, safe to range over after
// the lock is released.
func (ps *PeerSet) Snapshot() []*Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	return out
}

// BestHeight returns the highest height any currently registered peer has
// reported.
func (ps *PeerSet) BestHeight() uint32 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	var best uint32
	for _, p := range ps.peers {
		if h := p.Height(); h > best {
			best = h
		}
	}
	return best
}

func (ps *PeerSet) Close() {
	ps.mu.Lock()
	ps.closed = true
	peers := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		peers = append(peers, p)
	}
	ps.peers = make(map[string]*Peer)
	ps.mu.Unlock()
	for _, p := range peers {
		p.Close()
	}
}

// Broadcast relays frame to every peer in the set except those recorded as
// already knowing it (tracked per-message-kind by the caller via skip).
func (ps *PeerSet) Broadcast(frame Frame, skip func(*Peer) bool) {
	for _, p := range ps.Snapshot() {
		if skip != nil && skip(p) {
			continue
		}
		p.enqueue(frame)
	}
}
