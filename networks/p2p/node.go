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
//
// This file is derived from node/cn/protocol.go's protocol-manager shape
// (2018/06/04): a listener/dialer pair feeding a shared peer set, each
// connection driven by its own read goroutine dispatching into the state
// machine, plus a handful of cancellable background tasks (bootstrap
// dialer, periodic top-up, addr gossip) whose only suspension points are
// timers and channels, per spec.md §5.

// Package p2p implements the gossip network (C7): length-framed messages,
// a challenge/response handshake, header-first block sync, and peer
// discovery/persistence.
package p2p

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/storage/database"
)

// Config holds the external configuration surface described in spec.md §6.
type Config struct {
	BindAddr       string
	Port           int
	BootstrapSeeds []string
	LocalTest      bool
	PeersFile      string
}

// Node is one running P2P endpoint: a listener accepting inbound
// connections, a background dialer filling outbound slots from the known
// address set, and the shared peer registry and sync state machine every
// connection feeds into.
type Node struct {
	cfg  Config
	db   database.DBManager
	pool *mempool.Pool

	peers *PeerSet
	addrs *AddressBook

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, db database.DBManager, pool *mempool.Pool) *Node {
	return &Node{
		cfg:   cfg,
		db:    db,
		pool:  pool,
		peers: newPeerSet(),
		addrs: NewAddressBook(cfg.PeersFile, cfg.LocalTest),
		quit:  make(chan struct{}),
	}
}

// Start opens the listener, loads the persisted address book, resolves the
// bootstrap seeds, and launches the background dialer/gossip tasks. It does
// not block.
func (n *Node) Start() error {
	if err := n.addrs.Load(); err != nil {
		logger.Warn("failed to load known-peer list", "err", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", n.cfg.BindAddr, n.cfg.Port))
	if err != nil {
		return err
	}
	n.listener = ln

	n.wg.Add(1)
	go n.acceptLoop()

	n.resolveBootstrapSeeds()

	n.wg.Add(1)
	go n.dialLoop()

	logger.Info("p2p listening", "addr", ln.Addr())
	return nil
}

func (n *Node) Stop() {
	close(n.quit)
	if n.listener != nil {
		n.listener.Close()
	}
	n.peers.Close()
	n.wg.Wait()
}

func (n *Node) PeerCount() int { return n.peers.Len() }

// PeerInfo is the RPC-facing summary of one connected peer (getpeerinfo).
type PeerInfo struct {
	Addr    string `json:"addr"`
	Inbound bool   `json:"inbound"`
	Height  uint32 `json:"height"`
}

func (n *Node) GetPeerInfo() []PeerInfo {
	snap := n.peers.Snapshot()
	out := make([]PeerInfo, len(snap))
	for i, p := range snap {
		out[i] = PeerInfo{Addr: p.RemoteAddr().String(), Inbound: p.Inbound, Height: p.Height()}
	}
	return out
}

func (n *Node) resolveBootstrapSeeds() {
	for _, seed := range n.cfg.BootstrapSeeds {
		host, portStr, err := net.SplitHostPort(seed)
		if err != nil {
			host, portStr = seed, fmt.Sprintf("%d", n.cfg.Port)
		}
		ips, err := net.LookupIP(host)
		if err != nil {
			logger.Warn("failed to resolve bootstrap seed", "seed", seed, "err", err)
			continue
		}
		var port uint16
		fmt.Sscanf(portStr, "%d", &port)
		for _, ip := range ips {
			n.addrs.Add(netAddr{IP: ip, Port: port}, uint16(n.cfg.Port))
		}
	}
}

// AddNode dials addr immediately, bypassing the background dialer; used by
// the addnode RPC.
func (n *Node) AddNode(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, params.DialTimeoutSecs*time.Second)
	if err != nil {
		return err
	}
	n.wg.Add(1)
	go n.handleConn(conn, false)
	return nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
				logger.Error("accept failed", "err", err)
				return
			}
		}
		if !n.cfg.LocalTest {
			if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok && isPrivateIP(tcp.IP) {
				conn.Close()
				continue
			}
		}
		n.wg.Add(1)
		go n.handleConn(conn, true)
	}
}

// dialLoop is the background dialer: it periodically tops up outbound
// slots from the known-address set, never holding a lock across the dial
// timer itself (spec.md §9).
func (n *Node) dialLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.quit:
			return
		case <-ticker.C:
			n.topUpOutbound()
		}
	}
}

func (n *Node) topUpOutbound() {
	snap := n.peers.Snapshot()
	outbound := 0
	connected := make(map[string]bool, len(snap))
	for _, p := range snap {
		if !p.Inbound {
			outbound++
		}
		connected[p.RemoteAddr().String()] = true
	}
	if outbound >= params.MaxOutboundPeers {
		return
	}
	for _, a := range n.addrs.Sample(params.MaxOutboundPeers) {
		if outbound >= params.MaxOutboundPeers {
			return
		}
		target := fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
		if connected[target] {
			continue
		}
		conn, err := net.DialTimeout("tcp", target, params.DialTimeoutSecs*time.Second)
		if err != nil {
			continue
		}
		outbound++
		n.wg.Add(1)
		go n.handleConn(conn, false)
	}
}

// handleConn drives one connection end to end: handshake, registration,
// the broadcast writer, and the strictly-FIFO read-dispatch loop, until the
// peer disconnects or is closed.
func (n *Node) handleConn(conn net.Conn, inbound bool) {
	defer n.wg.Done()

	ourTip, _, _ := n.db.GetTip()
	var ourHeight uint32
	if blk, err := n.db.GetBlock(ourTip); err == nil && blk != nil {
		ourHeight = blk.Height()
	}

	peerHeight, err := handshake(conn, ourHeight, n.cfg.LocalTest)
	if err != nil {
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Time{})

	p := newPeer(conn, inbound)
	p.SetHeight(peerHeight)
	key := conn.RemoteAddr().String()

	if err := n.peers.Register(key, p); err != nil {
		conn.Close()
		return
	}
	defer n.peers.Unregister(key)

	logger.Info("peer connected", "addr", key, "inbound", inbound, "height", peerHeight)

	go p.broadcastLoop()

	n.requestHeaders(p, ourTip)
	p.enqueue(Frame{Type: MsgGetAddr})
	n.sendKnownAddrs(p)

	for {
		conn.SetReadDeadline(time.Time{})
		f, err := ReadFrame(conn)
		if err != nil {
			logger.Debug("peer read failed, closing", "addr", key, "err", err)
			return
		}
		n.dispatch(p, f)
	}
}

func (n *Node) requestHeaders(p *Peer, fromHash common.Hash) {
	p.enqueue(Frame{Type: MsgGetHeaders, Body: fromHash[:]})
}

func (n *Node) sendKnownAddrs(p *Peer) {
	sample := n.addrs.Sample(32)
	addrs := make([]netAddr, len(sample))
	copy(addrs, sample)
	p.enqueue(Frame{Type: MsgAddr, Body: encodeAddrList(addrs)})
}

// dispatch is the single message switch every inbound frame passes through,
// read and handled strictly in arrival order (spec.md §5(e)).
func (n *Node) dispatch(p *Peer, f Frame) {
	switch f.Type {
	case MsgVersion:
		if h, err := decodeVersion(f.Body); err == nil {
			p.SetHeight(h)
		}
	case MsgPing:
		if nonce, err := decodePingPong(f.Body); err == nil {
			p.enqueue(Frame{Type: MsgPong, Body: encodePingPong(nonce)})
		}
	case MsgPong:
		// no-op: liveness only.
	case MsgGetHeaders:
		n.handleGetHeaders(p, f.Body)
	case MsgHeaders:
		n.handleHeaders(p, f.Body)
	case MsgGetBlocks:
		n.handleGetBlocks(p, f.Body)
	case MsgBlocks:
		n.handleBlocks(p, f.Body)
	case MsgTx:
		n.handleTx(p, f.Body)
	case MsgGetAddr:
		n.sendKnownAddrs(p)
	case MsgAddr:
		n.handleAddr(p, f.Body)
	default:
		logger.Debug("unknown message type", "type", f.Type)
	}
}

func (n *Node) handleGetHeaders(p *Peer, body []byte) {
	if len(body) != common.HashLength {
		return
	}
	from := common.BytesToHash(body)
	blk, err := n.db.GetBlock(from)
	if err != nil || blk == nil {
		return
	}
	hashes := make([]common.Hash, 0, params.MaxHeadersPerMessage)
	height := blk.Height() + 1
	for len(hashes) < params.MaxHeadersPerMessage {
		hash, ok, err := n.db.GetBlockHashByHeight(height)
		if err != nil || !ok {
			break
		}
		hashes = append(hashes, hash)
		height++
	}
	p.enqueue(Frame{Type: MsgHeaders, Body: encodeHashList(hashes)})
}

func (n *Node) handleHeaders(p *Peer, body []byte) {
	hashes, err := decodeHashList(body, params.MaxHeadersPerMessage)
	if err != nil {
		return
	}
	missing := make([]common.Hash, 0, len(hashes))
	for _, h := range hashes {
		known, err := n.db.HasBlock(h)
		if err != nil {
			return
		}
		if !known {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return
	}
	if len(missing) > params.MaxBlocksPerMessage {
		missing = missing[:params.MaxBlocksPerMessage]
	}
	p.enqueue(Frame{Type: MsgGetBlocks, Body: encodeHashList(missing)})
}

func (n *Node) handleGetBlocks(p *Peer, body []byte) {
	hashes, err := decodeHashList(body, params.MaxBlocksPerMessage)
	if err != nil {
		return
	}
	blocks := make([]*types.Block, 0, len(hashes))
	for _, h := range hashes {
		blk, err := n.db.GetBlock(h)
		if err != nil || blk == nil {
			continue
		}
		blocks = append(blocks, blk)
		p.MarkBlock(h)
	}
	if len(blocks) == 0 {
		return
	}
	p.enqueue(Frame{Type: MsgBlocks, Body: encodeBlockList(blocks)})
}

func (n *Node) handleAddr(p *Peer, body []byte) {
	addrs, err := decodeAddrList(body)
	if err != nil {
		return
	}
	learned := make([]netAddr, 0, len(addrs))
	for _, a := range addrs {
		if n.addrs.Add(a, uint16(n.cfg.Port)) {
			learned = append(learned, a)
			if len(learned) >= params.MaxGossipedAddresses {
				break
			}
		}
	}
	if len(learned) == 0 {
		return
	}
	frame := Frame{Type: MsgAddr, Body: encodeAddrList(learned)}
	n.peers.Broadcast(frame, func(peer *Peer) bool { return peer == p })
}

// BroadcastTx relays tx to every peer that has not already seen it. except,
// if non-nil, is additionally skipped (the peer tx arrived from).
func (n *Node) BroadcastTx(tx *types.Transaction, except *Peer) {
	id := tx.ID()
	frame := Frame{Type: MsgTx, Body: tx.Encode()}
	n.peers.Broadcast(frame, func(p *Peer) bool {
		if p == except || p.KnowsTx(id) {
			return true
		}
		p.MarkTx(id)
		return false
	})
}

// broadcastNewTip announces the new tip to every peer via a bounded
// GetHeaders-style nudge: peers pull full headers themselves, so only a
// lightweight Version update is sent (spec.md §4.6's sync is pull-driven).
func (n *Node) broadcastNewTip(tip common.Hash) {
	blk, err := n.db.GetBlock(tip)
	if err != nil || blk == nil {
		return
	}
	frame := Frame{Type: MsgVersion, Body: encodeVersion(blk.Height())}
	n.peers.Broadcast(frame, nil)
}
