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
// This file is derived from internal/gxapi/backend.go (2018/06/04): the
// Backend interface that every Public*API groups against, so the JSON-RPC
// transport (out of scope for this module) never touches the chain store,
// mempool or miner directly.

// Package rpc is the narrow surface the external JSON-RPC façade calls into
// (spec.md §6's "RPC surface"): one Backend composing the chain store, the
// mempool and the miner, and a handful of Public*API method groups mirroring
// klaytn's internal/gxapi split (PublicBlockChainAPI, PublicTxPoolAPI, ...).
// This package owns no transport, no HTTP listener and no auth — those are
// the façade's job; it only owns the operations the façade forwards to.
package rpc

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/knotcoin/knotcoin/mempool"
	"github.com/knotcoin/knotcoin/networks/p2p"
	"github.com/knotcoin/knotcoin/params"
	"github.com/knotcoin/knotcoin/storage/database"
	"github.com/knotcoin/knotcoin/work"
)

// Error codes per spec.md §7: invalid params -> -32602, internal -> -32603,
// method not found -> -32601. The façade maps Go errors it receives from
// this package onto these JSON-RPC codes; Error lets it do so without
// string-sniffing.
const (
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeMethodNotFound = -32601
)

// Error is a JSON-RPC-shaped error a Public*API method can return.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func invalidParams(msg string) *Error { return &Error{Code: CodeInvalidParams, Message: msg} }
func internal(err error) *Error       { return &Error{Code: CodeInternal, Message: err.Error()} }

var errNoTip = errors.New("rpc: chain has no tip yet")
var errNoP2P = errors.New("rpc: node was started without a P2P layer")
var errNoShutdownHook = errors.New("rpc: no shutdown hook was registered for this backend")

// Backend wires the consensus core's components together for the RPC
// surface: the chain store, the mempool, the miner, and the P2P node.
type Backend struct {
	DB     database.DBManager
	Pool   *mempool.Pool
	Miner  *work.Miner
	P2P    *p2p.Node
	Cookie string // bearer token every RPC call must present, per spec.md §6
}

// NewBackend composes a Backend from already-constructed components; it
// performs no I/O itself.
func NewBackend(db database.DBManager, pool *mempool.Pool, miner *work.Miner, node *p2p.Node, cookie string) *Backend {
	return &Backend{DB: db, Pool: pool, Miner: miner, P2P: node, Cookie: cookie}
}

// Authenticate reports whether token matches the backend's cookie, per
// spec.md §6: "Every RPC invocation MUST present a bearer token equal to
// the contents of .cookie; otherwise the request is refused unauthenticated."
func (b *Backend) Authenticate(token string) bool {
	return token != "" && token == b.Cookie
}

// defaultGovernanceParamsRecord mirrors params.DefaultGovernanceParams in the
// chain store's persisted record shape, used until the first governance
// vote round concludes and a record is actually written.
func defaultGovernanceParamsRecord() database.GovernanceParamsRecord {
	def := params.DefaultGovernanceParams()
	return database.GovernanceParamsRecord{
		PoncRounds:   def.PoncRounds,
		CapBps:       def.CapBps,
		RetargetSecs: def.RetargetSecs,
	}
}

// hashFromHex32 parses a 32-byte hex-encoded identifier (a governance
// proposal id), accepting an optional "0x" prefix.
func hashFromHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errBadProposalLength
	}
	copy(out[:], b)
	return out, nil
}

var errBadProposalLength = errors.New("rpc: proposal id must decode to exactly 32 bytes")

// decodeHex decodes a hex string, accepting an optional "0x" prefix; shared
// by every RPC method that takes raw wire bytes as a hex argument.
func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
