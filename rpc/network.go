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
// This file is derived from api/api_public_net.go's PublicNetAPI shape
// (2018/06/04): peer count and peer listing delegate straight to the node's
// protocol manager.

package rpc

// PublicNetworkAPI exposes the P2P-operations group of spec.md §6: addnode,
// getpeerinfo, getbootstrapcheck, plus the lifecycle stop call.
type PublicNetworkAPI struct {
	b      *Backend
	onStop func()
}

// NewPublicNetworkAPI constructs the network API group. onStop is invoked by
// Stop to trigger the node's graceful shutdown sequence (cmd/knotcoind wires
// this to its own signal-driven shutdown path); it may be nil in contexts
// that do not support remote shutdown.
func NewPublicNetworkAPI(b *Backend, onStop func()) *PublicNetworkAPI {
	return &PublicNetworkAPI{b: b, onStop: onStop}
}

// AddNode dials addr ("host:port") immediately, outside the background
// dialer's periodic top-up.
func (api *PublicNetworkAPI) AddNode(addr string) *Error {
	if api.b.P2P == nil {
		return internal(errNoP2P)
	}
	if err := api.b.P2P.AddNode(addr); err != nil {
		return internal(err)
	}
	return nil
}

func (api *PublicNetworkAPI) GetPeerInfo() []networkPeerInfo {
	if api.b.P2P == nil {
		return nil
	}
	infos := api.b.P2P.GetPeerInfo()
	out := make([]networkPeerInfo, len(infos))
	for i, p := range infos {
		out[i] = networkPeerInfo{Addr: p.Addr, Inbound: p.Inbound, Height: p.Height}
	}
	return out
}

type networkPeerInfo struct {
	Addr    string `json:"addr"`
	Inbound bool   `json:"inbound"`
	Height  uint32 `json:"height"`
}

// GetBootstrapCheck reports whether the node currently has at least one
// live peer connection, the minimal liveness signal a deploy script polls
// for after start-up (spec.md §6).
func (api *PublicNetworkAPI) GetBootstrapCheck() bool {
	if api.b.P2P == nil {
		return false
	}
	return api.b.P2P.PeerCount() > 0
}

// Stop triggers node shutdown. The façade is expected to close the
// connection immediately after sending the response, since the process may
// exit before a subsequent request could be served.
func (api *PublicNetworkAPI) Stop() *Error {
	if api.onStop == nil {
		return internal(errNoShutdownHook)
	}
	go api.onStop()
	return nil
}
