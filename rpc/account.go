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

package rpc

import (
	"github.com/knotcoin/knotcoin/crypto"
)

// PublicAccountAPI exposes the account-read group of spec.md §6:
// getbalance, getreferralinfo, getgovernanceinfo, getgovernancetally,
// getaddressstats.
type PublicAccountAPI struct {
	b *Backend
}

func NewPublicAccountAPI(b *Backend) *PublicAccountAPI {
	return &PublicAccountAPI{b: b}
}

// GetBalance returns the balance of address in knots, zero if the address
// has never appeared in a block.
func (api *PublicAccountAPI) GetBalance(addressText string) (uint64, *Error) {
	addr, err := crypto.DecodeAddress(addressText)
	if err != nil {
		return 0, invalidParams("malformed address: " + err.Error())
	}
	acc, dberr := api.b.DB.GetAccount(addr)
	if dberr != nil {
		return 0, internal(dberr)
	}
	if acc == nil {
		return 0, nil
	}
	return acc.Balance, nil
}

// ReferralInfo is the getreferralinfo response shape.
type ReferralInfo struct {
	HasReferrer              bool   `json:"hasReferrer"`
	Referrer                 string `json:"referrer,omitempty"`
	TotalReferredMiners      uint64 `json:"totalReferredMiners"`
	TotalReferralBonusEarned uint64 `json:"totalReferralBonusEarned"`
}

func (api *PublicAccountAPI) GetReferralInfo(addressText string) (*ReferralInfo, *Error) {
	addr, err := crypto.DecodeAddress(addressText)
	if err != nil {
		return nil, invalidParams("malformed address: " + err.Error())
	}
	acc, dberr := api.b.DB.GetAccount(addr)
	if dberr != nil {
		return nil, internal(dberr)
	}
	if acc == nil {
		return &ReferralInfo{}, nil
	}
	info := &ReferralInfo{
		HasReferrer:              acc.HasReferrer,
		TotalReferredMiners:      acc.TotalReferredMiners,
		TotalReferralBonusEarned: acc.TotalReferralBonusEarned,
	}
	if acc.HasReferrer {
		info.Referrer = crypto.EncodeAddress(acc.Referrer)
	}
	return info, nil
}

// GovernanceInfo is the getgovernanceinfo response shape: the account's own
// weight plus the chain-wide governance parameters currently in force.
type GovernanceInfo struct {
	GovernanceWeight uint64 `json:"governanceWeight"`
	PoncRounds       uint32 `json:"poncRounds"`
	CapBps           uint32 `json:"capBps"`
	RetargetSecs     uint64 `json:"retargetSecs"`
}

func (api *PublicAccountAPI) GetGovernanceInfo(addressText string) (*GovernanceInfo, *Error) {
	addr, err := crypto.DecodeAddress(addressText)
	if err != nil {
		return nil, invalidParams("malformed address: " + err.Error())
	}
	acc, dberr := api.b.DB.GetAccount(addr)
	if dberr != nil {
		return nil, internal(dberr)
	}
	var weight uint64
	if acc != nil {
		weight = acc.GovernanceWeight
	}
	params, ok, dberr := api.b.DB.GetGovernanceParams()
	if dberr != nil {
		return nil, internal(dberr)
	}
	if !ok {
		def := defaultGovernanceParamsRecord()
		params = def
	}
	return &GovernanceInfo{
		GovernanceWeight: weight,
		PoncRounds:       params.PoncRounds,
		CapBps:           params.CapBps,
		RetargetSecs:     params.RetargetSecs,
	}, nil
}

// GetGovernanceTally returns the current vote tally for a 32-byte
// hex-encoded proposal identifier.
func (api *PublicAccountAPI) GetGovernanceTally(proposalHex string) (uint64, *Error) {
	hash, err := hashFromHex32(proposalHex)
	if err != nil {
		return 0, invalidParams("malformed proposal id: " + err.Error())
	}
	tally, dberr := api.b.DB.GetGovernanceTally(hash)
	if dberr != nil {
		return 0, internal(dberr)
	}
	return tally, nil
}

// AddressStats is the getaddressstats response: everything known about one
// account in a single call, sparing the façade several round trips.
type AddressStats struct {
	Balance          uint64 `json:"balance"`
	Nonce            uint64 `json:"nonce"`
	TotalBlocksMined uint64 `json:"totalBlocksMined"`
	LastMinedHeight  uint64 `json:"lastMinedHeight"`
	GovernanceWeight uint64 `json:"governanceWeight"`
	ReferralInfo     *ReferralInfo `json:"referralInfo"`
}

func (api *PublicAccountAPI) GetAddressStats(addressText string) (*AddressStats, *Error) {
	addr, err := crypto.DecodeAddress(addressText)
	if err != nil {
		return nil, invalidParams("malformed address: " + err.Error())
	}
	acc, dberr := api.b.DB.GetAccount(addr)
	if dberr != nil {
		return nil, internal(dberr)
	}
	if acc == nil {
		return &AddressStats{ReferralInfo: &ReferralInfo{}}, nil
	}
	ref := &ReferralInfo{
		HasReferrer:              acc.HasReferrer,
		TotalReferredMiners:      acc.TotalReferredMiners,
		TotalReferralBonusEarned: acc.TotalReferralBonusEarned,
	}
	if acc.HasReferrer {
		ref.Referrer = crypto.EncodeAddress(acc.Referrer)
	}
	return &AddressStats{
		Balance:          acc.Balance,
		Nonce:            acc.Nonce,
		TotalBlocksMined: acc.TotalBlocksMined,
		LastMinedHeight:  acc.LastMinedHeight,
		GovernanceWeight: acc.GovernanceWeight,
		ReferralInfo:     ref,
	}, nil
}
