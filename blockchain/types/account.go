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

package types

import (
	"encoding/binary"

	"github.com/knotcoin/knotcoin/common"
)

// AccountState is keyed by address in the chain store. A missing account is
// semantically equal to the zero value. The on-disk encoding is append-only:
// fields are written in a fixed order and a reader MUST tolerate a record
// that ends before the newest trailing field, treating the missing suffix
// as zero — this lets older readers open a store written by a newer node.
type AccountState struct {
	Balance                  uint64
	Nonce                    uint64
	HasReferrer              bool
	Referrer                 common.Address
	LastMinedHeight          uint64
	TotalReferredMiners      uint64
	TotalReferralBonusEarned uint64
	GovernanceWeight         uint64
	TotalBlocksMined         uint64
}

// fields, in append-only wire order. Every new persisted field MUST be added
// at the end of this list, never inserted in the middle.
const (
	acctFieldBalance = iota
	acctFieldNonce
	acctFieldReferrer // 1 flag byte + 32 address bytes
	acctFieldLastMinedHeight
	acctFieldTotalReferredMiners
	acctFieldTotalReferralBonusEarned
	acctFieldGovernanceWeight
	acctFieldTotalBlocksMined
)

// Encode serializes the account in append-only field order.
func (a *AccountState) Encode() []byte {
	buf := make([]byte, 0, 8*7+1+common.AddressLength)
	var tmp [8]byte

	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	putU64(a.Balance)
	putU64(a.Nonce)
	if a.HasReferrer {
		buf = append(buf, 1)
		buf = append(buf, a.Referrer[:]...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, common.AddressLength)...)
	}
	putU64(a.LastMinedHeight)
	putU64(a.TotalReferredMiners)
	putU64(a.TotalReferralBonusEarned)
	putU64(a.GovernanceWeight)
	putU64(a.TotalBlocksMined)
	return buf
}

// DecodeAccountState parses a (possibly truncated) append-only record.
// Missing trailing fields decode as zero, per the spec's forward-compat
// requirement.
func DecodeAccountState(b []byte) *AccountState {
	a := &AccountState{}
	r := reader{b: b}

	a.Balance = r.u64()
	a.Nonce = r.u64()
	flag, addr := r.referrer()
	a.HasReferrer = flag
	a.Referrer = addr
	a.LastMinedHeight = r.u64()
	a.TotalReferredMiners = r.u64()
	a.TotalReferralBonusEarned = r.u64()
	a.GovernanceWeight = r.u64()
	a.TotalBlocksMined = r.u64()
	return a
}

// reader walks an append-only byte record, returning zero values once the
// buffer is exhausted instead of erroring — this is the mechanism behind
// AccountState's forward compatibility.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) u64() uint64 {
	if r.pos+8 > len(r.b) {
		r.pos = len(r.b)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *reader) referrer() (bool, common.Address) {
	need := 1 + common.AddressLength
	if r.pos+need > len(r.b) {
		r.pos = len(r.b)
		return false, common.Address{}
	}
	flag := r.b[r.pos] != 0
	var addr common.Address
	copy(addr[:], r.b[r.pos+1:r.pos+1+common.AddressLength])
	r.pos += need
	return flag, addr
}
