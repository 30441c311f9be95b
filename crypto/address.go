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

package crypto

import (
	"encoding/base32"
	"errors"
	"strings"

	"github.com/knotcoin/knotcoin/common"
)

// AddressPrefix is prepended to every text-encoded address and is itself
// mixed into the checksum, so a string from another network can never
// decode successfully here.
const AddressPrefix = "KOT1"

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// DeriveAddress computes the account address bound to a public key: the
// first 32 bytes of SHA-512(public_key).
func DeriveAddress(publicKey []byte) common.Address {
	digest := Sha512(publicKey)
	var addr common.Address
	copy(addr[:], digest[:common.AddressLength])
	return addr
}

func addressChecksum(addr common.Address) [4]byte {
	inner := Sha3_256([]byte(AddressPrefix), addr[:])
	outer := Sha3_256(inner[:])
	var out [4]byte
	copy(out[:], outer[:4])
	return out
}

// EncodeAddress renders addr as KOT1<base32(address)><base32(checksum)>.
func EncodeAddress(addr common.Address) string {
	sum := addressChecksum(addr)
	return AddressPrefix + b32.EncodeToString(addr[:]) + b32.EncodeToString(sum[:])
}

var (
	ErrAddressTooShort   = errors.New("crypto: address string too short")
	ErrAddressBadPrefix  = errors.New("crypto: address missing KOT1 prefix")
	ErrAddressBadBase32  = errors.New("crypto: address body is not valid base32")
	ErrAddressBadChecksum = errors.New("crypto: address checksum mismatch")
)

// DecodeAddress parses a KOT1-prefixed text address, verifying its checksum.
// It MUST reject any string whose recomputed checksum differs from the one
// embedded in the string, including single-character mutations.
func DecodeAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, AddressPrefix) {
		return common.Address{}, ErrAddressBadPrefix
	}
	body := s[len(AddressPrefix):]

	addrLen := b32.EncodedLen(common.AddressLength)
	sumLen := b32.EncodedLen(4)
	if len(body) != addrLen+sumLen {
		return common.Address{}, ErrAddressTooShort
	}

	addrBytes, err := b32.DecodeString(body[:addrLen])
	if err != nil || len(addrBytes) != common.AddressLength || b32.EncodeToString(addrBytes) != body[:addrLen] {
		return common.Address{}, ErrAddressBadBase32
	}
	sumBytes, err := b32.DecodeString(body[addrLen:])
	if err != nil || len(sumBytes) != 4 || b32.EncodeToString(sumBytes) != body[addrLen:] {
		return common.Address{}, ErrAddressBadBase32
	}

	var addr common.Address
	copy(addr[:], addrBytes)

	want := addressChecksum(addr)
	if !equal4(want, sumBytes) {
		return common.Address{}, ErrAddressBadChecksum
	}
	return addr, nil
}

func equal4(a [4]byte, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
