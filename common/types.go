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

// Package common holds the small value types shared by every other package:
// addresses and block/tx hashes.
package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	AddressLength = 32
	HashLength    = 32
)

// Address is the first 32 bytes of SHA-512(public_key); see crypto.DeriveAddress.
type Address [AddressLength]byte

func BytesToAddress(b []byte) Address {
	var a Address
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) IsZero() bool { return a == Address{} }

// Hash is a generic 32-byte digest: a block hash, a merkle root, a txid.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == Hash{} }

// Big interprets the hash as a big-endian unsigned integer, used by the PoW
// engine to compare a candidate hash against the difficulty target.
func (h Hash) Big() *big.Int { return new(big.Int).SetBytes(h[:]) }

var ErrBadHexLength = errors.New("common: hex string has the wrong decoded length")

// HashFromHex parses a hash previously rendered by Hash.Hex, accepting an
// optional "0x" prefix. Used by the RPC surface to turn a caller-supplied
// string back into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashLength {
		return Hash{}, ErrBadHexLength
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func init() {
	// guards against accidental struct layout drift, since the wire format
	// hardcodes 32-byte hashes and addresses throughout.
	if len(Hash{}) != HashLength || len(Address{}) != AddressLength {
		panic(fmt.Sprintf("common: unexpected type size"))
	}
}
