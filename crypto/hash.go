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

// Package crypto provides the hash, signature and address primitives (C1):
// SHA3-256/SHA-512 digests, post-quantum detached signatures, and
// deterministic address derivation.
package crypto

import (
	"crypto/sha512"

	"github.com/knotcoin/knotcoin/common"
	"golang.org/x/crypto/sha3"
)

// Sha3_256 returns the SHA3-256 digest of the concatenation of data.
func Sha3_256(data ...[]byte) common.Hash {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Sha512 returns the full 64-byte SHA-512 digest of the concatenation of data.
// Address derivation (DeriveAddress) takes the first 32 bytes of this digest.
func Sha512(data ...[]byte) [64]byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [64]byte
	h.Sum(out[:0])
	return out
}
