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

// Post-quantum detached signatures: knotcoin accounts sign with
// CRYSTALS-Dilithium (mode3: 1952 B public key, 3293 B signature), matching
// the spec's ~1952/~3309 B budget. The scheme is wrapped behind PublicKey/
// PrivateKey so the rest of the codebase never imports circl directly.
package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

const (
	PublicKeySize  = mode3.PublicKeySize
	PrivateKeySize = mode3.PrivateKeySize
	SignatureSize  = mode3.SignatureSize
)

type PublicKey struct {
	pk *mode3.PublicKey
	raw []byte
}

type PrivateKey struct {
	sk  *mode3.PrivateKey
	Pub PublicKey
}

// GenerateKey creates a fresh Dilithium keypair. Used only by the external
// wallet component and by test/mining-key bootstrap helpers; the consensus
// core never generates keys itself.
func GenerateKey() (*PrivateKey, error) {
	pk, sk, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, PublicKeySize)
	pk.Pack(raw)
	return &PrivateKey{sk: sk, Pub: PublicKey{pk: pk, raw: raw}}, nil
}

// Sign produces a detached signature over msg.
func (priv *PrivateKey) Sign(msg []byte) []byte {
	sig := make([]byte, SignatureSize)
	mode3.SignTo(priv.sk, msg, sig)
	return sig
}

func (pub PublicKey) Bytes() []byte {
	out := make([]byte, len(pub.raw))
	copy(out, pub.raw)
	return out
}

// PublicKeyFromBytes parses a raw Dilithium public key, as carried in a
// transaction's sender_public_key field.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, errors.New("crypto: wrong public key size")
	}
	var pk mode3.PublicKey
	pk.Unpack(b)
	raw := make([]byte, PublicKeySize)
	copy(raw, b)
	return PublicKey{pk: &pk, raw: raw}, nil
}

// Verify checks a detached signature against msg under pub.
func Verify(pub PublicKey, msg, sig []byte) bool {
	if len(sig) != SignatureSize || pub.pk == nil {
		return false
	}
	return mode3.Verify(pub.pk, msg, sig)
}
