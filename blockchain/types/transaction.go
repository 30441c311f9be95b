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
	"errors"

	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/crypto"
)

const TxVersion = 1

// Transaction is an account/nonce value transfer, optionally carrying a
// referral registration (only valid when Nonce == 1) or a governance
// signal (a 32-byte proposal identifier).
type Transaction struct {
	Version         uint32
	Sender          common.Address
	SenderPublicKey []byte // crypto.PublicKeySize bytes
	Recipient       common.Address
	Amount          uint64
	Fee             uint64
	Nonce           uint64
	Timestamp       uint64

	HasReferrer     bool
	ReferrerAddress common.Address

	HasGovernanceData bool
	GovernanceData    [32]byte

	Signature []byte // crypto.SignatureSize bytes
}

// SigningBytes serializes every field except the signature; this is what
// gets hashed and signed, and what a verifier re-derives from the tx.
func (tx *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 4+common.AddressLength+len(tx.SenderPublicKey)+common.AddressLength+8*4+1+common.AddressLength+1+32)
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], tx.Version)
	buf = append(buf, u32[:]...)
	buf = append(buf, tx.Sender[:]...)
	buf = append(buf, tx.SenderPublicKey...)
	buf = append(buf, tx.Recipient[:]...)

	binary.LittleEndian.PutUint64(u64[:], tx.Amount)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], tx.Fee)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], tx.Nonce)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], tx.Timestamp)
	buf = append(buf, u64[:]...)

	if tx.HasReferrer {
		buf = append(buf, 1)
		buf = append(buf, tx.ReferrerAddress[:]...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, common.AddressLength)...)
	}
	if tx.HasGovernanceData {
		buf = append(buf, 1)
		buf = append(buf, tx.GovernanceData[:]...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, 32)...)
	}
	return buf
}

// SigningHash is the SHA3-256 digest of SigningBytes.
func (tx *Transaction) SigningHash() common.Hash {
	return crypto.Sha3_256(tx.SigningBytes())
}

// ID is SHA3-256(signing_hash || signature): the signature is folded in so
// the txid commits to the exact signed artifact.
func (tx *Transaction) ID() common.Hash {
	sh := tx.SigningHash()
	return crypto.Sha3_256(sh[:], tx.Signature)
}

// Sign populates tx.Signature using priv; the caller is responsible for
// having set Sender/SenderPublicKey consistently with priv beforehand.
func (tx *Transaction) Sign(priv *crypto.PrivateKey) {
	sh := tx.SigningHash()
	tx.Signature = priv.Sign(sh[:])
}

// VerifySignature checks tx.Signature against the sender's declared public
// key and that the derived address matches Sender.
func (tx *Transaction) VerifySignature() bool {
	pub, err := crypto.PublicKeyFromBytes(tx.SenderPublicKey)
	if err != nil {
		return false
	}
	if crypto.DeriveAddress(tx.SenderPublicKey) != tx.Sender {
		return false
	}
	sh := tx.SigningHash()
	return crypto.Verify(pub, sh[:], tx.Signature)
}

// IsGovernanceSignal reports whether this transaction only carries a
// governance vote (zero-amount signaling tx per the spec's glossary).
func (tx *Transaction) IsGovernanceSignal() bool {
	return tx.HasGovernanceData && tx.Amount == 0
}

// IsReferralRegistration reports whether this transaction registers a
// referrer: only valid on Nonce == 1, self-recipient, referrer set.
func (tx *Transaction) IsReferralRegistration() bool {
	return tx.Nonce == 1 && tx.HasReferrer && tx.Recipient == tx.Sender
}

// Encode serializes the full transaction (including the signature) for
// storage in a block body or relay over the wire: SigningBytes() followed
// by a length-prefixed signature.
func (tx *Transaction) Encode() []byte {
	sb := tx.SigningBytes()
	out := make([]byte, 0, len(sb)+4+len(tx.Signature))
	var u32 [4]byte
	out = append(out, sb...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Signature)))
	out = append(out, u32[:]...)
	out = append(out, tx.Signature...)
	return out
}

var ErrTruncatedTransaction = errors.New("types: truncated transaction bytes")

// DecodeTransaction parses a transaction previously produced by Encode, with
// SenderPublicKey read as a fixed crypto.PublicKeySize block matching
// SigningBytes' layout.
func DecodeTransaction(b []byte) (*Transaction, error) {
	tx := &Transaction{}
	pos := 0
	need := func(n int) bool { return pos+n <= len(b) }

	if !need(4) {
		return nil, ErrTruncatedTransaction
	}
	tx.Version = binary.LittleEndian.Uint32(b[pos:])
	pos += 4

	if !need(common.AddressLength) {
		return nil, ErrTruncatedTransaction
	}
	copy(tx.Sender[:], b[pos:])
	pos += common.AddressLength

	if !need(crypto.PublicKeySize) {
		return nil, ErrTruncatedTransaction
	}
	tx.SenderPublicKey = append([]byte(nil), b[pos:pos+crypto.PublicKeySize]...)
	pos += crypto.PublicKeySize

	if !need(common.AddressLength) {
		return nil, ErrTruncatedTransaction
	}
	copy(tx.Recipient[:], b[pos:])
	pos += common.AddressLength

	if !need(8 * 4) {
		return nil, ErrTruncatedTransaction
	}
	tx.Amount = binary.LittleEndian.Uint64(b[pos:])
	pos += 8
	tx.Fee = binary.LittleEndian.Uint64(b[pos:])
	pos += 8
	tx.Nonce = binary.LittleEndian.Uint64(b[pos:])
	pos += 8
	tx.Timestamp = binary.LittleEndian.Uint64(b[pos:])
	pos += 8

	if !need(1 + common.AddressLength) {
		return nil, ErrTruncatedTransaction
	}
	tx.HasReferrer = b[pos] != 0
	pos++
	copy(tx.ReferrerAddress[:], b[pos:])
	pos += common.AddressLength

	if !need(1 + 32) {
		return nil, ErrTruncatedTransaction
	}
	tx.HasGovernanceData = b[pos] != 0
	pos++
	copy(tx.GovernanceData[:], b[pos:pos+32])
	pos += 32

	if !need(4) {
		return nil, ErrTruncatedTransaction
	}
	sigLen := int(binary.LittleEndian.Uint32(b[pos:]))
	pos += 4
	if !need(sigLen) {
		return nil, ErrTruncatedTransaction
	}
	tx.Signature = append([]byte(nil), b[pos:pos+sigLen]...)
	pos += sigLen

	return tx, nil
}
