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

// HeaderSize is the exact wire size of a block header:
// version(4) || prev_hash(32) || merkle_root(32) || timestamp(4) ||
// difficulty_target(32) || nonce(8) || block_height(4) || miner_address(32).
const HeaderSize = 4 + 32 + 32 + 4 + 32 + 8 + 4 + 32

type Header struct {
	Version          uint32
	PreviousHash     common.Hash
	MerkleRoot       common.Hash
	Timestamp        uint32
	DifficultyTarget [32]byte
	Nonce            uint64
	Height           uint32
	MinerAddress     common.Address
}

// Encode serializes the header to its fixed 148-byte wire form.
func (h *Header) Encode() []byte {
	buf := make([]byte, 0, HeaderSize)
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], h.Version)
	buf = append(buf, u32[:]...)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	binary.LittleEndian.PutUint32(u32[:], h.Timestamp)
	buf = append(buf, u32[:]...)
	buf = append(buf, h.DifficultyTarget[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.Nonce)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint32(u32[:], h.Height)
	buf = append(buf, u32[:]...)
	buf = append(buf, h.MinerAddress[:]...)
	return buf
}

// Prefix returns the header bytes preceding the nonce field: everything the
// PoW engine mixes with a candidate nonce (version..difficulty_target).
func (h *Header) Prefix() []byte {
	full := h.Encode()
	return full[:4+32+32+4+32]
}

var ErrTruncatedHeader = errors.New("types: truncated block header")

func DecodeHeader(b []byte) (*Header, error) {
	if len(b) != HeaderSize {
		return nil, ErrTruncatedHeader
	}
	h := &Header{}
	pos := 0
	h.Version = binary.LittleEndian.Uint32(b[pos:])
	pos += 4
	copy(h.PreviousHash[:], b[pos:])
	pos += 32
	copy(h.MerkleRoot[:], b[pos:])
	pos += 32
	h.Timestamp = binary.LittleEndian.Uint32(b[pos:])
	pos += 4
	copy(h.DifficultyTarget[:], b[pos:])
	pos += 32
	h.Nonce = binary.LittleEndian.Uint64(b[pos:])
	pos += 8
	h.Height = binary.LittleEndian.Uint32(b[pos:])
	pos += 4
	copy(h.MinerAddress[:], b[pos:])
	return h, nil
}

// Hash is SHA3-256 over the exact 148-byte header encoding.
func (h *Header) Hash() common.Hash {
	enc := h.Encode()
	return crypto.Sha3_256(enc)
}

// Block is a header plus its ordered transaction body.
type Block struct {
	Header       *Header
	Transactions []*Transaction
}

func (b *Block) Hash() common.Hash   { return b.Header.Hash() }
func (b *Block) Height() uint32      { return b.Header.Height }
func (b *Block) PreviousHash() common.Hash { return b.Header.PreviousHash }

// Encode serializes header || count(4 LE) || (len(4 LE) || tx_bytes)*n.
func (b *Block) Encode() []byte {
	out := append([]byte(nil), b.Header.Encode()...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(b.Transactions)))
	out = append(out, u32[:]...)
	for _, tx := range b.Transactions {
		enc := tx.Encode()
		binary.LittleEndian.PutUint32(u32[:], uint32(len(enc)))
		out = append(out, u32[:]...)
		out = append(out, enc...)
	}
	return out
}

var ErrMalformedBlock = errors.New("types: malformed block bytes")

func DecodeBlock(b []byte) (*Block, error) {
	if len(b) < HeaderSize+4 {
		return nil, ErrMalformedBlock
	}
	header, err := DecodeHeader(b[:HeaderSize])
	if err != nil {
		return nil, err
	}
	pos := HeaderSize
	count := binary.LittleEndian.Uint32(b[pos:])
	pos += 4

	txs := make([]*Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(b) {
			return nil, ErrMalformedBlock
		}
		txLen := int(binary.LittleEndian.Uint32(b[pos:]))
		pos += 4
		if txLen < 0 || pos+txLen > len(b) {
			return nil, ErrMalformedBlock
		}
		tx, err := DecodeTransaction(b[pos : pos+txLen])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
		pos += txLen
	}
	return &Block{Header: header, Transactions: txs}, nil
}

// MerkleRoot reduces the transaction list's serialized encodings with a
// binary SHA3-256 tree. Odd levels duplicate the last element. An empty
// block (genesis) has an all-zero root.
func MerkleRoot(txs []*Transaction) common.Hash {
	if len(txs) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(txs))
	for i, tx := range txs {
		level[i] = crypto.Sha3_256(tx.Encode())
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			l, r := level[2*i], level[2*i+1]
			next[i] = crypto.Sha3_256(l[:], r[:])
		}
		level = next
	}
	return level[0]
}
