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

package p2p

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/common"
	"github.com/knotcoin/knotcoin/params"
)

var ErrTruncatedPayload = errors.New("p2p: truncated message payload")

func encodeVersion(height uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, height)
	return buf
}

func decodeVersion(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, ErrTruncatedPayload
	}
	return binary.LittleEndian.Uint32(b), nil
}

func encodeHashList(hashes []common.Hash) []byte {
	buf := make([]byte, 4+32*len(hashes))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(hashes)))
	for i, h := range hashes {
		copy(buf[4+32*i:4+32*(i+1)], h[:])
	}
	return buf
}

func decodeHashList(b []byte, max int) ([]common.Hash, error) {
	if len(b) < 4 {
		return nil, ErrTruncatedPayload
	}
	count := int(binary.LittleEndian.Uint32(b[:4]))
	if count > max || len(b) != 4+32*count {
		return nil, ErrTruncatedPayload
	}
	out := make([]common.Hash, count)
	for i := 0; i < count; i++ {
		copy(out[i][:], b[4+32*i:4+32*(i+1)])
	}
	return out, nil
}

func encodeBlockList(blocks []*types.Block) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(blocks)))
	for _, blk := range blocks {
		enc := blk.Encode()
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(enc)))
		buf = append(buf, lenBuf...)
		buf = append(buf, enc...)
	}
	return buf
}

func decodeBlockList(b []byte, max int) ([]*types.Block, error) {
	if len(b) < 4 {
		return nil, ErrTruncatedPayload
	}
	count := int(binary.LittleEndian.Uint32(b[:4]))
	if count > max {
		return nil, ErrTruncatedPayload
	}
	pos := 4
	out := make([]*types.Block, 0, count)
	for i := 0; i < count; i++ {
		if pos+4 > len(b) {
			return nil, ErrTruncatedPayload
		}
		blen := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		pos += 4
		if blen < 0 || pos+blen > len(b) {
			return nil, ErrTruncatedPayload
		}
		blk, err := types.DecodeBlock(b[pos : pos+blen])
		if err != nil {
			// skip malformed entries rather than closing the peer over one
			// bad block, per the sync algorithm's step 1.
			pos += blen
			continue
		}
		out = append(out, blk)
		pos += blen
	}
	return out, nil
}

// netAddr is one discovered peer socket address.
type netAddr struct {
	IP   net.IP
	Port uint16
}

func encodeAddrList(addrs []netAddr) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(addrs)))
	for _, a := range addrs {
		v4 := a.IP.To4()
		if v4 != nil {
			buf = append(buf, 0x04)
			buf = append(buf, v4...)
		} else {
			buf = append(buf, 0x06)
			buf = append(buf, a.IP.To16()...)
		}
		portBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(portBuf, a.Port)
		buf = append(buf, portBuf...)
	}
	return buf
}

func decodeAddrList(b []byte) ([]netAddr, error) {
	if len(b) < 4 {
		return nil, ErrTruncatedPayload
	}
	count := int(binary.LittleEndian.Uint32(b[:4]))
	if count > params.MaxAddrEntries {
		return nil, ErrTruncatedPayload
	}
	pos := 4
	out := make([]netAddr, 0, count)
	for i := 0; i < count; i++ {
		if pos+1 > len(b) {
			return nil, ErrTruncatedPayload
		}
		family := b[pos]
		pos++
		var ipLen int
		switch family {
		case 0x04:
			ipLen = 4
		case 0x06:
			ipLen = 16
		default:
			return nil, ErrTruncatedPayload
		}
		if pos+ipLen+2 > len(b) {
			return nil, ErrTruncatedPayload
		}
		ip := net.IP(append([]byte(nil), b[pos:pos+ipLen]...))
		pos += ipLen
		port := binary.BigEndian.Uint16(b[pos : pos+2])
		pos += 2
		out = append(out, netAddr{IP: ip, Port: port})
	}
	return out, nil
}

func encodePingPong(nonce uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, nonce)
	return buf
}

func decodePingPong(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, ErrTruncatedPayload
	}
	return binary.LittleEndian.Uint64(b), nil
}
