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
// This file is derived from api/api_public_tx_pool.go's PublicTxPoolAPI
// shape (2018/06/04): a thin wrapper exposing pool contents and the
// raw-transaction submission entrypoint.

package rpc

import (
	"github.com/knotcoin/knotcoin/blockchain/types"
	"github.com/knotcoin/knotcoin/crypto"
)

// PublicTxPoolAPI exposes the mempool-read and write groups of spec.md §6:
// getmempoolinfo, getrawmempool, getmempool, estimatefee, sendrawtransaction.
type PublicTxPoolAPI struct {
	b *Backend
}

func NewPublicTxPoolAPI(b *Backend) *PublicTxPoolAPI {
	return &PublicTxPoolAPI{b: b}
}

// MempoolInfo is the getmempoolinfo response: just the current size, mirroring
// klaytn's lightweight pool-status calls.
type MempoolInfo struct {
	Size int `json:"size"`
}

func (api *PublicTxPoolAPI) GetMempoolInfo() *MempoolInfo {
	return &MempoolInfo{Size: api.b.Pool.Size()}
}

// GetRawMempool returns every pooled transaction's hex-encoded txid,
// ordered by descending fee priority.
func (api *PublicTxPoolAPI) GetRawMempool() []string {
	txs := api.b.Pool.GetTopTransactions(api.b.Pool.Size())
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID().Hex()
	}
	return out
}

// PendingTx is one pooled transaction as returned by getmempool/GetPool.
type PendingTx struct {
	TxID      string `json:"txId"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Nonce     uint64 `json:"nonce"`
}

// GetMempool returns the full pending transaction set with enough detail for
// a wallet or explorer to render without a second round trip per tx.
func (api *PublicTxPoolAPI) GetMempool() []*PendingTx {
	txs := api.b.Pool.GetTopTransactions(api.b.Pool.Size())
	out := make([]*PendingTx, len(txs))
	for i, tx := range txs {
		out[i] = &PendingTx{
			TxID:      tx.ID().Hex(),
			Sender:    crypto.EncodeAddress(tx.Sender),
			Recipient: crypto.EncodeAddress(tx.Recipient),
			Amount:    tx.Amount,
			Fee:       tx.Fee,
			Nonce:     tx.Nonce,
		}
	}
	return out
}

// EstimateFee suggests a fee (in knots) for a transaction of sizeBytes that
// would land at or above the current pool's median fee-per-byte, falling
// back to one knot per byte when the pool is empty; the estimate is never
// below one knot per byte.
func (api *PublicTxPoolAPI) EstimateFee(sizeBytes int) (uint64, *Error) {
	if sizeBytes <= 0 {
		return 0, invalidParams("sizeBytes must be positive")
	}
	txs := api.b.Pool.GetTopTransactions(api.b.Pool.Size())
	if len(txs) == 0 {
		return minFeeForSize(sizeBytes), nil
	}
	median := txs[len(txs)/2]
	feePerByte := median.Fee / uint64(len(median.Encode()))
	if feePerByte == 0 {
		feePerByte = 1
	}
	estimate := feePerByte * uint64(sizeBytes)
	if min := minFeeForSize(sizeBytes); estimate < min {
		estimate = min
	}
	return estimate, nil
}

func minFeeForSize(sizeBytes int) uint64 {
	const minFeePerByte = 1
	return minFeePerByte * uint64(sizeBytes)
}

// SendRawTransaction decodes a hex-encoded, fully-signed transaction and
// submits it to the mempool; on acceptance it is also relayed to peers.
func (api *PublicTxPoolAPI) SendRawTransaction(hexEncoded string) (string, *Error) {
	raw, err := decodeHex(hexEncoded)
	if err != nil {
		return "", invalidParams("malformed hex: " + err.Error())
	}
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return "", invalidParams("malformed transaction: " + err.Error())
	}
	if err := api.b.Pool.Add(tx); err != nil {
		return "", invalidParams(err.Error())
	}
	if api.b.P2P != nil {
		api.b.P2P.BroadcastTx(tx, nil)
	}
	return tx.ID().Hex(), nil
}
