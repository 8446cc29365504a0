// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package types defines the data model the sync engine operates over:
// coins and their on-chain state, header blocks, and weight proofs.
package types

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/holiman/uint256"
)

// Bytes32 is a 32-byte hash/identifier, used for coin ids, header hashes,
// puzzle hashes and parent ids alike.
type Bytes32 [32]byte

// Coin is an unspent-transaction-output identified by the hash of its
// parent id, puzzle hash and amount.
type Coin struct {
	ParentID   Bytes32
	PuzzleHash Bytes32
	Amount     uint64
}

// ID computes coin_id = hash(parent_id || puzzle_hash || amount).
func (c Coin) ID() Bytes32 {
	h := sha256.New()
	h.Write(c.ParentID[:])
	h.Write(c.PuzzleHash[:])
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], c.Amount)
	h.Write(amt[:])
	var out Bytes32
	h.Sum(out[:0])
	return out
}

// CoinState is the (coin, created_height, spent_height) triple reported
// by a peer. A nil height means "not yet known" for CreatedHeight and
// "unspent" for SpentHeight.
type CoinState struct {
	Coin          Coin
	CreatedHeight *uint32
	SpentHeight   *uint32
}

// Valid checks the §3 invariant: if spent, then created and spent >= created.
func (s CoinState) Valid() bool {
	if s.SpentHeight == nil {
		return true
	}
	return s.CreatedHeight != nil && *s.SpentHeight >= *s.CreatedHeight
}

// Hash identifies a CoinState by hashing coin id and both optional heights.
func (s CoinState) Hash() Bytes32 {
	h := sha256.New()
	id := s.Coin.ID()
	h.Write(id[:])
	writeOptHeight(h, s.CreatedHeight)
	writeOptHeight(h, s.SpentHeight)
	var out Bytes32
	h.Sum(out[:0])
	return out
}

func writeOptHeight(h interface{ Write([]byte) (int, error) }, v *uint32) {
	var buf [5]byte
	if v == nil {
		buf[0] = 0
	} else {
		buf[0] = 1
		binary.BigEndian.PutUint32(buf[1:], *v)
	}
	h.Write(buf[:])
}

// RewardChainBlock carries the VDF-challenge and signature fields checked
// during block-inclusion (spec §4.E.1).
type RewardChainBlock struct {
	// Challenge is the reward-chain-block hash this slot's VDF output
	// must chain from.
	Challenge Bytes32
	// HasFinishedSubSlot indicates whether this block closes one or
	// more sub-slots, each carrying an end-of-slot VDF challenge.
	HasFinishedSubSlot       bool
	EndOfSlotVDFChallenges   []Bytes32
	RewardChainIPVDFChallenge Bytes32
	// PlotSignature is the BLS signature over the foliage block data,
	// checked for the last 50 blocks of any proved range.
	PlotSignature    []byte
	PlotPublicKey    []byte
	FoliageBlockData []byte
}

// FoliageTransactionBlock carries the Merkle roots proving coin creation
// and removal for a block, present only on transaction blocks.
type FoliageTransactionBlock struct {
	AdditionsRoot Bytes32
	RemovalsRoot  Bytes32
	Timestamp     uint64
}

// HeaderBlock is the opaque per-height header the engine reasons about.
type HeaderBlock struct {
	Height          uint32
	Weight          *uint256.Int
	HeaderHash      Bytes32
	PrevHeaderHash  Bytes32
	Foliage         *FoliageTransactionBlock // nil on non-transaction blocks
	RewardChain     RewardChainBlock
}

// SubEpochSummary anchors older header ranges to a weight proof.
type SubEpochSummary struct {
	RewardChainHash Bytes32
}

// HeightRange is an inclusive [First, Last] height span, used to relate
// a sub-epoch summary to the header heights it covers (spec §4.E.1).
type HeightRange struct {
	First uint32
	Last  uint32
}

// WeightProof is the compact proof of chain weight: a sequence of
// sub-epoch summaries plus a contiguous recent-chain tail.
type WeightProof struct {
	SubEpochs       []SubEpochSummary
	RecentChainData []HeaderBlock // ascending by height, non-empty
}

// Hash identifies a weight proof for the purposes of the valid_wp_cache.
func (w *WeightProof) Hash() Bytes32 {
	h := sha256.New()
	for _, se := range w.SubEpochs {
		h.Write(se.RewardChainHash[:])
	}
	for _, hb := range w.RecentChainData {
		h.Write(hb.HeaderHash[:])
	}
	var out Bytes32
	h.Sum(out[:0])
	return out
}

// Peak returns the tip of the recent-chain tail.
func (w *WeightProof) Peak() *HeaderBlock {
	if len(w.RecentChainData) == 0 {
		return nil
	}
	return &w.RecentChainData[len(w.RecentChainData)-1]
}

// SesInfoResponse answers a SesInfo(start, end) request: the sub-epoch
// summaries covering that range, paired one-for-one with the height
// span each summary covers.
type SesInfoResponse struct {
	Summaries []SubEpochSummary
	Heights   []HeightRange
}

// CoinRecord is the wallet-local view of a coin. walletstate.Store
// does not return it; the store exposes coins as CoinState.
type CoinRecord struct {
	Coin               Coin
	ConfirmedHeight    uint32
	SpentBlockHeight   uint32 // 0 means unspent
}

// PeerPeak identifies a peer's advertised chain tip.
type PeerPeak struct {
	Height     uint32
	HeaderHash Bytes32
	Weight     *uint256.Int
}
