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

package validator

import (
	"errors"
	"testing"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/merkle"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
)

func u32(v uint32) *uint32 { return &v }

func TestCheckReorgDetectsSpendReversal(t *testing.T) {
	v := New(config.Default(), nil)
	existing := types.CoinState{CreatedHeight: u32(5), SpentHeight: u32(10)}
	fresh := types.CoinState{CreatedHeight: u32(5), SpentHeight: nil}

	err := v.CheckReorg(existing, true, fresh)
	var reorg *syncerr.ReorgDetected
	if !errors.As(err, &reorg) {
		t.Fatalf("expected ReorgDetected, got %v", err)
	}
	if reorg.ConfirmedHeight != 5 {
		t.Fatalf("expected confirmed height 5, got %d", reorg.ConfirmedHeight)
	}
}

func TestCheckReorgNoOpWhenNotSpent(t *testing.T) {
	v := New(config.Default(), nil)
	existing := types.CoinState{CreatedHeight: u32(5)}
	fresh := types.CoinState{CreatedHeight: u32(5)}
	if err := v.CheckReorg(existing, true, fresh); err != nil {
		t.Fatalf("expected no reorg, got %v", err)
	}
}

func TestValidateCreationTrustedSkipsProof(t *testing.T) {
	v := New(config.Default(), nil)
	cs := types.CoinState{Coin: types.Coin{Amount: 1}}
	if err := v.ValidateCreation(cs, types.HeaderBlock{}, InclusionProof{}, true); err != nil {
		t.Fatalf("trusted peer should skip proof check: %v", err)
	}
}

func TestValidateCreationRejectsMissingFoliage(t *testing.T) {
	v := New(config.Default(), nil)
	cs := types.CoinState{Coin: types.Coin{Amount: 1}}
	err := v.ValidateCreation(cs, types.HeaderBlock{}, InclusionProof{}, false)
	if !errors.Is(err, syncerr.ErrPeerMisbehavior) {
		t.Fatalf("expected ErrPeerMisbehavior, got %v", err)
	}
}

func TestValidateCreationVerifiesInclusion(t *testing.T) {
	v := New(config.Default(), nil)
	cs := types.CoinState{Coin: types.Coin{Amount: 7}}
	leaf := merkle.Value(cs.Coin.ID())

	var sibling merkle.Value
	sibling[0] = 0xAA
	root, _ := merkle.VerifyProof(leaf, 0, merkle.Values{sibling})

	header := types.HeaderBlock{
		Height:  1,
		Foliage: &types.FoliageTransactionBlock{AdditionsRoot: types.Bytes32(root)},
	}
	proof := InclusionProof{Index: 0, Branch: merkle.Values{sibling}}
	if err := v.ValidateCreation(cs, header, proof, false); err != nil {
		t.Fatalf("valid inclusion proof should pass: %v", err)
	}

	badHeader := types.HeaderBlock{
		Height:  1,
		Foliage: &types.FoliageTransactionBlock{AdditionsRoot: types.Bytes32{0xFF}},
	}
	if err := v.ValidateCreation(cs, badHeader, proof, false); !errors.Is(err, syncerr.ErrPeerMisbehavior) {
		t.Fatalf("expected ErrPeerMisbehavior for wrong root, got %v", err)
	}
}

func TestValidateBlockAnchorViaRecentChain(t *testing.T) {
	v := New(config.Default(), nil)
	tail := []types.HeaderBlock{{HeaderHash: types.Bytes32{1}}}
	header := types.HeaderBlock{PrevHeaderHash: types.Bytes32{1}}
	if err := v.ValidateBlockAnchor(header, tail, nil); err != nil {
		t.Fatalf("expected anchor via recent chain tail: %v", err)
	}
}

func TestValidateBlockAnchorViaSubEpochSummary(t *testing.T) {
	v := New(config.Default(), nil)
	summaries := []types.SubEpochSummary{{RewardChainHash: types.Bytes32{2}}}
	header := types.HeaderBlock{RewardChain: types.RewardChainBlock{Challenge: types.Bytes32{2}}}
	if err := v.ValidateBlockAnchor(header, nil, summaries); err != nil {
		t.Fatalf("expected anchor via sub-epoch summary: %v", err)
	}
}

func TestValidateBlockAnchorNoFork(t *testing.T) {
	v := New(config.Default(), nil)
	if err := v.ValidateBlockAnchor(types.HeaderBlock{}, nil, nil); !errors.Is(err, syncerr.ErrNoFork) {
		t.Fatalf("expected ErrNoFork, got %v", err)
	}
}

func TestValidateVDFChainDetectsDiscontinuity(t *testing.T) {
	v := New(config.Default(), nil)
	blocks := []types.HeaderBlock{
		{Height: 1, RewardChain: types.RewardChainBlock{RewardChainIPVDFChallenge: types.Bytes32{1}}},
		{Height: 2, RewardChain: types.RewardChainBlock{Challenge: types.Bytes32{9}}},
	}
	if err := v.ValidateVDFChain(blocks); !errors.Is(err, syncerr.ErrPeerMisbehavior) {
		t.Fatalf("expected discontinuity error, got %v", err)
	}
}

func TestValidateVDFChainAcceptsLinkedChallenges(t *testing.T) {
	v := New(config.Default(), nil)
	blocks := []types.HeaderBlock{
		{Height: 1, RewardChain: types.RewardChainBlock{RewardChainIPVDFChallenge: types.Bytes32{1}}},
		{Height: 2, RewardChain: types.RewardChainBlock{Challenge: types.Bytes32{1}}},
	}
	if err := v.ValidateVDFChain(blocks); err != nil {
		t.Fatalf("expected linked challenges to pass, got %v", err)
	}
}

func TestValidatePlotSignaturesRejectsUnsigned(t *testing.T) {
	v := New(config.Default(), nil)
	blocks := []types.HeaderBlock{{Height: 1}}
	if err := v.ValidatePlotSignatures(blocks); !errors.Is(err, syncerr.ErrPeerMisbehavior) {
		t.Fatalf("expected ErrPeerMisbehavior for an unsigned block, got %v", err)
	}
}
