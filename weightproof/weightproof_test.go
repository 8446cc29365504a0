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

package weightproof

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/merkle"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
)

type fakePeer struct {
	id types.Bytes32
	wp types.WeightProof
}

func (f *fakePeer) ID() types.Bytes32           { return f.id }
func (f *fakePeer) Trusted() bool               { return false }
func (f *fakePeer) ProtocolVersion() (int, int) { return 1, 0 }
func (f *fakePeer) Close(code syncerr.CloseCode) {}
func (f *fakePeer) RequestBlockHeader(ctx context.Context, height uint32) (types.HeaderBlock, error) {
	return types.HeaderBlock{}, nil
}
func (f *fakePeer) RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]types.HeaderBlock, error) {
	return nil, nil
}
func (f *fakePeer) RequestAdditions(ctx context.Context, headerHash, coinID types.Bytes32) (merkle.Proof, bool, error) {
	return merkle.Proof{}, false, nil
}
func (f *fakePeer) RequestRemovals(ctx context.Context, headerHash, coinID types.Bytes32) (merkle.Proof, bool, error) {
	return merkle.Proof{}, false, nil
}
func (f *fakePeer) RegisterInterestInPuzzleHashes(ctx context.Context, hashes []types.Bytes32, minHeight uint32) ([]types.CoinState, error) {
	return nil, nil
}
func (f *fakePeer) RegisterInterestInCoinIDs(ctx context.Context, ids []types.Bytes32, minHeight uint32) ([]types.CoinState, error) {
	return nil, nil
}
func (f *fakePeer) RequestChildren(ctx context.Context, coinID types.Bytes32) ([]types.CoinState, error) {
	return nil, nil
}
func (f *fakePeer) RequestSesInfo(ctx context.Context, height uint32) (types.SesInfoResponse, error) {
	return types.SesInfoResponse{}, nil
}
func (f *fakePeer) RequestProofOfWeight(ctx context.Context, height uint32) (types.WeightProof, error) {
	return f.wp, nil
}

func validProof() types.WeightProof {
	return types.WeightProof{
		RecentChainData: []types.HeaderBlock{
			{Height: 10, Weight: uint256.NewInt(100), HeaderHash: types.Bytes32{1}},
			{Height: 20, Weight: uint256.NewInt(200), HeaderHash: types.Bytes32{2}},
		},
	}
}

func TestValidateRejectsEmptyChain(t *testing.T) {
	if err := Validate(types.WeightProof{}); err == nil {
		t.Fatal("expected error for empty recent chain")
	}
}

func TestValidateRejectsNonIncreasingHeight(t *testing.T) {
	wp := types.WeightProof{RecentChainData: []types.HeaderBlock{
		{Height: 20, Weight: uint256.NewInt(100)},
		{Height: 10, Weight: uint256.NewInt(200)},
	}}
	if err := Validate(wp); err == nil {
		t.Fatal("expected error for non-increasing height")
	}
}

func TestFetchAndValidateCachesResult(t *testing.T) {
	cfg := config.Default()
	g, err := New(cfg, 1<<20, "", nil)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Close()

	p := &fakePeer{wp: validProof()}
	target := types.PeerPeak{Height: 20, HeaderHash: types.Bytes32{2}}

	wp, err := g.FetchAndValidate(context.Background(), p, target)
	if err != nil {
		t.Fatalf("fetch and validate: %v", err)
	}
	if len(wp.RecentChainData) != 2 {
		t.Fatalf("expected proof to be returned, got %+v", wp)
	}

	key := cacheKey(p.ID(), target.Height, target.HeaderHash)
	if !g.seen(key) {
		t.Fatal("expected proof to be marked as validated after first fetch")
	}
}

func TestFetchAndValidateRejectsPeakMismatch(t *testing.T) {
	cfg := config.Default()
	g, err := New(cfg, 1<<20, "", nil)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	defer g.Close()

	p := &fakePeer{wp: validProof()}
	target := types.PeerPeak{Height: 20, HeaderHash: types.Bytes32{0xAA}}

	if _, err := g.FetchAndValidate(context.Background(), p, target); err == nil {
		t.Fatal("expected error when the proof's recent chain tail does not match the announced peak")
	}
}

func TestForkPointFindsHighestMatch(t *testing.T) {
	wp := validProof()
	local := []types.HeaderBlock{
		{Height: 10, HeaderHash: types.Bytes32{1}},
		{Height: 20, HeaderHash: types.Bytes32{0xff}}, // mismatched hash, should be skipped
	}
	height, found := ForkPoint(wp, local)
	if !found || height != 10 {
		t.Fatalf("expected fork point 10, got %d found=%v", height, found)
	}
}
