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

package reconciler

import (
	"context"
	"testing"

	"github.com/chia-network/light-wallet-sync/admission"
	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/merkle"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/racecache"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/validator"
	"github.com/chia-network/light-wallet-sync/walletstate"
	"github.com/chia-network/light-wallet-sync/weightproof"
)

type fakePeer struct {
	id      types.Bytes32
	trusted bool
	wp      types.WeightProof
	headers map[uint32]types.HeaderBlock
	closed  *syncerr.CloseCode
}

func (f *fakePeer) ID() types.Bytes32           { return f.id }
func (f *fakePeer) Trusted() bool               { return f.trusted }
func (f *fakePeer) ProtocolVersion() (int, int) { return 1, 0 }
func (f *fakePeer) Close(code syncerr.CloseCode) { c := code; f.closed = &c }
func (f *fakePeer) RequestBlockHeader(ctx context.Context, height uint32) (types.HeaderBlock, error) {
	return f.headers[height], nil
}
func (f *fakePeer) RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]types.HeaderBlock, error) {
	var out []types.HeaderBlock
	for h := start; h <= end; h++ {
		if hb, ok := f.headers[h]; ok {
			out = append(out, hb)
		}
	}
	return out, nil
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

func newTestReconciler(t *testing.T) (*Reconciler, *peer.Table, *fakePeer, walletstate.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Testing = true
	cfg.LongSyncThreshold = 5

	lock := synclock.New(100, nil)
	gate := admission.New(cfg.ActiveCap, cfg.WaitingCap, cfg.WaitingHighWatermark)
	store := walletstate.NewMemStore()
	v := validator.New(cfg, nil)
	wp, err := weightproof.New(cfg, 1<<20, "", nil)
	if err != nil {
		t.Fatalf("weightproof.New: %v", err)
	}
	peers := peer.NewTable()
	race := racecache.New(cfg.RaceHeightHorizon)

	r := New(cfg, lock, gate, store, v, wp, peers, race, nil)

	p := &fakePeer{trusted: true, headers: make(map[uint32]types.HeaderBlock)}
	peers.Add(p)
	return r, peers, p, store
}

func TestHandleNewPeakShortSyncAdvancesPeak(t *testing.T) {
	r, peers, p, store := newTestReconciler(t)
	idx, _ := peers.IndexOf(p.ID())

	p.headers[1] = types.HeaderBlock{Height: 1, HeaderHash: types.Bytes32{1}}
	cache := peercache.New()

	target := types.PeerPeak{Height: 1, HeaderHash: types.Bytes32{1}}
	if err := r.HandleNewPeak(context.Background(), idx, cache, target); err != nil {
		t.Fatalf("HandleNewPeak: %v", err)
	}
	height, _ := store.PeakHeight()
	if height != 1 {
		t.Fatalf("expected peak height 1 after short sync, got %d", height)
	}
}

func TestHandleNewPeakIgnoresStalePeak(t *testing.T) {
	r, peers, p, store := newTestReconciler(t)
	idx, _ := peers.IndexOf(p.ID())
	store.SetPeakHeight(10)

	cache := peercache.New()
	target := types.PeerPeak{Height: 5}
	if err := r.HandleNewPeak(context.Background(), idx, cache, target); err != nil {
		t.Fatalf("HandleNewPeak: %v", err)
	}
	height, _ := store.PeakHeight()
	if height != 10 {
		t.Fatalf("stale peak announcement should not move the wallet backward, got %d", height)
	}
}

func TestReceiveStateAppliesTrustedUpdateAtOrBelowPeak(t *testing.T) {
	r, peers, p, store := newTestReconciler(t)
	idx, _ := peers.IndexOf(p.ID())
	store.SetPeakHeight(5)

	cache := peercache.New()
	h := uint32(3)
	cs := types.CoinState{Coin: types.Coin{Amount: 42}, CreatedHeight: &h}
	update := CoinStateUpdate{State: cs, Header: types.HeaderBlock{Height: 3}}

	if err := r.ReceiveState(context.Background(), idx, cache, []CoinStateUpdate{update}, nil, nil); err != nil {
		t.Fatalf("ReceiveState: %v", err)
	}
	got, tracked, err := store.GetCoinState(cs.Coin.ID())
	if err != nil || !tracked || got.Coin.Amount != 42 {
		t.Fatalf("expected coin state to be applied, got %+v tracked=%v err=%v", got, tracked, err)
	}
}

func TestReceiveStateBuffersUpdateAheadOfPeak(t *testing.T) {
	r, peers, p, store := newTestReconciler(t)
	idx, _ := peers.IndexOf(p.ID())
	store.SetPeakHeight(1)

	cache := peercache.New()
	h := uint32(50)
	cs := types.CoinState{Coin: types.Coin{Amount: 7}, CreatedHeight: &h}
	header := types.HeaderBlock{Height: 50, HeaderHash: types.Bytes32{5}}
	update := CoinStateUpdate{State: cs, Header: header}

	if err := r.ReceiveState(context.Background(), idx, cache, []CoinStateUpdate{update}, nil, nil); err != nil {
		t.Fatalf("ReceiveState: %v", err)
	}
	if _, tracked, _ := store.GetCoinState(cs.Coin.ID()); tracked {
		t.Fatal("coin state ahead of the peak should not be applied yet")
	}
	if r.race.Len() != 1 {
		t.Fatalf("expected the update to be buffered in RaceCache, got len %d", r.race.Len())
	}
}
