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
	"fmt"

	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

// shortSyncBacktrack implements spec §4.G.2: walk backward from the
// announced peak until a header whose predecessor the wallet already
// recognizes (or height 0) is found, roll back to that fork point if
// it's below the current peak, then apply every block from there
// forward through receive_block. Any single INVALID_BLOCK aborts the
// attempt and closes the peer; the rollback and any blocks applied
// before the invalid one stay applied. Once the
// chain is caught up, it subscribes the peer if it hasn't been yet and
// replays anything the RaceCache buffered for the newly recognized
// range.
func (r *Reconciler) shortSyncBacktrack(ctx context.Context, p peer.Interface, state *peer.State, cache *peercache.Cache, localPeak uint32, target types.PeerPeak) error {
	if target.Height <= localPeak {
		return nil
	}

	walked, forkHeight, err := r.walkBackToKnownAncestor(ctx, p, cache, target.Height)
	if err != nil {
		return fmt.Errorf("walking back from height %d: %w", target.Height, err)
	}

	if forkHeight < localPeak {
		if err := r.store.ReorgRollback(forkHeight); err != nil {
			return err
		}
		cache.ClearAfterHeight(forkHeight)
		r.log.Warn("short sync rollback", "peer", p.ID(), "fork_height", forkHeight, "local_peak", localPeak)
	}

	for _, hb := range walked {
		result, err := r.store.ReceiveBlock(hb)
		if err != nil {
			return err
		}
		if result == walletstate.BlockInvalid {
			p.Close(syncerr.CloseCodeMisbehavior)
			return fmt.Errorf("%w: header at height %d does not chain onto the wallet's peak", syncerr.ErrWalletInvariantBreach, hb.Height)
		}
	}

	if !state.Subscribed() {
		if err := r.subscribeAll(ctx, p); err != nil {
			return fmt.Errorf("subscribing peer: %w", err)
		}
		state.MarkSubscribed()
	}

	if err := r.drainRaceCache(ctx, p, cache, forkHeight, target.Height); err != nil {
		return fmt.Errorf("draining race cache: %w", err)
	}

	return nil
}

// walkBackToKnownAncestor fetches header blocks backward from height,
// stopping as soon as a header's predecessor is already recorded as a
// recent header (or height 0 is reached). It returns the walked blocks
// in ascending height order, ready to be applied forward, and the
// height of the first locally-known ancestor (fork_height).
func (r *Reconciler) walkBackToKnownAncestor(ctx context.Context, p peer.Interface, cache *peercache.Cache, height uint32) ([]types.HeaderBlock, uint32, error) {
	var walked []types.HeaderBlock
	cur := height
	for {
		hb, ok := cache.GetBlock(cur)
		if !ok {
			fetched, err := p.RequestBlockHeader(ctx, cur)
			if err != nil {
				return nil, 0, err
			}
			hb = fetched
			cache.PutBlock(hb)
		}
		walked = append([]types.HeaderBlock{hb}, walked...)

		if cur == 0 {
			return walked, 0, nil
		}
		if hash, known, err := r.store.RecentHeader(cur - 1); err == nil && known && hash == hb.PrevHeaderHash {
			return walked, cur - 1, nil
		}
		cur--
	}
}

// subscribeAll registers the wallet's full set of stored puzzle hashes
// with p, starting from height 0 (spec §4.G.2). Coin ids are not
// registered here, and the coin states p returns are discarded rather
// than fed through receive_state.
func (r *Reconciler) subscribeAll(ctx context.Context, p peer.Interface) error {
	hashes, err := r.store.PuzzleHashes()
	if err != nil {
		return err
	}
	if len(hashes) == 0 {
		return nil
	}
	_, err = p.RegisterInterestInPuzzleHashes(ctx, hashes, 0)
	return err
}

// drainRaceCache replays every coin state the RaceCache buffered for
// a height in (forkHeight, peakHeight] through receive_state, now that
// the headers covering that range are part of the recognized chain.
func (r *Reconciler) drainRaceCache(ctx context.Context, p peer.Interface, cache *peercache.Cache, forkHeight, peakHeight uint32) error {
	idx, ok := r.peers.IndexOf(p.ID())
	if !ok {
		return nil
	}
	drained := r.race.DrainRange(forkHeight, peakHeight)
	for _, entry := range drained {
		hb, ok := cache.GetBlock(entry.Height)
		if !ok {
			fetched, err := p.RequestBlockHeader(ctx, entry.Height)
			if err != nil {
				return err
			}
			hb = fetched
			cache.PutBlock(hb)
		}
		updates := make([]CoinStateUpdate, 0, len(entry.States))
		for _, cs := range entry.States {
			updates = append(updates, CoinStateUpdate{State: cs, Header: hb})
		}
		if len(updates) == 0 {
			continue
		}
		if err := r.receiveStateLocked(ctx, idx, cache, updates, nil, nil); err != nil {
			return err
		}
	}
	return nil
}
