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
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
)

// CoinStateUpdate is one reported coin state, together with the header
// it was claimed against. Merkle inclusion proofs are no longer
// supplied here: CoinStateValidator fetches them itself from the peer
// that made the claim (spec §4.E).
type CoinStateUpdate struct {
	State  types.CoinState
	Header types.HeaderBlock
}

// ReceiveState implements spec §4.G.3: it applies a batch of coin
// state updates under the High priority class, so it always
// happens-before a same-height peak advance. When forkHeight and
// height are both given and the peer is trusted, and forkHeight isn't
// simply height-1 (i.e. this call follows a detected reorg rather than
// ordinary forward progress), the wallet is rolled back to forkHeight
// before anything in updates is considered. Untrusted-peer updates are
// validated concurrently (admission-gated, with a short backoff once
// the admission gate reports heavy contention); updates whose header
// isn't yet recognized are buffered in RaceCache for replay once the
// chain catches up to it, rather than rejected outright.
func (r *Reconciler) ReceiveState(ctx context.Context, peerIndex int, cache *peercache.Cache, updates []CoinStateUpdate, forkHeight, height *uint32) error {
	g, err := r.lock.Acquire(ctx, synclock.High)
	if err != nil {
		return err
	}
	defer g.Release()

	return r.receiveStateLocked(ctx, peerIndex, cache, updates, forkHeight, height)
}

// receiveStateLocked is ReceiveState's body, callable by code that
// already holds the priority lock (short_sync_backtrack runs under
// Low while draining the RaceCache, and must not try to re-acquire
// High on top of it).
func (r *Reconciler) receiveStateLocked(ctx context.Context, peerIndex int, cache *peercache.Cache, updates []CoinStateUpdate, forkHeight, height *uint32) error {
	p, _, ok := r.peers.Get(peerIndex)
	if !ok {
		return fmt.Errorf("peer index %d no longer connected", peerIndex)
	}

	if p.Trusted() && forkHeight != nil && height != nil && *forkHeight != *height-1 {
		if err := r.store.ReorgRollback(*forkHeight); err != nil {
			return err
		}
		cache.ClearAfterHeight(*forkHeight)
		r.log.Warn("trusted reorg rollback", "peer", p.ID(), "fork_height", *forkHeight, "height", *height)
	}

	localPeak, err := r.store.PeakHeight()
	if err != nil {
		return err
	}

	toApply := make([]types.CoinState, 0, len(updates))
	group, gctx := errgroup.WithContext(ctx)
	results := make([]error, len(updates))

	for i, u := range updates {
		if r.admission.IsBackpressured() {
			select {
			case <-time.After(r.cfg.BackpressureSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		i, u := i, u
		group.Go(func() error {
			if cache.IsValidatedAtOrBefore(u.State.Coin.ID(), forkHeight) {
				return nil
			}
			ticket, err := r.admission.Acquire(gctx)
			if err != nil {
				results[i] = err
				return nil
			}
			defer ticket.Release()

			if u.Header.Height > localPeak {
				r.race.Add(u.Header.Height, u.Header.HeaderHash, u.State)
				return nil
			}

			if err := r.validator.Validate(gctx, p, cache, r.store, forkHeight, u.Header, u.State); err != nil {
				results[i] = err
				return nil
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, u := range updates {
		if results[i] != nil {
			if errors.Is(results[i], syncerr.ErrPeerMisbehavior) {
				p.Close(syncerr.CloseCodeMisbehavior)
			}
			continue
		}
		if u.Header.Height <= localPeak {
			toApply = append(toApply, u.State)
		}
	}

	if len(toApply) == 0 {
		return nil
	}
	for _, cs := range toApply {
		existing, tracked, err := r.store.GetCoinState(cs.Coin.ID())
		if err != nil {
			return err
		}
		if err := r.validator.CheckReorg(existing, tracked, cs); err != nil {
			var reorg *syncerr.ReorgDetected
			if errors.As(err, &reorg) {
				r.log.Warn("coin state reorg detected", "coin", cs.Coin.ID(), "confirmed_height", reorg.ConfirmedHeight)
				cache.ClearAfterHeight(reorg.ConfirmedHeight)
			}
		}
	}
	return r.store.PutCoinStates(toApply)
}
