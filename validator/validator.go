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

// Package validator implements CoinStateValidator (spec §4.E, §4.E.1):
// it decides whether a reported coin state is trustworthy before the
// engine lets it touch wallet storage, short-circuiting already-proven
// states, detecting reorgs, and — for untrusted peers — checking
// Merkle inclusion against the claimed header and chaining that header
// back to a recognized anchor.
package validator

import (
	"context"
	"fmt"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/merkle"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

// InclusionProof is the audit path a peer supplies alongside a coin
// state claim, proving the coin's id is a leaf of the header's
// additions or removals root.
type InclusionProof = merkle.Proof

// Validator is CoinStateValidator.
type Validator struct {
	cfg config.Config
	log log.Logger
}

// New builds a Validator.
func New(cfg config.Config, logger log.Logger) *Validator {
	if logger == nil {
		logger = log.Root()
	}
	return &Validator{cfg: cfg, log: logger}
}

// Validate is CoinStateValidator's top-level entry point (spec §4.E):
// it short-circuits a coin state already proven included at or before
// forkHeight, short-circuits one matching what the wallet already has
// on file, and otherwise fetches whatever inclusion proofs a
// non-trusted peer's claim requires directly from p before running the
// creation/spend Merkle checks against header. It does not run the
// block-inclusion check: header itself is not chained to the recent
// chain tail or a sub-epoch summary here (ValidateBlockInclusion is
// not called). A result of nil means cs may be applied to wallet storage.
func (v *Validator) Validate(ctx context.Context, p peer.Interface, cache *peercache.Cache, store walletstate.Store, forkHeight *uint32, header types.HeaderBlock, cs types.CoinState) error {
	id := cs.Coin.ID()
	if cache.IsValidatedAtOrBefore(id, forkHeight) {
		return nil
	}

	existing, tracked, err := store.GetCoinState(id)
	if err != nil {
		return err
	}
	if tracked {
		if err := v.CheckReorg(existing, tracked, cs); err != nil {
			return err
		}
		if existing.Hash() == cs.Hash() {
			cache.MarkValidated(id, header.Height)
			return nil
		}
	}

	trusted := p.Trusted()
	if cs.CreatedHeight != nil && *cs.CreatedHeight == header.Height {
		proof, err := v.fetchProof(ctx, p, header.HeaderHash, id, trusted, false)
		if err != nil {
			return err
		}
		if err := v.ValidateCreation(cs, header, proof, trusted); err != nil {
			return err
		}
	}
	if cs.SpentHeight != nil && *cs.SpentHeight == header.Height {
		proof, err := v.fetchProof(ctx, p, header.HeaderHash, id, trusted, true)
		if err != nil {
			return err
		}
		if err := v.ValidateSpend(cs, header, proof, trusted); err != nil {
			return err
		}
	}

	cache.MarkValidated(id, header.Height)
	return nil
}

// fetchProof asks p for cs's inclusion proof against header, unless
// the peer is trusted (in which case no proof is needed and a zero
// value is returned).
func (v *Validator) fetchProof(ctx context.Context, p peer.Interface, headerHash, coinID types.Bytes32, trusted, removal bool) (InclusionProof, error) {
	if trusted {
		return InclusionProof{}, nil
	}
	var (
		proof    merkle.Proof
		included bool
		err      error
	)
	if removal {
		proof, included, err = p.RequestRemovals(ctx, headerHash, coinID)
	} else {
		proof, included, err = p.RequestAdditions(ctx, headerHash, coinID)
	}
	if err != nil {
		return InclusionProof{}, err
	}
	if !included {
		return InclusionProof{}, fmt.Errorf("%w: peer claims a coin state it would not prove inclusion for", syncerr.ErrPeerMisbehavior)
	}
	return proof, nil
}

// ValidateBlockInclusion implements the full §4.E.1 block-inclusion
// algorithm: a local fast path checking header against the recognized
// recent-chain tail, falling back to sub-epoch anchoring (locating the
// sub-epoch two ahead of the one header's reward-chain challenge
// belongs to, fetching the 32-block-aligned batch ending at that
// sub-epoch's last height, and comparing the batch's terminal
// reward-chain hash) when the header is older than anything the recent
// chain tail covers.
func (v *Validator) ValidateBlockInclusion(ctx context.Context, p peer.Interface, header types.HeaderBlock, recentChainTail []types.HeaderBlock, wp types.WeightProof, ses types.SesInfoResponse) error {
	if err := v.ValidateBlockAnchor(header, recentChainTail, nil); err == nil {
		return nil
	}

	idx := -1
	for i, s := range wp.SubEpochs {
		if s.RewardChainHash == header.RewardChain.Challenge {
			idx = i
			break
		}
	}
	if idx < 0 || idx+2 >= len(wp.SubEpochs) || len(ses.Heights) == 0 {
		return syncerr.ErrNoFork
	}
	inserted := wp.SubEpochs[idx+2]
	end := ses.Heights[0].Last

	batch := v.cfg.HeaderBlockBatchSize
	if batch == 0 {
		batch = 1
	}
	start := (header.Height / batch) * batch
	blocks, err := p.RequestHeaderBlocks(ctx, start, end)
	if err != nil {
		return err
	}
	if len(blocks) == 0 || blocks[len(blocks)-1].RewardChain.Challenge != inserted.RewardChainHash {
		return syncerr.ErrNoFork
	}
	return nil
}

// CheckReorg compares a freshly reported coin state against the
// wallet's previously stored one. A coin that was spent and is now
// reported unspent means the spending block was reorged out; the
// caller must re-validate from existing.CreatedHeight onward rather
// than trusting the new state outright (spec §4.E "reorg detection").
func (v *Validator) CheckReorg(existing types.CoinState, tracked bool, fresh types.CoinState) error {
	if !tracked || existing.SpentHeight == nil {
		return nil
	}
	if fresh.SpentHeight != nil {
		return nil
	}
	anchor := uint32(0)
	if existing.CreatedHeight != nil {
		anchor = *existing.CreatedHeight
	}
	return &syncerr.ReorgDetected{ConfirmedHeight: anchor}
}

// ValidateCreation proves a coin's creation by checking its id against
// header's additions root along proof. Trusted peers skip this.
func (v *Validator) ValidateCreation(cs types.CoinState, header types.HeaderBlock, proof InclusionProof, trusted bool) error {
	if trusted {
		return nil
	}
	if header.Foliage == nil {
		return fmt.Errorf("%w: header %d missing foliage transaction block", syncerr.ErrPeerMisbehavior, header.Height)
	}
	leaf := merkle.Value(cs.Coin.ID())
	want := merkle.Value(header.Foliage.AdditionsRoot)
	if !merkle.VerifyInclusion(leaf, proof.Index, proof.Branch, want) {
		return fmt.Errorf("%w: coin creation not included in additions root at height %d", syncerr.ErrPeerMisbehavior, header.Height)
	}
	return nil
}

// ValidateSpend proves a coin's spend by checking its id against
// header's removals root along proof. Trusted peers skip this.
func (v *Validator) ValidateSpend(cs types.CoinState, header types.HeaderBlock, proof InclusionProof, trusted bool) error {
	if trusted {
		return nil
	}
	if header.Foliage == nil {
		return fmt.Errorf("%w: header %d missing foliage transaction block", syncerr.ErrPeerMisbehavior, header.Height)
	}
	leaf := merkle.Value(cs.Coin.ID())
	want := merkle.Value(header.Foliage.RemovalsRoot)
	if !merkle.VerifyInclusion(leaf, proof.Index, proof.Branch, want) {
		return fmt.Errorf("%w: coin spend not included in removals root at height %d", syncerr.ErrPeerMisbehavior, header.Height)
	}
	return nil
}

// ValidateBlockAnchor checks that header chains to something the
// engine already recognizes: either its predecessor's hash is one of
// the recent chain tail's header hashes, or its reward-chain challenge
// equals the reward-chain hash of one of summaries. Neither matching means
// the header cannot be trusted without a full long_sync (spec §4.E.1).
func (v *Validator) ValidateBlockAnchor(header types.HeaderBlock, recentChainTail []types.HeaderBlock, summaries []types.SubEpochSummary) error {
	for _, tail := range recentChainTail {
		if tail.HeaderHash == header.PrevHeaderHash {
			return nil
		}
	}
	for _, ses := range summaries {
		if ses.RewardChainHash == header.RewardChain.Challenge {
			return nil
		}
	}
	return syncerr.ErrNoFork
}

// ValidateVDFChain checks that consecutive header blocks' VDF
// challenges link: a block without a finished sub-slot must start
// from the previous block's reward-chain IP VDF challenge; a block
// that finished a sub-slot must start from one of its own
// end-of-slot challenges.
func (v *Validator) ValidateVDFChain(blocks []types.HeaderBlock) error {
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if !cur.RewardChain.HasFinishedSubSlot {
			if cur.RewardChain.Challenge != prev.RewardChain.RewardChainIPVDFChallenge {
				return fmt.Errorf("%w: VDF challenge discontinuity at height %d", syncerr.ErrPeerMisbehavior, cur.Height)
			}
			continue
		}
		linked := false
		for _, c := range prev.RewardChain.EndOfSlotVDFChallenges {
			if c == cur.RewardChain.Challenge {
				linked = true
				break
			}
		}
		if !linked {
			return fmt.Errorf("%w: VDF sub-slot challenge discontinuity at height %d", syncerr.ErrPeerMisbehavior, cur.Height)
		}
	}
	return nil
}

// ValidatePlotSignatures checks the BLS plot signature over the
// foliage block data for the last cfg.PlotSignatureTailLength blocks
// of a proved range — a spot check rather than exhaustive
// re-verification of every block's proof of space.
func (v *Validator) ValidatePlotSignatures(blocks []types.HeaderBlock) error {
	start := 0
	if n := len(blocks) - v.cfg.PlotSignatureTailLength; n > 0 {
		start = n
	}
	for _, hb := range blocks[start:] {
		ok, err := verifyPlotSignature(hb.RewardChain)
		if err != nil {
			return fmt.Errorf("verifying plot signature at height %d: %w", hb.Height, err)
		}
		if !ok {
			return fmt.Errorf("%w: invalid plot signature at height %d", syncerr.ErrPeerMisbehavior, hb.Height)
		}
	}
	return nil
}

