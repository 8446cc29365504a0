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

// Package reconciler implements PeakReconciler (spec §4.G): it decides,
// for every new peak a peer announces, whether the wallet is close
// enough to backtrack a handful of blocks or far enough behind to need
// a full weight-proof-anchored long sync, and it folds incoming coin
// state updates into wallet storage under the right priority class.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chia-network/light-wallet-sync/admission"
	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/log"
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

// Reconciler is PeakReconciler.
type Reconciler struct {
	cfg       config.Config
	lock      *synclock.Lock
	admission *admission.Gate
	store     walletstate.Store
	validator *validator.Validator
	wpGate    *weightproof.Gate
	peers     *peer.Table
	race      *racecache.Cache
	log       log.Logger

	// syncMode mirrors the wallet node's global sync_mode flag: set for
	// the duration of a new-peak handling episode so callers of SyncMode
	// (e.g. UI status) can tell a resync is in flight (spec §4.G).
	syncMode atomic.Bool

	// proofMu guards lastProof/hasLastProof, the most recently installed
	// weight proof, used to compute a fork point against a newly fetched
	// one instead of re-validating the chain from scratch every time an
	// untrusted peer announces a further peak (spec §4.G step 8).
	proofMu      sync.Mutex
	lastProof    types.WeightProof
	hasLastProof bool
}

// New builds a Reconciler wiring together every component it drives.
func New(cfg config.Config, lock *synclock.Lock, gate *admission.Gate, store walletstate.Store,
	v *validator.Validator, wp *weightproof.Gate, peers *peer.Table, race *racecache.Cache, logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Root()
	}
	return &Reconciler{cfg: cfg, lock: lock, admission: gate, store: store, validator: v, wpGate: wp, peers: peers, race: race, log: logger}
}

// SyncMode reports whether a new-peak handling episode is currently in
// flight.
func (r *Reconciler) SyncMode() bool {
	return r.syncMode.Load()
}

// HandleNewPeak processes a new_peak_wallet announcement from the peer
// at peerIndex (spec §4.G). It probes is_peer_synced before acting on
// the announcement at all; a trusted peer's claim is taken at face
// value and every untrusted peer is disconnected, since the two could
// disagree about the canonical chain. An untrusted peer's claim is
// only acted on once its weight proof clears WeightProofGate, and only
// once the announced height reaches WeightProofRecentBlocks — below
// that the recent chain itself is assumed sufficient and
// short_sync_backtrack runs directly. Long syncs reuse the fork point between the newly fetched
// proof and whichever one was last installed, rather than always
// walking back a fixed distance.
func (r *Reconciler) HandleNewPeak(ctx context.Context, peerIndex int, cache *peercache.Cache, announced types.PeerPeak) error {
	p, state, ok := r.peers.Get(peerIndex)
	if !ok {
		return fmt.Errorf("peer index %d no longer connected", peerIndex)
	}
	state.UpdatePeak(announced)

	if !r.cfg.Testing {
		// is_peer_synced probe: record the timestamp of the latest
		// transaction block at or below the announced height.
		for h := announced.Height; ; h-- {
			hb, err := p.RequestBlockHeader(ctx, h)
			if err != nil {
				return err
			}
			if hb.Foliage != nil {
				state.RecordTxBlockTimestamp(hb.Foliage.Timestamp)
				break
			}
			if h == 0 {
				break
			}
		}
	}
	if !state.IsSynced(r.cfg, time.Now()) {
		r.log.Debug("ignoring peak from unsynced peer", "peer", p.ID(), "height", announced.Height)
		return nil
	}

	g, err := r.lock.Acquire(ctx, synclock.Low)
	if err != nil {
		return err
	}
	defer g.Release()

	localPeak, err := r.store.PeakHeight()
	if err != nil {
		return err
	}
	if announced.Height <= localPeak {
		return nil
	}

	r.syncMode.Store(true)
	defer r.syncMode.Store(false)

	if p.Trusted() {
		r.disconnectUntrustedPeers(peerIndex)
		if announced.Height-localPeak > r.cfg.LongSyncThreshold {
			return r.longSync(ctx, p, state, cache, localPeak, announced, 0, false)
		}
		r.log.Debug("starting short sync backtrack", "peer", p.ID(), "local_peak", localPeak, "target", announced.Height)
		return r.shortSyncBacktrack(ctx, p, state, cache, localPeak, announced)
	}

	if announced.Height-localPeak <= r.cfg.LongSyncThreshold {
		r.log.Debug("starting short sync backtrack", "peer", p.ID(), "local_peak", localPeak, "target", announced.Height)
		return r.shortSyncBacktrack(ctx, p, state, cache, localPeak, announced)
	}

	if announced.Height < r.cfg.WeightProofRecentBlocks {
		// Too close to genesis for a meaningful weight proof; the
		// recent chain itself is trusted enough to walk directly.
		return r.shortSyncBacktrack(ctx, p, state, cache, localPeak, announced)
	}

	wp, err := r.wpGate.FetchAndValidate(ctx, p, announced)
	if err != nil {
		p.Close(closeCodeForErr(err))
		return fmt.Errorf("weight proof gate rejected peer %x: %w", p.ID(), err)
	}

	forkHeight, hasForkPoint := r.installProof(wp)
	return r.longSync(ctx, p, state, cache, localPeak, announced, forkHeight, hasForkPoint)
}

// disconnectUntrustedPeers closes every connected peer other than
// except whose Trusted() reports false. Once a trusted peer's peak is
// being acted on, an untrusted peer's differing view of the chain can
// only be noise or an attack, so there's no reason to keep it around
// for this sync episode (spec §4.G step 7).
func (r *Reconciler) disconnectUntrustedPeers(except int) {
	r.peers.ForEach(func(idx int, p peer.Interface, _ *peer.State) {
		if idx == except || p.Trusted() {
			return
		}
		r.log.Warn("disconnecting untrusted peer in favor of trusted peak", "peer", p.ID())
		p.Close(syncerr.CloseCodeMisbehavior)
	})
}

// installProof computes the fork point between wp and whichever proof
// was last installed, then installs wp as the new reference for the
// next call (spec §4.G step 8's "fork-point-vs-previous-proof" and
// proof install/re-install).
func (r *Reconciler) installProof(wp types.WeightProof) (forkHeight uint32, found bool) {
	r.proofMu.Lock()
	defer r.proofMu.Unlock()

	if r.hasLastProof {
		forkHeight, found = r.wpGate.Handler().GetForkPoint(r.lastProof, wp)
	}
	r.lastProof, r.hasLastProof = wp, true
	return forkHeight, found
}
