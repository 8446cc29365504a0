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

// Package peer defines the wire-independent peer abstraction the sync
// engine drives: a request interface plus a small piece of mutable
// state (last known peak, synced status), addressed by table index
// rather than embedded back-pointers (spec §9).
package peer

import (
	"context"
	"time"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/merkle"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
)

// Interface is the set of requests the sync engine issues against a
// connected full node. Implementations own the actual wire protocol;
// the engine never reaches behind this interface.
type Interface interface {
	ID() types.Bytes32
	Trusted() bool
	ProtocolVersion() (major, minor int)

	RequestBlockHeader(ctx context.Context, height uint32) (types.HeaderBlock, error)
	RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]types.HeaderBlock, error)

	// RequestAdditions and RequestRemovals fetch a coin's Merkle
	// inclusion proof against a specific header's additions or
	// removals root, for CoinStateValidator to check itself rather than
	// trust a pre-supplied proof.
	RequestAdditions(ctx context.Context, headerHash types.Bytes32, coinID types.Bytes32) (proof merkle.Proof, included bool, err error)
	RequestRemovals(ctx context.Context, headerHash types.Bytes32, coinID types.Bytes32) (proof merkle.Proof, included bool, err error)

	// RegisterInterestInPuzzleHashes and RegisterInterestInCoinIDs
	// subscribe the connection to future coin states touching the
	// given puzzle hashes or coin ids, returning any matching state the
	// peer already knows about from minHeight onward.
	RegisterInterestInPuzzleHashes(ctx context.Context, hashes []types.Bytes32, minHeight uint32) ([]types.CoinState, error)
	RegisterInterestInCoinIDs(ctx context.Context, ids []types.Bytes32, minHeight uint32) ([]types.CoinState, error)

	RequestChildren(ctx context.Context, coinID types.Bytes32) ([]types.CoinState, error)
	RequestSesInfo(ctx context.Context, height uint32) (types.SesInfoResponse, error)
	RequestProofOfWeight(ctx context.Context, height uint32) (types.WeightProof, error)

	Close(code syncerr.CloseCode)
}

// State is the mutable, engine-owned view of one connected peer: its
// last announced peak and whether its most recent transaction-block
// timestamp is recent enough to call it synced.
type State struct {
	peak                 types.PeerPeak
	hasPeak              bool
	lastTxBlockTimestamp uint64
	subscribed           bool
}

// UpdatePeak records a new_peak_wallet announcement.
func (s *State) UpdatePeak(p types.PeerPeak) {
	s.peak = p
	s.hasPeak = true
}

// Peak returns the last announced peak, if any.
func (s *State) Peak() (types.PeerPeak, bool) {
	return s.peak, s.hasPeak
}

// RecordTxBlockTimestamp stores the timestamp of the latest
// transaction block the peer has reported, used by IsSynced.
func (s *State) RecordTxBlockTimestamp(ts uint64) {
	s.lastTxBlockTimestamp = ts
}

// MarkSubscribed records that this peer's puzzle hashes and coin ids
// have been registered, joining the engine's notion of synced_peers
// (spec §4.G.1 step 6) so a later peak from the same peer can skip
// re-subscribing.
func (s *State) MarkSubscribed() {
	s.subscribed = true
}

// Subscribed reports whether MarkSubscribed has been called for this
// peer.
func (s *State) Subscribed() bool {
	return s.subscribed
}

// IsSynced reports whether the peer's most recently reported
// transaction-block timestamp is within cfg.PeerSyncedStaleness of
// now. cfg.Testing bypasses the check entirely, matching the spec's
// carve-out for deterministic tests.
func (s *State) IsSynced(cfg config.Config, now time.Time) bool {
	if cfg.Testing {
		return true
	}
	if s.lastTxBlockTimestamp == 0 {
		return false
	}
	age := now.Sub(time.Unix(int64(s.lastTxBlockTimestamp), 0))
	return age >= 0 && age <= cfg.PeerSyncedStaleness
}
