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

// Package config holds the knobs spec §6 names as driving the core's
// behavior.
package config

import (
	"time"

	"github.com/chia-network/light-wallet-sync/types"
)

// Config collects every tunable named across spec §4-§6.
type Config struct {
	// TrustedPeers are peer ids whose claims are accepted without
	// cryptographic re-validation.
	TrustedPeers map[types.Bytes32]bool

	// Testing skips the peer-synced wall-clock staleness check and the
	// is_peer_synced timestamp requirement.
	Testing bool

	// WeightProofRecentBlocks is the minimum peak height at which a
	// weight proof is requested at all; below it the recent chain
	// itself is assumed sufficient.
	WeightProofRecentBlocks uint32

	// LongSyncThreshold is the height gap beyond which a peer is
	// considered far behind and a long sync (not short-sync backtrack)
	// is used (spec §4.G, default 200).
	LongSyncThreshold uint32

	// PriorityLock tuning.
	MaxQueueDepth int // default 10x LongSyncThreshold

	// BoundedAdmission tuning (coin-state validation, spec §4.B).
	ActiveCap             int           // default 6
	WaitingCap            int           // ambient, configurable
	WaitingHighWatermark  int           // default 20
	BackpressureSleep     time.Duration // default 2s

	// WeightProofFetchTimeout bounds request_proof_of_weight (default 60s).
	WeightProofFetchTimeout time.Duration

	// PeerCloseGrace bounds how long a peer is given to close cleanly
	// before the connection is forced shut (default 120s).
	PeerCloseGrace time.Duration

	// PeerSyncedStaleness is how far behind wall-clock a peer's last
	// tx-block timestamp may be before it's no longer "synced"
	// (default 600s).
	PeerSyncedStaleness time.Duration

	// HeaderBlockBatchSize is the batch alignment for
	// RequestHeaderBlocks during block-inclusion (default 32).
	HeaderBlockBatchSize uint32

	// SubscriptionBatchSize is the batch size for puzzle-hash/coin-id
	// subscription during long_sync (default 1000).
	SubscriptionBatchSize int

	// RaceHeightHorizon is the height distance beyond which RaceCache
	// entries are evicted (default 100).
	RaceHeightHorizon uint32

	// PlotSignatureTailLength is how many blocks at the end of a
	// proved range get their plot BLS signature checked (default 50).
	PlotSignatureTailLength int

	// MaxDerivationPasses bounds long_sync's puzzle-hash/coin-id
	// derivation loop (SPEC_FULL §C.4, default 50).
	MaxDerivationPasses int
}

// Default returns the configuration spec §4-§6 describes as defaults.
func Default() Config {
	return Config{
		TrustedPeers:            map[types.Bytes32]bool{},
		WeightProofRecentBlocks: 0,
		LongSyncThreshold:       200,
		MaxQueueDepth:           2000,
		ActiveCap:               6,
		WaitingCap:              20,
		WaitingHighWatermark:    20,
		BackpressureSleep:       2 * time.Second,
		WeightProofFetchTimeout: 60 * time.Second,
		PeerCloseGrace:          120 * time.Second,
		PeerSyncedStaleness:     600 * time.Second,
		HeaderBlockBatchSize:    32,
		SubscriptionBatchSize:   1000,
		RaceHeightHorizon:       100,
		PlotSignatureTailLength: 50,
		MaxDerivationPasses:     50,
	}
}
