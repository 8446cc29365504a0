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

// Package walletstate defines the storage boundary (spec §6) between
// the sync engine and wherever wallet data actually lives. The engine
// only ever talks to the Store interface; the wallet backend (key
// derivation, balance accounting, UI) owns the concrete implementation.
package walletstate

import "github.com/chia-network/light-wallet-sync/types"

// BlockResult is the outcome of applying one header block forward onto
// wallet state via ReceiveBlock (spec §6 receive_block).
type BlockResult int

const (
	// BlockAdded means the block chained onto the wallet's current
	// peak and was recorded.
	BlockAdded BlockResult = iota
	// BlockInvalid means the block did not chain onto the wallet's
	// current peak; the caller must abort rather than advance.
	BlockInvalid
)

// Store is the persistence contract CoinStateValidator and
// PeakReconciler drive. Implementations must make Put* calls
// atomic with respect to concurrent Get* calls for the same ids, but
// need not be safe for concurrent writers: the engine only calls Put*
// while holding the PriorityLock critical section.
type Store interface {
	// GetCoinState returns the last known state of a coin, if the
	// wallet is tracking it at all.
	GetCoinState(id types.Bytes32) (state types.CoinState, tracked bool, err error)

	// PutCoinStates durably records the given coin states, applied in
	// order. Each replaces any prior state for the same coin id.
	PutCoinStates(states []types.CoinState) error

	// PeakHeight returns the last height the wallet considers confirmed.
	PeakHeight() (uint32, error)

	// SetPeakHeight durably advances the confirmed height.
	SetPeakHeight(height uint32) error

	// PuzzleHashes returns every puzzle hash the wallet currently
	// derives and subscribes to.
	PuzzleHashes() ([]types.Bytes32, error)

	// AddPuzzleHashes records newly derived puzzle hashes.
	AddPuzzleHashes(hashes []types.Bytes32) error

	// DerivationIndex returns how many addresses have been derived so
	// far. The sync engine itself does not call it.
	DerivationIndex() (int, error)

	// SetDerivationIndex records the new derivation frontier.
	SetDerivationIndex(index int) error

	// RecentHeader returns the header hash the wallet recorded for
	// height, if it still keeps one, so short_sync_backtrack can anchor
	// the next block directly instead of falling back to sub-epoch
	// matching (spec §4.G.2).
	RecentHeader(height uint32) (hash types.Bytes32, known bool, err error)

	// RecordRecentHeader stores the header hash reached at height.
	RecordRecentHeader(height uint32, hash types.Bytes32) error

	// ReorgRollback discards every coin state and recent header above
	// height and pulls the confirmed peak back to height, so a
	// recognized reorg can't leave stale post-fork data behind (spec §6
	// reorg_rollback).
	ReorgRollback(height uint32) error

	// ReceiveBlock applies hb forward onto wallet state: it must chain
	// onto the current peak's recorded header hash (or be the first
	// block the wallet ever sees) to be accepted. A block that doesn't
	// chain is reported as BlockInvalid rather than an error, so the
	// caller can abort the sync attempt cleanly (spec §6 receive_block).
	ReceiveBlock(hb types.HeaderBlock) (BlockResult, error)
}
