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

// Package syncerr collects the sentinel error kinds the sync engine
// raises, per spec §7's error-kind table.
package syncerr

import "errors"

var (
	// ErrQueueFull is returned when PriorityLock or BoundedAdmission are
	// at capacity; it is retriable by the caller.
	ErrQueueFull = errors.New("queue full")

	// ErrPeerMisbehavior marks a failed inclusion proof, bad header
	// response, or invalid weight proof. The peer must be closed with
	// CloseCodeMisbehavior and the work discarded without retry.
	ErrPeerMisbehavior = errors.New("peer misbehavior")

	// ErrPeerTimeout marks a missing response within the operation's
	// deadline. The peer is closed with CloseCodeTimeout; reconnection
	// is allowed.
	ErrPeerTimeout = errors.New("peer timeout")

	// ErrOldSoftware marks a peer below the minimum protocol version.
	// The peer is closed and must not reconnect during this session.
	ErrOldSoftware = errors.New("peer protocol version too old")

	// ErrNoFork is returned when block-inclusion cannot anchor a header
	// to either the recent-chain tail or a matching sub-epoch summary.
	ErrNoFork = errors.New("no matching sub-epoch summary or recent chain entry")

	// ErrWalletInvariantBreach marks receive_block returning an invalid
	// block during short-sync backtrack; the in-flight short sync must
	// abort without corrupting wallet state.
	ErrWalletInvariantBreach = errors.New("wallet invariant breach")

	// ErrUnrecognizedSubscriptionType marks a (sub_type, bytes) item
	// outside {0: puzzle-hash, 1: coin-id}; rejected as a protocol
	// error rather than a crash (spec §9 open question).
	ErrUnrecognizedSubscriptionType = errors.New("unrecognized subscription type")
)

// ReorgDetected signals that CoinStateValidator observed a coin
// transition from spent back to unspent, i.e. the spending block was
// reorged out. It is never fatal; callers re-validate from
// ConfirmedHeight (spec §4.E "reorg detection").
type ReorgDetected struct {
	ConfirmedHeight uint32
}

func (e *ReorgDetected) Error() string {
	return "coin state reorg detected, re-validating from confirmed height"
}

// CloseCode is the wire-level reason a peer connection is closed.
type CloseCode int

const (
	// CloseCodeMisbehavior is used for protocol violations; no retry.
	CloseCodeMisbehavior CloseCode = 9999
	// CloseCodeTimeout is used for unresponsive peers; reconnect allowed.
	CloseCodeTimeout CloseCode = 120
)
