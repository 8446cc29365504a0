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

// Package node wires every core component — PriorityLock,
// BoundedAdmission, PeerRequestCache, RaceCache, CoinStateValidator,
// WeightProofGate, PeakReconciler, SubscriptionLoop, and Diagnostics —
// into a single running sync engine, the wallet-facing equivalent of a
// light-client node.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chia-network/light-wallet-sync/admission"
	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/diagnostics"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/peercache"
	"github.com/chia-network/light-wallet-sync/racecache"
	"github.com/chia-network/light-wallet-sync/reconciler"
	"github.com/chia-network/light-wallet-sync/subscription"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/validator"
	"github.com/chia-network/light-wallet-sync/walletstate"
	"github.com/chia-network/light-wallet-sync/weightproof"
)

// Options configures a new Engine. Zero values fall back to the
// package defaults documented on each field.
type Options struct {
	Config               config.Config
	Store                walletstate.Store
	Logger               log.Logger
	WeightProofCacheBytes int           // default 32MiB
	WeightProofDBPath     string        // empty disables on-disk persistence
	SubscriptionRate      float64       // items/sec, default 200
	SubscriptionQueue     int           // default 1000
	DiagnosticsInterval   time.Duration // default 30s
}

func (o *Options) setDefaults() {
	if o.WeightProofCacheBytes == 0 {
		o.WeightProofCacheBytes = 32 << 20
	}
	if o.SubscriptionRate == 0 {
		o.SubscriptionRate = 200
	}
	if o.SubscriptionQueue == 0 {
		o.SubscriptionQueue = 1000
	}
	if o.DiagnosticsInterval == 0 {
		o.DiagnosticsInterval = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.Root()
	}
}

// Engine is the running sync node.
type Engine struct {
	cfg   config.Config
	log   log.Logger
	store walletstate.Store

	lock       *synclock.Lock
	admission  *admission.Gate
	race       *racecache.Cache
	validator  *validator.Validator
	weight     *weightproof.Gate
	peers      *peer.Table
	reconciler *reconciler.Reconciler
	sub        *subscription.Loop
	diag       *diagnostics.Diagnostics

	cacheMu sync.Mutex
	caches  map[int]*peercache.Cache
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	opts.setDefaults()
	cfg := opts.Config

	lock := synclock.New(cfg.MaxQueueDepth, opts.Logger)
	gate := admission.New(cfg.ActiveCap, cfg.WaitingCap, cfg.WaitingHighWatermark)
	race := racecache.New(cfg.RaceHeightHorizon)
	v := validator.New(cfg, opts.Logger)
	wp, err := weightproof.New(cfg, opts.WeightProofCacheBytes, opts.WeightProofDBPath, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("building weight proof gate: %w", err)
	}
	peers := peer.NewTable()
	rec := reconciler.New(cfg, lock, gate, opts.Store, v, wp, peers, race, opts.Logger)
	sub := subscription.New(cfg, lock, opts.Store, opts.SubscriptionRate, opts.SubscriptionQueue, opts.Logger)
	diag := diagnostics.New(lock, gate, race, sub, opts.DiagnosticsInterval, opts.Logger)

	return &Engine{
		cfg: cfg, log: opts.Logger, store: opts.Store,
		lock: lock, admission: gate, race: race, validator: v, weight: wp,
		peers: peers, reconciler: rec, sub: sub, diag: diag,
		caches: make(map[int]*peercache.Cache),
	}, nil
}

// Run starts the background loops (subscription draining and periodic
// diagnostics) and blocks until ctx is done or one of them fails.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.sub.Run(gctx) })
	g.Go(func() error { return e.diag.Run(gctx) })
	err := g.Wait()
	if err := e.weight.Close(); err != nil {
		e.log.Warn("closing weight proof cache", "err", err)
	}
	return err
}

// ConnectPeer registers p and returns its stable table index.
func (e *Engine) ConnectPeer(p peer.Interface) int {
	idx := e.peers.Add(p)
	e.cacheMu.Lock()
	e.caches[idx] = peercache.New()
	e.cacheMu.Unlock()
	return idx
}

// DisconnectPeer removes the peer at index and frees its request cache.
func (e *Engine) DisconnectPeer(index int) {
	e.peers.Remove(index)
	e.cacheMu.Lock()
	delete(e.caches, index)
	e.cacheMu.Unlock()
}

func (e *Engine) cacheFor(index int) (*peercache.Cache, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	c, ok := e.caches[index]
	return c, ok
}

// HandleNewPeak processes a new_peak_wallet announcement from the peer
// at index.
func (e *Engine) HandleNewPeak(ctx context.Context, index int, peak types.PeerPeak) error {
	cache, ok := e.cacheFor(index)
	if !ok {
		return fmt.Errorf("peer index %d has no request cache", index)
	}
	return e.reconciler.HandleNewPeak(ctx, index, cache, peak)
}

// ReceiveState applies a batch of coin state updates reported by the
// peer at index. forkHeight and height carry the reorg context a
// trusted peer's state_update message reports; both are nil for an
// untrusted peer or a subscription response with no reorg to report.
func (e *Engine) ReceiveState(ctx context.Context, index int, updates []reconciler.CoinStateUpdate, forkHeight, height *uint32) error {
	cache, ok := e.cacheFor(index)
	if !ok {
		return fmt.Errorf("peer index %d has no request cache", index)
	}
	return e.reconciler.ReceiveState(ctx, index, cache, updates, forkHeight, height)
}

// Subscribe installs a new puzzle-hash or coin-id subscription.
func (e *Engine) Subscribe(ctx context.Context, t subscription.SubType, raw types.Bytes32) error {
	return e.sub.Submit(ctx, t, raw)
}

// Diagnostics exposes the engine's Diagnostics instance for on-demand
// dumps (e.g. wired into an admin RPC endpoint).
func (e *Engine) Diagnostics() *diagnostics.Diagnostics { return e.diag }

// Peers exposes the peer table for callers that need to iterate
// connections directly (e.g. a metrics exporter).
func (e *Engine) Peers() *peer.Table { return e.peers }
