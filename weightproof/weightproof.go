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

// Package weightproof implements WeightProofGate (spec §4.F):
// request_proof_of_weight under a hard deadline, validate the proof's
// internal consistency, deduplicate concurrent fetches for the same
// peer/height, and remember already-validated proofs so a peer
// re-announcing the same peak doesn't pay full validation cost twice.
package weightproof

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/sync/singleflight"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/types"
)

// ErrInvalidProof marks a weight proof that failed internal
// consistency checks: non-monotonic weight, non-increasing heights, or
// a peak that doesn't match the claimed recent chain tail.
var ErrInvalidProof = errors.New("weight proof failed validation")

// Handler models weight_proof_handler (spec §6): the wallet-side
// component with the authority to accept a weight proof and compute
// the fork point between two of them. Gate defers to it instead of
// running the structural checks in this file unsupervised, so a
// consensus-aware implementation can be swapped in without touching
// the fetch/cache/dedup plumbing.
type Handler interface {
	// Validate checks wp and, if accepted, reports the fork height it
	// anchors at plus the sub-epoch summaries and recent-chain records
	// it installs.
	Validate(wp types.WeightProof) (valid bool, fork uint32, summaries []types.SubEpochSummary, records []types.HeaderBlock, err error)
	// GetForkPoint reports the highest height both old and newWP agree
	// on, used by the reconciler as long_sync's rollback point.
	GetForkPoint(old, newWP types.WeightProof) (height uint32, found bool)
}

// defaultHandler backs a Gate that wasn't given an external Handler:
// it runs this package's own structural Validate/ForkPoint checks.
type defaultHandler struct{}

func (defaultHandler) Validate(wp types.WeightProof) (bool, uint32, []types.SubEpochSummary, []types.HeaderBlock, error) {
	if err := Validate(wp); err != nil {
		return false, 0, nil, nil, err
	}
	return true, 0, wp.SubEpochs, wp.RecentChainData, nil
}

func (defaultHandler) GetForkPoint(old, newWP types.WeightProof) (uint32, bool) {
	return ForkPoint(newWP, old.RecentChainData)
}

// Gate is WeightProofGate. Construct one per sync engine instance.
type Gate struct {
	cfg     config.Config
	cache   *fastcache.Cache // in-memory: recently validated (peer, height, peak) markers
	db      *leveldb.DB      // optional on-disk mirror, survives restarts
	group   singleflight.Group
	log     log.Logger
	handler Handler
}

// New builds a Gate with an in-memory validated-proof cache of
// cacheSizeBytes. If dbPath is non-empty, a goleveldb database there
// backs the cache across restarts.
func New(cfg config.Config, cacheSizeBytes int, dbPath string, logger log.Logger) (*Gate, error) {
	if logger == nil {
		logger = log.Root()
	}
	g := &Gate{cfg: cfg, cache: fastcache.New(cacheSizeBytes), log: logger, handler: defaultHandler{}}
	if dbPath != "" {
		db, err := leveldb.OpenFile(dbPath, nil)
		if err != nil {
			return nil, fmt.Errorf("opening weight proof cache: %w", err)
		}
		g.db = db
	}
	return g, nil
}

// SetHandler installs h as the weight_proof_handler Gate defers to for
// Validate and GetForkPoint. A nil h is ignored.
func (g *Gate) SetHandler(h Handler) {
	if h != nil {
		g.handler = h
	}
}

// Handler returns the weight_proof_handler Gate currently defers to,
// for callers (e.g. long_sync) that need its fork point or the
// summaries/records a validated proof installs.
func (g *Gate) Handler() Handler {
	return g.handler
}

// Close releases the on-disk cache, if one was opened.
func (g *Gate) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

func cacheKey(peerID types.Bytes32, height uint32, peak types.Bytes32) []byte {
	key := make([]byte, 32+4+32)
	copy(key, peerID[:])
	binary.BigEndian.PutUint32(key[32:], height)
	copy(key[36:], peak[:])
	return key
}

func (g *Gate) seen(key []byte) bool {
	if g.cache.Has(key) {
		return true
	}
	if g.db != nil {
		if ok, err := g.db.Has(key, nil); err == nil && ok {
			g.cache.Set(key, []byte{1})
			return true
		}
	}
	return false
}

func (g *Gate) markSeen(key []byte) {
	g.cache.Set(key, []byte{1})
	if g.db != nil {
		if err := g.db.Put(key, []byte{1}, nil); err != nil {
			g.log.Warn("failed to persist weight proof cache entry", "err", err)
		}
	}
}

// FetchAndValidate requests a proof of weight for target.Height from
// p, under the configured WeightProofFetchTimeout, and validates it
// via the installed Handler after checking its recent-chain tail
// actually matches the peak p announced (spec §4.F). Concurrent calls
// for the same (peer, height, announced peak) collapse into a single
// request via singleflight; a proof already validated for that key
// skips re-validation but is still returned from the fresh request,
// since the wire payload itself is never persisted.
func (g *Gate) FetchAndValidate(ctx context.Context, p peer.Interface, target types.PeerPeak) (types.WeightProof, error) {
	key := cacheKey(p.ID(), target.Height, target.HeaderHash)
	alreadyValidated := g.seen(key)

	sfKey := fmt.Sprintf("%x", key)
	corrID := uuid.NewString()
	v, err, shared := g.group.Do(sfKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, g.cfg.WeightProofFetchTimeout)
		defer cancel()

		g.log.Debug("fetching weight proof", "correlation_id", corrID, "peer", p.ID(), "height", target.Height, "cached", alreadyValidated)
		wp, err := p.RequestProofOfWeight(fetchCtx, target.Height)
		if err != nil {
			return types.WeightProof{}, err
		}
		peak := wp.Peak()
		if peak == nil || peak.Height != target.Height || peak.HeaderHash != target.HeaderHash {
			return types.WeightProof{}, fmt.Errorf("%w: recent chain tail does not match announced peak", ErrInvalidProof)
		}
		if !alreadyValidated {
			valid, _, _, _, err := g.handler.Validate(wp)
			if err != nil {
				return types.WeightProof{}, err
			}
			if !valid {
				return types.WeightProof{}, fmt.Errorf("%w: rejected by weight proof handler", ErrInvalidProof)
			}
			g.markSeen(key)
		}
		return wp, nil
	})
	if err != nil {
		g.log.Warn("weight proof fetch failed", "correlation_id", corrID, "peer", p.ID(), "height", target.Height, "err", err)
		return types.WeightProof{}, err
	}
	g.log.Debug("weight proof fetch complete", "correlation_id", corrID, "peer", p.ID(), "height", target.Height, "shared", shared)
	return v.(types.WeightProof), nil
}

// Validate checks a weight proof's internal consistency: the recent
// chain must be non-empty, heights strictly increasing, and chain
// weight non-decreasing.
func Validate(wp types.WeightProof) error {
	if len(wp.RecentChainData) == 0 {
		return fmt.Errorf("%w: empty recent chain", ErrInvalidProof)
	}
	prev := wp.RecentChainData[0]
	for _, hb := range wp.RecentChainData[1:] {
		if hb.Height <= prev.Height {
			return fmt.Errorf("%w: non-increasing height at %d", ErrInvalidProof, hb.Height)
		}
		if hb.Weight != nil && prev.Weight != nil && hb.Weight.Cmp(prev.Weight) < 0 {
			return fmt.Errorf("%w: decreasing weight at height %d", ErrInvalidProof, hb.Height)
		}
		prev = hb
	}
	return nil
}

// ForkPoint finds the highest height present in both a remote weight
// proof's recent chain data and the wallet's own recently reconciled
// headers, with matching header hashes — the point short_sync can
// safely resume from without a full long_sync (spec §4.G.2).
func ForkPoint(wp types.WeightProof, local []types.HeaderBlock) (height uint32, found bool) {
	localByHeight := make(map[uint32]types.Bytes32, len(local))
	for _, hb := range local {
		localByHeight[hb.Height] = hb.HeaderHash
	}
	for i := len(wp.RecentChainData) - 1; i >= 0; i-- {
		hb := wp.RecentChainData[i]
		if hash, ok := localByHeight[hb.Height]; ok && hash == hb.HeaderHash {
			return hb.Height, true
		}
	}
	return 0, false
}
