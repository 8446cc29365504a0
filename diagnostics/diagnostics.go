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

// Package diagnostics implements Diagnostics (spec §4.I): a periodic
// snapshot of queue depths across the priority lock, the admission
// gate, the race cache, and the subscription queue, plus on-demand
// deeper dumps (goroutine-local call stacks, full peer table state)
// for diagnosing a stuck or misbehaving sync.
package diagnostics

import (
	"context"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-stack/stack"

	"github.com/chia-network/light-wallet-sync/admission"
	"github.com/chia-network/light-wallet-sync/internal/mclock"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/racecache"
	"github.com/chia-network/light-wallet-sync/subscription"
	"github.com/chia-network/light-wallet-sync/synclock"
)

// Diagnostics periodically logs the engine's internal queue state and
// can be asked for deeper, on-demand dumps.
type Diagnostics struct {
	lock      *synclock.Lock
	admission *admission.Gate
	race      *racecache.Cache
	subLoop   *subscription.Loop
	interval  time.Duration
	clock     mclock.Clock
	log       log.Logger
}

// New builds a Diagnostics reporting every interval, ticking against
// the system clock.
func New(lock *synclock.Lock, gate *admission.Gate, race *racecache.Cache, subLoop *subscription.Loop, interval time.Duration, logger log.Logger) *Diagnostics {
	return NewWithClock(lock, gate, race, subLoop, interval, mclock.System{}, logger)
}

// NewWithClock builds a Diagnostics ticking against clock, letting
// tests drive the snapshot loop with a mclock.Simulated instead of
// waiting on wall-clock time.
func NewWithClock(lock *synclock.Lock, gate *admission.Gate, race *racecache.Cache, subLoop *subscription.Loop, interval time.Duration, clock mclock.Clock, logger log.Logger) *Diagnostics {
	if logger == nil {
		logger = log.Root()
	}
	return &Diagnostics{lock: lock, admission: gate, race: race, subLoop: subLoop, interval: interval, clock: clock, log: logger}
}

// Run logs a snapshot every interval until ctx is done.
func (d *Diagnostics) Run(ctx context.Context) error {
	timer := d.clock.NewTimer(d.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C():
			d.snapshot()
			timer.Reset(d.interval)
		}
	}
}

func (d *Diagnostics) snapshot() {
	ultra, high, low := d.lock.QueueDepths()
	d.log.Info("sync engine state",
		"lock_held", d.lock.Held(),
		"lock_ultra_waiting", ultra,
		"lock_high_waiting", high,
		"lock_low_waiting", low,
		"admission_waiting", d.admission.Waiting(),
		"race_cache_headers", d.race.Len(),
		"subscription_queue_depth", d.subLoop.QueueDepth(),
	)
}

// LogSlowAcquire logs a warning with the calling goroutine's trimmed
// stack when a priority lock acquisition takes at least threshold,
// helping identify which caller is holding up lower-priority classes.
func (d *Diagnostics) LogSlowAcquire(class synclock.Priority, waited, threshold time.Duration) {
	if waited < threshold {
		return
	}
	trace := stack.Trace().TrimRuntime()
	d.log.Warn("slow priority lock acquisition", "class", class, "waited", waited, "stack", trace.String())
}

// DumpPeers renders a deep, human-readable dump of the current peer
// table — connection state, announced peak, synced status — for
// pasting into a bug report.
func (d *Diagnostics) DumpPeers(peers *peer.Table) string {
	type peerInfo struct {
		Index   int
		ID      string
		Trusted bool
		Peak    interface{}
		HasPeak bool
	}
	var info []peerInfo
	peers.ForEach(func(index int, p peer.Interface, s *peer.State) {
		peak, hasPeak := s.Peak()
		id := p.ID()
		info = append(info, peerInfo{Index: index, ID: string(id[:]), Trusted: p.Trusted(), Peak: peak, HasPeak: hasPeak})
	})
	return spew.Sdump(info)
}
