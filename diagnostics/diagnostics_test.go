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

package diagnostics

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chia-network/light-wallet-sync/admission"
	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/internal/mclock"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/peer"
	"github.com/chia-network/light-wallet-sync/racecache"
	"github.com/chia-network/light-wallet-sync/subscription"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

func TestRunLogsSnapshotOnSimulatedClock(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandler(&buf, false))

	lock := synclock.New(10, nil)
	gate := admission.New(6, 20, 20)
	race := racecache.New(100)
	subLoop := subscription.New(config.Default(), lock, walletstate.NewMemStore(), 100, 10, nil)
	clock := new(mclock.Simulated)

	d := NewWithClock(lock, gate, race, subLoop, time.Second, clock, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	for clock.ActiveTimers() == 0 {
		time.Sleep(time.Millisecond)
	}
	clock.Run(time.Second)

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(buf.String(), "sync engine state") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if !strings.Contains(buf.String(), "sync engine state") {
		t.Fatalf("expected a snapshot log line after advancing the simulated clock, got %q", buf.String())
	}
}

func TestRunLogsPeriodicSnapshot(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandler(&buf, false))

	lock := synclock.New(10, nil)
	gate := admission.New(6, 20, 20)
	race := racecache.New(100)
	subLoop := subscription.New(config.Default(), lock, walletstate.NewMemStore(), 100, 10, nil)

	d := New(lock, gate, race, subLoop, 5*time.Millisecond, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	if !strings.Contains(buf.String(), "sync engine state") {
		t.Fatalf("expected at least one snapshot log line, got %q", buf.String())
	}
}

func TestDumpPeersNonEmptyForEmptyTable(t *testing.T) {
	table := peer.NewTable()
	d := New(synclock.New(10, nil), admission.New(1, 1, 1), racecache.New(10),
		subscription.New(config.Default(), synclock.New(10, nil), walletstate.NewMemStore(), 100, 10, nil),
		time.Second, nil)
	dump := d.DumpPeers(table)
	if dump == "" {
		t.Fatal("expected non-empty dump even for an empty peer table")
	}
}
