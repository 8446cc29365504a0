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

package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/synclock"
	"github.com/chia-network/light-wallet-sync/types"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

func TestSubmitRejectsUnrecognizedType(t *testing.T) {
	l := New(config.Default(), synclock.New(10, nil), walletstate.NewMemStore(), 100, 10, nil)
	if err := l.Submit(context.Background(), SubType(9), types.Bytes32{}); err == nil {
		t.Fatal("expected error for unrecognized subscription type")
	}
}

func TestRunInstallsPuzzleHashSubscription(t *testing.T) {
	store := walletstate.NewMemStore()
	l := New(config.Default(), synclock.New(10, nil), store, 1000, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var ph types.Bytes32
	ph[0] = 1
	if err := l.Submit(ctx, SubPuzzleHash, ph); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		hashes, _ := store.PuzzleHashes()
		if len(hashes) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for subscription to apply")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}
