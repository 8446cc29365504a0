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

package peercache

import (
	"testing"

	"github.com/chia-network/light-wallet-sync/types"
)

func TestBlockRoundTrip(t *testing.T) {
	c := New()
	if _, ok := c.GetBlock(10); ok {
		t.Fatal("expected miss on empty cache")
	}
	b := types.HeaderBlock{Height: 10}
	c.PutBlock(b)
	got, ok := c.GetBlock(10)
	if !ok || got.Height != 10 {
		t.Fatalf("expected cached block at height 10, got %+v ok=%v", got, ok)
	}
}

func TestRangeRoundTripCompressed(t *testing.T) {
	c := New()
	payload := []byte("some serialized header block batch")
	c.PutRange(100, 131, payload)
	got, ok := c.GetRange(100, 131)
	if !ok {
		t.Fatal("expected cached range")
	}
	if string(got) != string(payload) {
		t.Fatalf("decompressed payload mismatch: got %q want %q", got, payload)
	}
}

func TestValidatedStates(t *testing.T) {
	c := New()
	var id types.Bytes32
	id[0] = 7
	if c.IsValidated(id) {
		t.Fatal("should not be validated yet")
	}
	c.MarkValidated(id, 50)
	if !c.IsValidated(id) {
		t.Fatal("should be validated after MarkValidated")
	}
}

func TestClearAfterHeight(t *testing.T) {
	c := New()
	c.PutBlock(types.HeaderBlock{Height: 5})
	c.PutBlock(types.HeaderBlock{Height: 15})
	c.PutSesRequest(5, types.SesInfoResponse{})
	c.PutSesRequest(15, types.SesInfoResponse{})
	var lowID, highID types.Bytes32
	lowID[0], highID[0] = 1, 2
	c.MarkValidated(lowID, 5)
	c.MarkValidated(highID, 15)

	c.ClearAfterHeight(10)

	if _, ok := c.GetBlock(5); !ok {
		t.Fatal("block at or below fork height should survive")
	}
	if _, ok := c.GetBlock(15); ok {
		t.Fatal("block above fork height should be evicted")
	}
	if _, ok := c.GetSesRequest(15); ok {
		t.Fatal("ses request above fork height should be evicted")
	}
	if c.IsValidated(highID) {
		t.Fatal("validated state above fork height should be evicted")
	}
	if !c.IsValidated(lowID) {
		t.Fatal("validated state at or below fork height should survive")
	}
}
