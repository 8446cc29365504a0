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

package validator

import (
	blst "github.com/supranational/blst/bindings/go"

	"github.com/chia-network/light-wallet-sync/types"
)

// plotSignatureDST is the domain separation tag plots sign foliage
// block data under, keeping these signatures from colliding with any
// other BLS12-381 signature usage on the same keys.
var plotSignatureDST = []byte("CHIA_PLOT_SIGNATURE")

// verifyPlotSignature checks rc.PlotSignature over rc.FoliageBlockData
// against rc.PlotPublicKey. A block with no plot signature or public
// key, or with one that does not decode, reports false, which
// ValidatePlotSignatures treats the same as a failed verification.
func verifyPlotSignature(rc types.RewardChainBlock) (bool, error) {
	if len(rc.PlotSignature) == 0 || len(rc.PlotPublicKey) == 0 {
		return false, nil
	}
	sig := new(blst.P2Affine).Uncompress(rc.PlotSignature)
	if sig == nil {
		return false, nil
	}
	pk := new(blst.P1Affine).Uncompress(rc.PlotPublicKey)
	if pk == nil {
		return false, nil
	}
	return sig.Verify(true, pk, true, rc.FoliageBlockData, plotSignatureDST), nil
}
