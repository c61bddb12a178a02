// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package secretconn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortEphemeralOrdersConsistently(t *testing.T) {
	a := [32]byte{0x01}
	b := [32]byte{0x02}

	lo, hi, aIsLower := sortEphemeral(a, b)
	require.Equal(t, a, lo)
	require.Equal(t, b, hi)
	require.True(t, aIsLower)

	lo2, hi2, bIsLower := sortEphemeral(b, a)
	require.Equal(t, a, lo2)
	require.Equal(t, b, hi2)
	require.False(t, bIsLower)
}

func TestTranscriptMACSymmetricBetweenPeers(t *testing.T) {
	a := [32]byte{0x01}
	b := [32]byte{0x02}
	shared := [32]byte{0xAA}

	loA, hiA, _ := sortEphemeral(a, b)
	loB, hiB, _ := sortEphemeral(b, a)
	require.Equal(t, loA, loB)
	require.Equal(t, hiA, hiB)

	macA := transcriptMAC(loA, hiA, shared)
	macB := transcriptMAC(loB, hiB, shared)
	require.Equal(t, macA, macB)
}

func TestTranscriptMACDivergesOnDifferentSecret(t *testing.T) {
	lo := [32]byte{0x01}
	hi := [32]byte{0x02}

	mac1 := transcriptMAC(lo, hi, [32]byte{0xAA})
	mac2 := transcriptMAC(lo, hi, [32]byte{0xBB})
	require.NotEqual(t, mac1, mac2)
}
