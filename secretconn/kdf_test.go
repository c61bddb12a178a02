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

func TestDeriveSessionKeysSwapsByOrdering(t *testing.T) {
	shared := make([]byte, 32)
	for i := range shared {
		shared[i] = byte(i)
	}

	lower, err := deriveSessionKeys(shared, true)
	require.NoError(t, err)
	upper, err := deriveSessionKeys(shared, false)
	require.NoError(t, err)

	require.Equal(t, lower.recvKey, upper.sendKey)
	require.Equal(t, lower.sendKey, upper.recvKey)
	require.Equal(t, lower.legacyChallenge, upper.legacyChallenge)
	require.NotEqual(t, lower.sendKey, lower.recvKey)
}

func TestDeriveSessionKeysDeterministic(t *testing.T) {
	shared := make([]byte, 32)
	for i := range shared {
		shared[i] = byte(2 * i)
	}

	a, err := deriveSessionKeys(shared, true)
	require.NoError(t, err)
	b, err := deriveSessionKeys(shared, true)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSessionKeysZero(t *testing.T) {
	shared := make([]byte, 32)
	keys, err := deriveSessionKeys(shared, true)
	require.NoError(t, err)

	keys.zero()
	require.Equal(t, [32]byte{}, keys.recvKey)
	require.Equal(t, [32]byte{}, keys.sendKey)
	require.Equal(t, [32]byte{}, keys.legacyChallenge)
}
