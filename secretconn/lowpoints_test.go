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

func TestRejectLowOrderPointRejectsAllKnownPoints(t *testing.T) {
	for i, p := range lowOrderPoints {
		err := rejectLowOrderPoint(p[:])
		require.Error(t, err, "point %d should be rejected", i)
		require.ErrorIs(t, err, &Error{Kind: KindLowOrderKey})
	}
}

func TestRejectLowOrderPointAcceptsOrdinaryPoint(t *testing.T) {
	point := make([]byte, 32)
	for i := range point {
		point[i] = byte(i + 1)
	}
	require.NoError(t, rejectLowOrderPoint(point))
}

func TestRejectLowOrderPointWrongLength(t *testing.T) {
	err := rejectLowOrderPoint(make([]byte, 31))
	require.Error(t, err)
	require.ErrorIs(t, err, &Error{Kind: KindMalformedHandshake})
}
