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
	"bytes"

	"github.com/gtank/merlin"
)

const transcriptLabel = "TENDERMINT_SECRET_CONNECTION_TRANSCRIPT_HASH"

// sortEphemeral returns the two ephemeral public keys in lexicographic
// (big-endian, byte-wise) order, plus whether a sorted first.
func sortEphemeral(a, b [32]byte) (lo, hi [32]byte, aIsLower bool) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b, true
	}
	return b, a, false
}

// transcriptMAC builds the Merlin transcript described by the spec and
// extracts the 32-byte MAC used as the handshake's signing target. Both
// peers feed identical bytes in identical order, so both derive the same
// MAC without further coordination.
func transcriptMAC(loEph, hiEph, sharedSecret [32]byte) [32]byte {
	t := merlin.NewTranscript(transcriptLabel)
	t.AppendMessage([]byte("EPHEMERAL_LOWER_PUBLIC_KEY"), loEph[:])
	t.AppendMessage([]byte("EPHEMERAL_UPPER_PUBLIC_KEY"), hiEph[:])
	t.AppendMessage([]byte("DH_SECRET"), sharedSecret[:])

	var mac [32]byte
	copy(mac[:], t.ExtractBytes([]byte("SECRET_CONNECTION_MAC"), 32))
	return mac
}
