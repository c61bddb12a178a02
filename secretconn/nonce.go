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

import "encoding/binary"

// nonceSize matches the IETF ChaCha20-Poly1305 nonce layout: 12 bytes, the
// first four always zero here, the remaining eight a little-endian counter.
const nonceSize = 12

// nonce is a 96-bit little-endian counter incremented once per sealed or
// opened frame. Send and receive directions each keep their own nonce; it
// is never shared across the two.
type nonce struct {
	counter uint64
	bytes   [nonceSize]byte
}

// asBytes returns the current 12-byte nonce, ready to hand to an AEAD.
func (n *nonce) asBytes() []byte {
	return n.bytes[:]
}

// increment advances the counter by one. It returns a NonceOverflow error
// rather than silently wrapping once the counter would reach 2^64.
func (n *nonce) increment() error {
	if n.counter == ^uint64(0) {
		return newErr(KindNonceOverflow, "nonce counter reached 2^64")
	}
	n.counter++
	binary.LittleEndian.PutUint64(n.bytes[4:], n.counter)
	return nil
}
