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
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const kdfInfo = "TENDERMINT_SECRET_CONNECTION_KEY_GEN"

// sessionKeys holds the three 32-byte values derived from the ECDH shared
// secret: the keys for each direction plus the legacy pre-transcript
// challenge, which both peers always produce identically.
type sessionKeys struct {
	recvKey         [32]byte
	sendKey         [32]byte
	legacyChallenge [32]byte
}

// deriveSessionKeys runs HKDF-SHA256 over the shared secret with an empty
// salt and assigns the first 64 bytes of output to recv/send according to
// which peer's ephemeral public key sorts first lexicographically. Both
// peers derive the same legacyChallenge from the final 32 bytes.
func deriveSessionKeys(sharedSecret []byte, localIsLower bool) (*sessionKeys, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(kdfInfo))

	var out [96]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return nil, wrapErr(KindIO, "hkdf expand failed", err)
	}

	keys := &sessionKeys{}
	copy(keys.legacyChallenge[:], out[64:96])

	if localIsLower {
		copy(keys.recvKey[:], out[0:32])
		copy(keys.sendKey[:], out[32:64])
	} else {
		copy(keys.sendKey[:], out[0:32])
		copy(keys.recvKey[:], out[32:64])
	}
	return keys, nil
}

// zero overwrites all derived key material, per the contract obligation
// that handshake and session secrets are zeroed once no longer needed.
func (k *sessionKeys) zero() {
	for i := range k.recvKey {
		k.recvKey[i] = 0
	}
	for i := range k.sendKey {
		k.sendKey[i] = 0
	}
	for i := range k.legacyChallenge {
		k.legacyChallenge[i] = 0
	}
}
