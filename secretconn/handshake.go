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
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"

	"github.com/sage-x-project/secureconn/internal/logger"
)

var handshakeLog logger.Logger = logger.NewDefaultLogger()

// AwaitingEphKey is the handshake's first state: we hold our long-term
// identity key and a single-use ephemeral X25519 secret, and are waiting
// for the peer's ephemeral public key. It is consumed by value on the
// transition to AwaitingAuthSig; the Go type system can't forbid reuse the
// way a move-only Rust type can, so the ephemeral secret itself is the
// guard (see GotEphKey).
type AwaitingEphKey struct {
	protocolVersion ProtocolVersion
	localPrivKey    ed25519.PrivateKey
	localEphSecret  *ecdh.PrivateKey // nil once consumed
	localEphPub     [32]byte
}

// AwaitingAuthSig is the handshake's second state: session keys are
// derived, the local signature is computed, and we're waiting for the
// peer's AuthSigMessage.
type AwaitingAuthSig struct {
	protocolVersion ProtocolVersion
	localPrivKey    ed25519.PrivateKey
	keys            *sessionKeys
	mac             [32]byte
	localSignature  []byte
	complete        bool
}

// NewHandshake generates a fresh ephemeral X25519 key pair and returns the
// handshake in its initial AwaitingEphKey state.
func NewHandshake(protocolVersion ProtocolVersion, localPrivKey ed25519.PrivateKey) (*AwaitingEphKey, error) {
	ephSecret, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, wrapErr(KindIO, "failed to generate ephemeral key pair", err)
	}

	var pub [32]byte
	copy(pub[:], ephSecret.PublicKey().Bytes())

	return &AwaitingEphKey{
		protocolVersion: protocolVersion,
		localPrivKey:    localPrivKey,
		localEphSecret:  ephSecret,
		localEphPub:     pub,
	}, nil
}

// LocalEphemeralPublicKey returns this side's ephemeral public key, to be
// sent to the peer before calling GotEphKey.
func (h *AwaitingEphKey) LocalEphemeralPublicKey() [32]byte {
	return h.localEphPub
}

// GotEphKey consumes the ephemeral secret in exactly one Diffie-Hellman
// operation against the peer's ephemeral public key, derives the session
// keys and transcript MAC, signs the authentication target with the
// long-term key, and transitions to AwaitingAuthSig.
//
// Calling this twice on the same handshake returns MissingSecret: the
// ephemeral secret has already been consumed.
func (h *AwaitingEphKey) GotEphKey(remoteEphPub [32]byte) (*AwaitingAuthSig, error) {
	if h.localEphSecret == nil {
		return nil, newErr(KindMissingSecret, "ephemeral secret already consumed")
	}
	ephSecret := h.localEphSecret
	h.localEphSecret = nil

	remotePub, err := ecdh.X25519().NewPublicKey(remoteEphPub[:])
	if err != nil {
		return nil, wrapErr(KindMalformedHandshake, "invalid remote ephemeral public key", err)
	}

	shared, err := ephSecret.ECDH(remotePub)
	if err != nil {
		// crypto/ecdh itself refuses an all-zero X25519 output (a low-order
		// remote point), so this is the low-order rejection path.
		return nil, wrapErr(KindLowOrderKey, "ecdh output is all-zero", err)
	}
	if subtle.ConstantTimeCompare(shared, make([]byte, 32)) == 1 {
		return nil, newErr(KindLowOrderKey, "ecdh output is all-zero")
	}

	var sharedArr [32]byte
	copy(sharedArr[:], shared)

	lo, hi, localIsLower := sortEphemeral(h.localEphPub, remoteEphPub)
	mac := transcriptMAC(lo, hi, sharedArr)

	keys, err := deriveSessionKeys(shared, localIsLower)
	if err != nil {
		return nil, err
	}

	var signTarget []byte
	if h.protocolVersion.UsesTranscript() {
		signTarget = mac[:]
	} else {
		signTarget = keys.legacyChallenge[:]
	}
	sig := ed25519.Sign(h.localPrivKey, signTarget)

	handshakeLog.Debug("handshake: derived session keys",
		logger.Bool("local_is_lower", localIsLower),
		logger.Bool("uses_transcript", h.protocolVersion.UsesTranscript()),
	)

	for i := range sharedArr {
		sharedArr[i] = 0
	}

	return &AwaitingAuthSig{
		protocolVersion: h.protocolVersion,
		localPrivKey:    h.localPrivKey,
		keys:            keys,
		mac:             mac,
		localSignature:  sig,
	}, nil
}

// LocalPublicKey returns this side's long-term Ed25519 public key, to be
// sent as part of the local AuthSigMessage.
func (h *AwaitingAuthSig) LocalPublicKey() ed25519.PublicKey {
	return h.localPrivKey.Public().(ed25519.PublicKey)
}

// LocalSignature returns the signature over the transcript MAC (or, for
// LegacyAmino, the legacy challenge) to be sent as part of the local
// AuthSigMessage.
func (h *AwaitingAuthSig) LocalSignature() []byte {
	return h.localSignature
}

// SessionKeys returns the derived send/receive AEAD keys, for building the
// Conn once the handshake completes.
func (h *AwaitingAuthSig) SessionKeys() *sessionKeys {
	return h.keys
}

// Complete verifies the peer's AuthSigMessage against the transcript MAC
// (or legacy challenge) and, on success, transitions to Complete, returning
// the authenticated peer Ed25519 public key. Any failure destroys the
// session material and is terminal for the handshake.
func (h *AwaitingAuthSig) Complete(peerPubKey, peerSig []byte) (ed25519.PublicKey, error) {
	if h.complete {
		return nil, newErr(KindMissingSecret, "handshake already completed")
	}
	if len(peerPubKey) != ed25519.PublicKeySize {
		h.destroy()
		return nil, newErr(KindUnsupportedKey, "peer long-term key is not Ed25519")
	}
	if len(peerSig) != ed25519.SignatureSize {
		h.destroy()
		return nil, newErr(KindSignature, "malformed signature length")
	}

	var verifyTarget []byte
	if h.protocolVersion.UsesTranscript() {
		verifyTarget = h.mac[:]
	} else {
		verifyTarget = h.keys.legacyChallenge[:]
	}

	if !ed25519.Verify(ed25519.PublicKey(peerPubKey), verifyTarget, peerSig) {
		h.destroy()
		return nil, newErr(KindSignature, "peer signature verification failed")
	}

	h.complete = true
	remote := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(remote, peerPubKey)
	return remote, nil
}

// destroy zeroes all handshake secrets. Called on any failure path.
func (h *AwaitingAuthSig) destroy() {
	if h.keys != nil {
		h.keys.zero()
	}
	for i := range h.mac {
		h.mac[i] = 0
	}
}
