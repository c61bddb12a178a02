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
	"crypto/ed25519"
	"io"
)

// Config is the construction-time configuration for a Handshake call.
// There are no environment variables or config files: the caller decides
// the protocol version and supplies its own long-term key pair.
type Config struct {
	// ProtocolVersion selects the handshake wire framing and transcript
	// behavior. Zero value is Current.
	ProtocolVersion ProtocolVersion
	// LocalPrivKey is this side's long-term Ed25519 identity key.
	LocalPrivKey ed25519.PrivateKey
}

// Validate reports whether the config is usable, so callers can fail fast
// instead of discovering a bad key or protocol version deep inside Handshake.
func (c Config) Validate() error {
	if len(c.LocalPrivKey) != ed25519.PrivateKeySize {
		return newErr(KindUnsupportedKey, "local private key must be an Ed25519 private key")
	}
	if c.ProtocolVersion < Current || c.ProtocolVersion > LegacyAmino {
		return newErr(KindMalformedHandshake, "unknown protocol version")
	}
	return nil
}

// HandshakeWithConfig validates cfg and runs Handshake over transport.
func HandshakeWithConfig(transport io.ReadWriter, cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Handshake(transport, cfg.LocalPrivKey, cfg.ProtocolVersion)
}
