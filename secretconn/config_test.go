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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidateRejectsBadKeySize(t *testing.T) {
	cfg := Config{ProtocolVersion: Current, LocalPrivKey: make([]byte, 10)}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsUnknownVersion(t *testing.T) {
	_, priv := seededKeyPair(t, 0x01)
	cfg := Config{ProtocolVersion: ProtocolVersion(99), LocalPrivKey: priv}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateAccepts(t *testing.T) {
	_, priv := seededKeyPair(t, 0x01)
	cfg := Config{ProtocolVersion: Current, LocalPrivKey: priv}
	require.NoError(t, cfg.Validate())
}

func TestHandshakeWithConfigLoopback(t *testing.T) {
	clientTransport, serverTransport := net.Pipe()
	_, clientPriv := seededKeyPair(t, 0x01)
	_, serverPriv := seededKeyPair(t, 0x02)

	type result struct {
		conn *Conn
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := HandshakeWithConfig(clientTransport, Config{ProtocolVersion: Current, LocalPrivKey: clientPriv})
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := HandshakeWithConfig(serverTransport, Config{ProtocolVersion: Current, LocalPrivKey: serverPriv})
		serverCh <- result{c, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)
}
