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

func TestEphemeralEncodeDecodeRoundTrip(t *testing.T) {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i + 10)
	}

	for _, v := range []ProtocolVersion{Current, Legacy033, LegacyAmino} {
		wire := v.EncodeEphemeral(pub)
		lenByte := wire[0]
		payload := wire[1:]
		require.Equal(t, int(lenByte), len(payload))

		decoded, err := v.DecodeEphemeral(payload)
		require.NoError(t, err)
		require.Equal(t, pub, decoded)
	}
}

func TestEphemeralWireLengths(t *testing.T) {
	pub := make([]byte, 32)
	require.Len(t, Current.EncodeEphemeral(pub), 35)
	require.Len(t, Legacy033.EncodeEphemeral(pub), 34)
	require.Len(t, LegacyAmino.EncodeEphemeral(pub), 34)
}

func TestDecodeEphemeralRejectsLowOrderPoint(t *testing.T) {
	wire := Current.EncodeEphemeral(lowOrderPoints[0][:])
	_, err := Current.DecodeEphemeral(wire[1:])
	require.Error(t, err)
	require.ErrorIs(t, err, &Error{Kind: KindLowOrderKey})
}

func TestDecodeEphemeralRejectsBadFraming(t *testing.T) {
	_, err := Current.DecodeEphemeral([]byte{0x0A, 0x20})
	require.Error(t, err)
	require.ErrorIs(t, err, &Error{Kind: KindMalformedHandshake})
}

func TestAuthSigEncodeDecodeRoundTripProtobuf(t *testing.T) {
	pub := make([]byte, 32)
	sig := make([]byte, 64)
	for i := range pub {
		pub[i] = byte(i)
	}
	for i := range sig {
		sig[i] = byte(200 + i)
	}

	wire := Current.EncodeAuthSig(pub, sig)
	require.Len(t, wire, Current.AuthSigResponseLength())

	gotPub, gotSig, err := Current.DecodeAuthSig(wire)
	require.NoError(t, err)
	require.Equal(t, pub, gotPub)
	require.Equal(t, sig, gotSig)
}

// TestAuthSigEncodeAminoMatchesReferenceVector pins the legacy amino
// AuthSigMessage layout against the upstream implementation's own test
// vector, so wire compatibility with pre-protobuf Tendermint peers isn't
// just internally self-consistent.
func TestAuthSigEncodeAminoMatchesReferenceVector(t *testing.T) {
	pub := []byte{
		0xd7, 0x5a, 0x98, 0x01, 0x82, 0xb1, 0x0a, 0xb7, 0xd5, 0x4b, 0xfe, 0xd3, 0xc9, 0x64,
		0x07, 0x3a, 0x0e, 0xe1, 0x72, 0xf3, 0xda, 0xa6, 0x23, 0x25, 0xaf, 0x02, 0x1a, 0x68,
		0xf7, 0x07, 0x51, 0x1a,
	}
	sig := []byte{
		0xe5, 0x56, 0x43, 0x00, 0xc3, 0x60, 0xac, 0x72, 0x90, 0x86, 0xe2, 0xcc, 0x80, 0x6e,
		0x82, 0x8a, 0x84, 0x87, 0x7f, 0x1e, 0xb8, 0xe5, 0xd9, 0x74, 0xd8, 0x73, 0xe0, 0x65,
		0x22, 0x49, 0x01, 0x55, 0x5f, 0xb8, 0x82, 0x15, 0x90, 0xa3, 0x3b, 0xac, 0xc6, 0x1e,
		0x39, 0x70, 0x1c, 0xf9, 0xb4, 0x6b, 0xd2, 0x5b, 0xf5, 0xf0, 0x59, 0x5b, 0xbe, 0x24,
		0x65, 0x51, 0x41, 0x43, 0x8e, 0x7a, 0x10, 0x0b,
	}
	expected := []byte{
		105, 10, 37, 22, 36, 222, 100, 32, 215, 90, 152, 1, 130, 177, 10, 183, 213, 75, 254,
		211, 201, 100, 7, 58, 14, 225, 114, 243, 218, 166, 35, 37, 175, 2, 26, 104, 247, 7, 81,
		26, 18, 64, 229, 86, 67, 0, 195, 96, 172, 114, 144, 134, 226, 204, 128, 110, 130, 138,
		132, 135, 127, 30, 184, 229, 217, 116, 216, 115, 224, 101, 34, 73, 1, 85, 95, 184, 130,
		21, 144, 163, 59, 172, 198, 30, 57, 112, 28, 249, 180, 107, 210, 91, 245, 240, 89, 91,
		190, 36, 101, 81, 65, 67, 142, 122, 16, 11,
	}

	actual := LegacyAmino.EncodeAuthSig(pub, sig)
	require.Equal(t, expected, actual)
	require.Len(t, actual, LegacyAmino.AuthSigResponseLength())

	gotPub, gotSig, err := LegacyAmino.DecodeAuthSig(actual)
	require.NoError(t, err)
	require.Equal(t, pub, gotPub)
	require.Equal(t, sig, gotSig)
}

func TestDecodeAuthSigAminoRejectsUnsupportedKeyType(t *testing.T) {
	body := []byte{0x0A, 0x25, 0x16, 0x24, 0xDE, 0x64, 0x21} // wrong 5th prefix byte
	body = append(body, make([]byte, 31)...)
	body = append(body, 0x12, 0x02, 0x00, 0x00)
	wire := append([]byte{byte(len(body))}, body...)

	_, _, err := LegacyAmino.DecodeAuthSig(wire)
	require.Error(t, err)
}

func TestUsesTranscriptAndFraming(t *testing.T) {
	require.True(t, Current.UsesTranscript())
	require.True(t, Legacy033.UsesTranscript())
	require.False(t, LegacyAmino.UsesTranscript())

	require.True(t, Current.UsesProtobufFraming())
	require.False(t, Legacy033.UsesProtobufFraming())
	require.False(t, LegacyAmino.UsesProtobufFraming())
}
