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

	"google.golang.org/protobuf/encoding/protowire"
)

// ProtocolVersion selects the handshake wire framing and what the
// authentication signature is computed over. It is agreed out of band by
// both peers and never negotiated in-band.
type ProtocolVersion int

const (
	// Current is the modern protocol: protobuf framing, Merlin transcript MAC.
	Current ProtocolVersion = iota
	// Legacy033 predates protobuf framing for the ephemeral exchange but
	// still uses the transcript MAC for authentication.
	Legacy033
	// LegacyAmino is the oldest protocol: amino framing, no transcript,
	// signs the raw KDF challenge instead.
	LegacyAmino
)

// aminoEd25519Prefix is the fixed 5-byte amino type prefix for a raw
// Ed25519 public key, as used by pre-protobuf Tendermint.
var aminoEd25519Prefix = [5]byte{0x16, 0x24, 0xDE, 0x64, 0x20}

// UsesTranscript reports whether this protocol version authenticates the
// Merlin transcript MAC (true for Current and Legacy033) rather than the
// raw KDF legacy challenge (LegacyAmino only).
func (v ProtocolVersion) UsesTranscript() bool {
	return v != LegacyAmino
}

// UsesProtobufFraming reports whether handshake messages are protobuf
// encoded (Current only).
func (v ProtocolVersion) UsesProtobufFraming() bool {
	return v == Current
}

// AuthSigResponseLength returns the exact wire length of the encoded
// AuthSigMessage for this protocol version: 103 bytes for protobuf framing,
// 106 bytes for legacy amino. Legacy033 encodes its AuthSigMessage with the
// same amino layout as LegacyAmino, so it also reports 106.
func (v ProtocolVersion) AuthSigResponseLength() int {
	if v.UsesProtobufFraming() {
		return 103
	}
	return 106
}

// EncodeEphemeral encodes a 32-byte X25519 ephemeral public key for the
// wire, including the single length-prefix byte a receiver reads before the
// payload itself (see readEphemeral).
func (v ProtocolVersion) EncodeEphemeral(pubKey []byte) []byte {
	if v.UsesProtobufFraming() {
		out := make([]byte, 0, 35)
		out = append(out, 0x22, 0x0A, 0x20)
		out = append(out, pubKey...)
		return out
	}
	out := make([]byte, 0, 34)
	out = append(out, 0x21, 0x20)
	out = append(out, pubKey...)
	return out
}

// DecodeEphemeral parses the payload that follows the length-prefix byte
// (i.e. it does NOT include that leading length byte) and returns the
// 32-byte X25519 public key, rejecting malformed framing and low-order
// points.
func (v ProtocolVersion) DecodeEphemeral(payload []byte) ([]byte, error) {
	var key []byte
	if v.UsesProtobufFraming() {
		if len(payload) != 34 || payload[0] != 0x0A || payload[1] != 0x20 {
			return nil, newErr(KindMalformedHandshake, "bad protobuf ephemeral framing")
		}
		key = payload[2:34]
	} else {
		if len(payload) != 33 || payload[0] != 0x20 {
			return nil, newErr(KindMalformedHandshake, "bad amino ephemeral framing")
		}
		key = payload[1:33]
	}
	if err := rejectLowOrderPoint(key); err != nil {
		return nil, err
	}
	out := make([]byte, 32)
	copy(out, key)
	return out, nil
}

// EncodeAuthSig encodes the long-term Ed25519 public key and the handshake
// signature into an AuthSigMessage for the wire.
func (v ProtocolVersion) EncodeAuthSig(pubKey, sig []byte) []byte {
	if v.UsesProtobufFraming() {
		return encodeAuthSigProtobuf(pubKey, sig)
	}
	return encodeAuthSigAmino(pubKey, sig)
}

// DecodeAuthSig is the inverse of EncodeAuthSig.
func (v ProtocolVersion) DecodeAuthSig(data []byte) (pubKey, sig []byte, err error) {
	if v.UsesProtobufFraming() {
		return decodeAuthSigProtobuf(data)
	}
	return decodeAuthSigAmino(data)
}

// encodeAuthSigProtobuf emits a length-delimited protobuf AuthSigMessage:
//
//	AuthSigMessage { PublicKey pub_key = 1; bytes sig = 2; }
//	PublicKey      { oneof sum { bytes ed25519 = 1; } }
func encodeAuthSigProtobuf(pubKey, sig []byte) []byte {
	var pubKeyMsg []byte
	pubKeyMsg = protowire.AppendTag(pubKeyMsg, 1, protowire.BytesType)
	pubKeyMsg = protowire.AppendBytes(pubKeyMsg, pubKey)

	var body []byte
	body = protowire.AppendTag(body, 1, protowire.BytesType)
	body = protowire.AppendBytes(body, pubKeyMsg)
	body = protowire.AppendTag(body, 2, protowire.BytesType)
	body = protowire.AppendBytes(body, sig)

	return protowire.AppendBytes(nil, body)
}

func decodeAuthSigProtobuf(data []byte) (pubKey, sig []byte, err error) {
	body, n := protowire.ConsumeBytes(data)
	if n < 0 || n != len(data) {
		return nil, nil, newErr(KindMalformedHandshake, "bad auth sig length prefix")
	}

	for len(body) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(body)
		if tagLen < 0 {
			return nil, nil, newErr(KindMalformedHandshake, "bad auth sig tag")
		}
		body = body[tagLen:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			inner, innerLen := protowire.ConsumeBytes(body)
			if innerLen < 0 {
				return nil, nil, newErr(KindMalformedHandshake, "bad pub_key field")
			}
			body = body[innerLen:]
			pubKey, err = decodePublicKeyField(inner)
			if err != nil {
				return nil, nil, err
			}
		case num == 2 && typ == protowire.BytesType:
			s, sLen := protowire.ConsumeBytes(body)
			if sLen < 0 {
				return nil, nil, newErr(KindMalformedHandshake, "bad sig field")
			}
			body = body[sLen:]
			sig = append([]byte(nil), s...)
		default:
			skip := protowire.ConsumeFieldValue(num, typ, body)
			if skip < 0 {
				return nil, nil, newErr(KindMalformedHandshake, "unknown auth sig field")
			}
			body = body[skip:]
		}
	}
	if pubKey == nil || sig == nil {
		return nil, nil, newErr(KindMalformedHandshake, "auth sig missing pub_key or sig")
	}
	return pubKey, sig, nil
}

func decodePublicKeyField(data []byte) ([]byte, error) {
	for len(data) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return nil, newErr(KindMalformedHandshake, "bad pub_key oneof tag")
		}
		data = data[tagLen:]
		if num == 1 && typ == protowire.BytesType {
			key, keyLen := protowire.ConsumeBytes(data)
			if keyLen < 0 {
				return nil, newErr(KindMalformedHandshake, "bad pub_key ed25519 field")
			}
			return append([]byte(nil), key...), nil
		}
		skip := protowire.ConsumeFieldValue(num, typ, data)
		if skip < 0 {
			return nil, newErr(KindMalformedHandshake, "unknown pub_key oneof field")
		}
		data = data[skip:]
	}
	return nil, newErr(KindUnsupportedKey, "pub_key oneof missing ed25519 variant")
}

// encodeAuthSigAmino emits the fixed 106-byte legacy layout:
// varint(len) || 0x0A len1 <amino-prefixed pubkey> 0x12 0x40 <64-byte sig>
func encodeAuthSigAmino(pubKey, sig []byte) []byte {
	var pubKeyField []byte
	pubKeyField = append(pubKeyField, aminoEd25519Prefix[:]...)
	pubKeyField = append(pubKeyField, pubKey...)

	var body []byte
	body = append(body, 0x0A, byte(len(pubKeyField)))
	body = append(body, pubKeyField...)
	body = append(body, 0x12, byte(len(sig)))
	body = append(body, sig...)

	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(len(body)))
	out = append(out, body...)
	return out
}

func decodeAuthSigAmino(data []byte) (pubKey, sig []byte, err error) {
	if len(data) < 1 || int(data[0])+1 != len(data) {
		return nil, nil, newErr(KindMalformedHandshake, "bad amino auth sig length prefix")
	}
	body := data[1:]

	if len(body) < 2 || body[0] != 0x0A {
		return nil, nil, newErr(KindMalformedHandshake, "bad amino pub_key field tag")
	}
	pkLen := int(body[1])
	body = body[2:]
	if len(body) < pkLen {
		return nil, nil, newErr(KindMalformedHandshake, "truncated amino pub_key field")
	}
	pkField := body[:pkLen]
	body = body[pkLen:]
	if len(pkField) != 5+32 || !bytes.Equal(pkField[:5], aminoEd25519Prefix[:]) {
		return nil, nil, newErr(KindUnsupportedKey, "unsupported amino pub_key type")
	}
	pubKey = append([]byte(nil), pkField[5:]...)

	if len(body) < 2 || body[0] != 0x12 {
		return nil, nil, newErr(KindMalformedHandshake, "bad amino sig field tag")
	}
	sigLen := int(body[1])
	body = body[2:]
	if len(body) != sigLen {
		return nil, nil, newErr(KindMalformedHandshake, "truncated amino sig field")
	}
	sig = append([]byte(nil), body...)
	return pubKey, sig, nil
}
