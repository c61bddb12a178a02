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

package tsp

import "testing"

// FuzzCodecNext feeds arbitrary byte streams, split into arbitrary chunks,
// through Codec.Next and asserts it terminates (returns a result or an
// error) without panicking, regardless of how malformed or truncated the
// stream is.
func FuzzCodecNext(f *testing.F) {
	f.Add([]byte{0x14, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}, 3)
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 1)
	f.Add([]byte{}, 1)

	f.Fuzz(func(t *testing.T, data []byte, splitSeed int) {
		split := 1
		if len(data) > 0 {
			split = (splitSeed%len(data) + len(data)) % len(data)
			if split == 0 {
				split = len(data)
			}
		}
		var reads [][]byte
		if split < len(data) {
			reads = [][]byte{data[:split], data[split:]}
		} else {
			reads = [][]byte{data}
		}

		transport := &chunkedTransport{reads: reads}
		codec := NewCodec(transport, Config{ReadBufSize: 32, MaxFrameLength: 4096})
		_, _ = codec.Next()
	})
}
