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

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sage-x-project/secureconn/internal/metrics"
)

// maxVarintLen is a generous upper bound on the shifted-varint length
// prefix; real messages fit comfortably in 10 bytes.
const maxVarintLen = 16

// defaultReadBufSize is the per-call top-up read size when the read
// accumulator doesn't yet hold a full message.
const defaultReadBufSize = 1024

// defaultMaxFrameLength is the sanity upper bound on a single decoded
// message length, chosen to comfortably exceed the largest ABCI
// request/response this codec is expected to carry while still catching a
// desynced or adversarial stream quickly.
const defaultMaxFrameLength = 100 * 1024 * 1024

// Config configures a Codec.
type Config struct {
	// ReadBufSize is how many bytes to read from the transport per top-up
	// when a message hasn't fully arrived yet. Zero uses the default (1024).
	ReadBufSize int
	// MaxFrameLength bounds a single decoded message's length. Zero uses
	// the default (100 MiB).
	MaxFrameLength int
}

func (c Config) withDefaults() Config {
	if c.ReadBufSize <= 0 {
		c.ReadBufSize = defaultReadBufSize
	}
	if c.MaxFrameLength <= 0 {
		c.MaxFrameLength = defaultMaxFrameLength
	}
	return c
}

// Codec frames a duplex byte transport into discrete length-delimited
// messages. It neither trusts nor inspects message payloads.
//
// A Codec that returns an error is left in an indeterminate state and must
// be discarded; every subsequent call returns the same discard error.
type Codec struct {
	transport   io.ReadWriter
	cfg         Config
	accumulator []byte
	scratch     []byte
	writeBuf    []byte
	discardErr  *Error
}

// NewCodec wraps transport (a raw socket, or a *secretconn.Conn) in TSP
// framing.
func NewCodec(transport io.ReadWriter, cfg Config) *Codec {
	cfg = cfg.withDefaults()
	return &Codec{
		transport: transport,
		cfg:       cfg,
		scratch:   make([]byte, cfg.ReadBufSize),
	}
}

// Next returns the next framed message. It returns io.EOF once the peer has
// cleanly closed the stream between messages. A stream that closes in the
// middle of a message is reported as a Decode error, not io.EOF.
func (c *Codec) Next() ([]byte, error) {
	if c.discardErr != nil {
		return nil, c.discardErr
	}

	for {
		msg, ok, err := c.tryDecode()
		if err != nil {
			c.discardErr = err
			metrics.CodecDecodeErrors.Inc()
			return nil, err
		}
		if ok {
			return msg, nil
		}

		n, err := c.transport.Read(c.scratch)
		if n > 0 {
			// Keep bytes that arrive together with an error (e.g. io.EOF);
			// the error resurfaces on the next Read.
			c.accumulator = append(c.accumulator, c.scratch[:n]...)
			continue
		}
		if n == 0 || err != nil {
			if err != nil && err != io.EOF {
				e := wrapErr(KindIO, "transport read failed", err)
				c.discardErr = e
				return nil, e
			}
			if len(c.accumulator) > 0 {
				e := wrapErr(KindDecode, "stream closed mid-message", io.ErrUnexpectedEOF)
				c.discardErr = e
				return nil, e
			}
			return nil, io.EOF
		}
		c.accumulator = append(c.accumulator, c.scratch[:n]...)
	}
}

// tryDecode attempts to pull one message out of the accumulator without
// touching the transport. ok is false when more input is needed.
func (c *Codec) tryDecode() (msg []byte, ok bool, err error) {
	shifted, n := protowire.ConsumeVarint(c.accumulator)
	if n < 0 {
		if len(c.accumulator) < maxVarintLen {
			return nil, false, nil
		}
		return nil, false, newErr(KindDecode, "corrupt length prefix")
	}

	msgLen := int(shifted >> 1)
	if msgLen > c.cfg.MaxFrameLength {
		return nil, false, newErr(KindDecode, "message length exceeds max_frame_length")
	}

	total := n + msgLen
	if len(c.accumulator) < total {
		return nil, false, nil
	}

	msg = make([]byte, msgLen)
	copy(msg, c.accumulator[n:total])
	c.accumulator = append(c.accumulator[:0], c.accumulator[total:]...)
	return msg, true, nil
}

// Send encodes msg with its shifted-varint length prefix and drains it
// fully to the transport before returning, flushing if the transport
// supports it.
func (c *Codec) Send(msg []byte) error {
	if c.discardErr != nil {
		return c.discardErr
	}

	if len(msg) > c.cfg.MaxFrameLength {
		return newErr(KindEncode, "message length exceeds max_frame_length")
	}

	c.writeBuf = c.writeBuf[:0]
	c.writeBuf = protowire.AppendVarint(c.writeBuf, uint64(len(msg))<<1)
	c.writeBuf = append(c.writeBuf, msg...)

	for len(c.writeBuf) > 0 {
		n, err := c.transport.Write(c.writeBuf)
		if err != nil {
			e := wrapErr(KindIO, "transport write failed", err)
			c.discardErr = e
			return e
		}
		if n == 0 {
			e := newErr(KindWriteZero, "transport accepted zero bytes of a non-empty write")
			c.discardErr = e
			return e
		}
		c.writeBuf = c.writeBuf[n:]
	}

	if flusher, ok := c.transport.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			e := wrapErr(KindIO, "flush failed", err)
			c.discardErr = e
			return e
		}
	}

	c.writeBuf = c.writeBuf[:0]
	return nil
}

// EncodeVarintPrefix encodes n as a shifted protobuf varint: n<<1, so the
// low bit stays free for a future discriminator.
func EncodeVarintPrefix(n uint64) []byte {
	return protowire.AppendVarint(nil, n<<1)
}

// DecodeVarintPrefix is the inverse of EncodeVarintPrefix. consumed is the
// number of bytes the varint itself occupied; ok is false if buf doesn't
// hold a complete varint.
func DecodeVarintPrefix(buf []byte) (n uint64, consumed int, ok bool) {
	shifted, consumedN := protowire.ConsumeVarint(buf)
	if consumedN < 0 {
		return 0, 0, false
	}
	return shifted >> 1, consumedN, true
}
