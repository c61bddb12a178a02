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

// Package secretconn implements the Secret Connection authenticated,
// encrypted transport: an X25519 ECDH handshake bound by a Merlin
// transcript, HKDF key derivation, Ed25519 peer authentication, and a
// ChaCha20-Poly1305 framed byte stream.
package secretconn

import (
	"crypto/cipher"
	"crypto/ed25519"
	"encoding/binary"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sage-x-project/secureconn/internal/logger"
	"github.com/sage-x-project/secureconn/internal/metrics"
)

const (
	maxChunkSize   = 1024
	frameHeaderLen = 4
	cleartextFrame = frameHeaderLen + maxChunkSize // 1028
	sealedFrame    = cleartextFrame + chacha20poly1305.Overhead // 1044
)

// poisonFlag is the one piece of state a split Conn's two halves share: a
// write-once record of the error that made the connection unusable.
type poisonFlag struct {
	mu  sync.Mutex
	err *Error
}

func (p *poisonFlag) poison(err *Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *poisonFlag) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	return nil
}

// readState is the receive-direction half of an established session: the
// AEAD key bound to incoming frames, the receive nonce, and the spillover
// buffer for reads smaller than a frame.
type readState struct {
	aead      cipher.AEAD
	n         nonce
	spillover []byte
}

// writeState is the send-direction half.
type writeState struct {
	aead cipher.AEAD
	n    nonce
}

// Conn is an established, authenticated Secret Connection: it wraps the
// underlying duplex byte transport and presents the same byte-stream
// interface, transparently fragmenting writes into frames and reassembling
// reads from them.
//
// A Conn is single-owner per direction: concurrent Reads, or concurrent
// Writes, on the same Conn are not safe. Split the connection with Split
// for full-duplex use from two goroutines.
type Conn struct {
	transport    io.ReadWriter
	read         readState
	write        writeState
	remotePubKey ed25519.PublicKey
	poison       *poisonFlag
}

// ReadHalf is the receive side of a split Conn.
type ReadHalf struct {
	transport io.Reader
	read      readState
	poison    *poisonFlag
}

// WriteHalf is the send side of a split Conn.
type WriteHalf struct {
	transport io.Writer
	write     writeState
	poison    *poisonFlag
}

// Handshake performs a full Secret Connection handshake over transport
// using the local long-term Ed25519 key pair and establishes a ready-to-use
// Conn. See spec §4.E for the five-step procedure this follows.
func Handshake(transport io.ReadWriter, localPrivKey ed25519.PrivateKey, protocolVersion ProtocolVersion) (*Conn, error) {
	metrics.HandshakesStarted.Inc()

	eph, err := NewHandshake(protocolVersion, localPrivKey)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	localEphPub := eph.LocalEphemeralPublicKey()
	if _, err := transport.Write(protocolVersion.EncodeEphemeral(localEphPub[:])); err != nil {
		e := wrapErr(KindIO, "failed to send ephemeral public key", err)
		metrics.HandshakesFailed.WithLabelValues(string(KindIO)).Inc()
		return nil, e
	}

	remoteEphPub, err := readEphemeral(transport, protocolVersion)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	authState, err := eph.GotEphKey(remoteEphPub)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	keys := authState.SessionKeys()
	conn, err := newConn(transport, keys)
	if err != nil {
		keys.zero()
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	localAuthSig := protocolVersion.EncodeAuthSig(authState.LocalPublicKey(), authState.LocalSignature())
	if _, err := conn.Write(localAuthSig); err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	peerAuthSig := make([]byte, protocolVersion.AuthSigResponseLength())
	if err := readFull(conn, peerAuthSig); err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	peerPubKey, peerSig, err := protocolVersion.DecodeAuthSig(peerAuthSig)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	remotePub, err := authState.Complete(peerPubKey, peerSig)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(string(errKindOf(err))).Inc()
		return nil, err
	}

	conn.remotePubKey = remotePub
	metrics.HandshakesCompleted.Inc()
	handshakeLog.Info("secret connection established", logger.String("remote_pubkey", shortHex(remotePub)))
	return conn, nil
}

// readEphemeral reads the single length-prefix byte and the payload that
// follows it, then decodes the 32-byte X25519 public key it carries.
func readEphemeral(transport io.Reader, protocolVersion ProtocolVersion) ([32]byte, error) {
	var lenByte [1]byte
	if err := readFull(transport, lenByte[:]); err != nil {
		return [32]byte{}, err
	}

	payload := make([]byte, lenByte[0])
	if err := readFull(transport, payload); err != nil {
		return [32]byte{}, err
	}

	keyBytes, err := protocolVersion.DecodeEphemeral(payload)
	if err != nil {
		return [32]byte{}, err
	}

	var out [32]byte
	copy(out[:], keyBytes)
	return out, nil
}

// newConn builds a Conn with working AEAD ciphers but no authenticated
// remote public key yet, ready to carry the encrypted AuthSigMessage
// exchange that completes the handshake.
func newConn(transport io.ReadWriter, keys *sessionKeys) (*Conn, error) {
	sendAEAD, err := chacha20poly1305.New(keys.sendKey[:])
	if err != nil {
		return nil, wrapErr(KindIO, "failed to init send AEAD", err)
	}
	recvAEAD, err := chacha20poly1305.New(keys.recvKey[:])
	if err != nil {
		return nil, wrapErr(KindIO, "failed to init recv AEAD", err)
	}

	return &Conn{
		transport: transport,
		read:      readState{aead: recvAEAD},
		write:     writeState{aead: sendAEAD},
		poison:    &poisonFlag{},
	}, nil
}

// RemotePublicKey returns the authenticated peer long-term Ed25519 public
// key. It is set exactly once, by a successful Handshake, and never
// mutated afterward.
func (c *Conn) RemotePublicKey() ed25519.PublicKey {
	return c.remotePubKey
}

// Close closes the underlying transport if it supports io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Split partitions the Conn into an independent ReadHalf and WriteHalf for
// full-duplex use from two goroutines. The receive key/nonce/spillover move
// to the ReadHalf, the send key/nonce to the WriteHalf; the only state they
// continue to share is the write-once poison flag.
func (c *Conn) Split() (*ReadHalf, *WriteHalf) {
	rh := &ReadHalf{transport: c.transport, read: c.read, poison: c.poison}
	wh := &WriteHalf{transport: c.transport, write: c.write, poison: c.poison}
	return rh, wh
}

// Read implements the byte-stream read contract of spec §4.E: it serves
// from the spillover buffer first, and otherwise decrypts exactly one
// frame and returns up to len(p) bytes of it, stashing any remainder.
func (c *Conn) Read(p []byte) (int, error) {
	if err := c.poison.check(); err != nil {
		return 0, err
	}
	n, err := readFrame(c.transport, &c.read, p)
	if err != nil {
		c.poison.poison(asSecretconnErr(err))
	}
	return n, err
}

// Write implements the byte-stream write contract of spec §4.E: it splits
// data into ≤1024-byte chunks, seals and transmits each as a full frame.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.poison.check(); err != nil {
		return 0, err
	}
	n, err := writeChunks(c.transport, &c.write, p)
	if err != nil {
		c.poison.poison(asSecretconnErr(err))
	}
	return n, err
}

// Read implements the receive half of the byte-stream contract.
func (r *ReadHalf) Read(p []byte) (int, error) {
	if err := r.poison.check(); err != nil {
		return 0, err
	}
	n, err := readFrame(r.transport, &r.read, p)
	if err != nil {
		r.poison.poison(asSecretconnErr(err))
	}
	return n, err
}

// Write implements the send half of the byte-stream contract.
func (w *WriteHalf) Write(p []byte) (int, error) {
	if err := w.poison.check(); err != nil {
		return 0, err
	}
	n, err := writeChunks(w.transport, &w.write, p)
	if err != nil {
		w.poison.poison(asSecretconnErr(err))
	}
	return n, err
}

func writeChunks(transport io.Writer, ws *writeState, p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		if err := sealFrame(transport, ws, p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func sealFrame(transport io.Writer, ws *writeState, chunk []byte) error {
	var cleartext [cleartextFrame]byte
	binary.LittleEndian.PutUint32(cleartext[0:4], uint32(len(chunk)))
	copy(cleartext[frameHeaderLen:], chunk)

	sealed := ws.aead.Seal(nil, ws.n.asBytes(), cleartext[:], nil)
	if len(sealed) != sealedFrame {
		return newErr(KindIO, "unexpected sealed frame length")
	}

	n, err := transport.Write(sealed)
	if err != nil {
		return wrapErr(KindIO, "failed to write sealed frame", err)
	}
	if n == 0 && len(sealed) != 0 {
		return newErr(KindWriteZero, "transport accepted zero bytes of a non-empty write")
	}
	if n != len(sealed) {
		return newErr(KindIO, "short write of sealed frame")
	}

	metrics.FramesSent.Inc()
	if err := ws.n.increment(); err != nil {
		metrics.NonceOverflows.Inc()
		return err
	}
	return nil
}

func readFrame(transport io.Reader, rs *readState, p []byte) (int, error) {
	if len(rs.spillover) > 0 {
		n := copy(p, rs.spillover)
		rs.spillover = rs.spillover[n:]
		return n, nil
	}

	chunk, err := openFrame(transport, rs)
	if err != nil {
		return 0, err
	}

	n := copy(p, chunk)
	if n < len(chunk) {
		// Replace the spillover buffer's contents rather than slice-copying
		// into a pre-sized buffer, which would panic on a length mismatch.
		rs.spillover = append(rs.spillover[:0], chunk[n:]...)
	}
	return n, nil
}

func openFrame(transport io.Reader, rs *readState) ([]byte, error) {
	var sealed [sealedFrame]byte
	if err := readFull(transport, sealed[:]); err != nil {
		return nil, err
	}

	cleartext, err := rs.aead.Open(sealed[:0], rs.n.asBytes(), sealed[:], nil)
	if err != nil {
		metrics.AeadFailures.Inc()
		return nil, wrapErr(KindAead, "frame authentication failed", err)
	}
	if err := rs.n.increment(); err != nil {
		metrics.NonceOverflows.Inc()
		return nil, err
	}

	chunkLen := binary.LittleEndian.Uint32(cleartext[0:4])
	if chunkLen > maxChunkSize {
		return nil, newErr(KindChunkTooLarge, "decrypted frame claims a payload larger than 1024 bytes")
	}

	metrics.FramesReceived.Inc()
	out := make([]byte, chunkLen)
	copy(out, cleartext[frameHeaderLen:frameHeaderLen+chunkLen])
	return out, nil
}

// readFull reads exactly len(buf) bytes, translating a short or absent
// read into the taxonomy's Io/UnexpectedEof kinds.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return wrapErr(KindUnexpectedEOF, "transport closed before a complete read", err)
	}
	return wrapErr(KindIO, "transport read failed", err)
}

func asSecretconnErr(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return wrapErr(KindIO, "unclassified transport error", err)
}

func errKindOf(err error) Kind {
	return asSecretconnErr(err).Kind
}

func shortHex(pub ed25519.PublicKey) string {
	const n = 8
	b := []byte(pub)
	if len(b) > n {
		b = b[:n]
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return string(out)
}
