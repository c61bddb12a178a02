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

// Command secretconn-demo runs a loopback or networked Secret Connection
// handshake and echoes a payload over it, for manual and scripted
// verification. It is not a production front-end.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/secureconn/internal/logger"
	"github.com/sage-x-project/secureconn/internal/metrics"
	"github.com/sage-x-project/secureconn/pkg/version"
	"github.com/sage-x-project/secureconn/secretconn"
)

var (
	addr        string
	protocolStr string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:     "secretconn-demo",
	Short:   "Demonstrate a Secret Connection handshake and framed echo",
	Version: version.Short(),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept one connection, handshake, and echo everything read back",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, also serve Prometheus metrics on this address")
}

var dialCmd = &cobra.Command{
	Use:   "dial <message>",
	Short: "Dial a running secretconn-demo server, handshake, and send a message",
	Args:  cobra.ExactArgs(1),
	RunE:  runDial,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7711", "TCP address to serve or dial")
	rootCmd.PersistentFlags().StringVar(&protocolStr, "protocol", "current", "protocol version: current|legacy033|legacyamino")
	rootCmd.AddCommand(serveCmd, dialCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseProtocolVersion() (secretconn.ProtocolVersion, error) {
	switch protocolStr {
	case "current":
		return secretconn.Current, nil
	case "legacy033":
		return secretconn.Legacy033, nil
	case "legacyamino":
		return secretconn.LegacyAmino, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", protocolStr)
	}
}

func newIdentity() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

func runServe(cmd *cobra.Command, args []string) error {
	version, err := parseProtocolVersion()
	if err != nil {
		return err
	}
	priv, err := newIdentity()
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		go func() {
			if err := metrics.StartServer(metricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server stopped: %v\n", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := logger.NewDefaultLogger()
	log.Info("accepted connection", logger.String("conn_id", connID), logger.String("remote", conn.RemoteAddr().String()))

	sc, err := secretconn.Handshake(conn, priv, version)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	log.Info("handshake complete",
		logger.String("conn_id", connID),
		logger.String("peer_pubkey", hex.EncodeToString(sc.RemotePublicKey())),
	)

	buf := make([]byte, 4096)
	for {
		n, err := sc.Read(buf)
		if n > 0 {
			if _, werr := sc.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}

func runDial(cmd *cobra.Command, args []string) error {
	version, err := parseProtocolVersion()
	if err != nil {
		return err
	}
	priv, err := newIdentity()
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sc, err := secretconn.Handshake(conn, priv, version)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	msg := []byte(args[0])
	var g errgroup.Group
	echoed := make([]byte, len(msg))

	g.Go(func() error {
		_, err := sc.Write(msg)
		return err
	})
	g.Go(func() error {
		n := 0
		for n < len(echoed) {
			m, err := sc.Read(echoed[n:])
			if err != nil {
				return err
			}
			n += m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "echoed: %s\n", echoed)
	return nil
}
