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

// Command tsp-echo runs a TSP-framed echo server and client over a raw TCP
// socket, without any Secret Connection layer underneath, for exercising
// the codec in isolation.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sage-x-project/secureconn/internal/logger"
	"github.com/sage-x-project/secureconn/pkg/version"
	"github.com/sage-x-project/secureconn/tsp"
)

var addr string

var rootCmd = &cobra.Command{
	Use:     "tsp-echo",
	Short:   "Exercise the TSP length-delimited codec over a raw TCP echo loop",
	Version: version.Short(),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept one connection and echo every framed message read",
	RunE:  runServe,
}

var dialCmd = &cobra.Command{
	Use:   "dial <message>",
	Short: "Dial a running tsp-echo server and send one framed message",
	Args:  cobra.ExactArgs(1),
	RunE:  runDial,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7712", "TCP address to serve or dial")
	rootCmd.AddCommand(serveCmd, dialCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
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
	codec := tsp.NewCodec(conn, tsp.Config{})

	for {
		msg, err := codec.Next()
		if err != nil {
			log.Info("stream ended", logger.String("conn_id", connID), logger.Error(err))
			return nil
		}
		if err := codec.Send(msg); err != nil {
			return err
		}
	}
}

func runDial(cmd *cobra.Command, args []string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	codec := tsp.NewCodec(conn, tsp.Config{})
	if err := codec.Send([]byte(args[0])); err != nil {
		return err
	}

	echoed, err := codec.Next()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "echoed: %s\n", echoed)
	return nil
}
