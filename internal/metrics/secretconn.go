// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "secureconn"

// Registry is a dedicated registry rather than the global default, so a
// host process embedding this module can mount it alongside its own
// metrics without collisions.
var Registry = prometheus.NewRegistry()

var (
	// HandshakesStarted tracks handshake attempts, client or server side.
	HandshakesStarted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "started_total",
			Help:      "Total number of Secret Connection handshakes attempted",
		},
	)

	// HandshakesCompleted tracks handshakes that reached Complete.
	HandshakesCompleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "completed_total",
			Help:      "Total number of Secret Connection handshakes completed",
		},
	)

	// HandshakesFailed tracks handshake failures by error kind.
	HandshakesFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshakes",
			Name:      "failed_total",
			Help:      "Total number of Secret Connection handshakes that failed, by error kind",
		},
		[]string{"kind"},
	)

	// FramesSent tracks sealed frames written to the transport.
	FramesSent = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Total number of Secret Connection frames sent",
		},
	)

	// FramesReceived tracks sealed frames read and authenticated.
	FramesReceived = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Total number of Secret Connection frames received and authenticated",
		},
	)

	// AeadFailures tracks frame authentication failures. Any single one is
	// fatal for its Conn; this counter is for fleet-wide observability.
	AeadFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "aead_failures_total",
			Help:      "Total number of AEAD open failures across all connections",
		},
	)

	// NonceOverflows tracks the (expected to be vanishingly rare) event of
	// a send or receive nonce counter reaching 2^64.
	NonceOverflows = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "nonce_overflows_total",
			Help:      "Total number of nonce counter overflows observed",
		},
	)

	// CodecDecodeErrors tracks TSP framing decode failures.
	CodecDecodeErrors = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tsp",
			Name:      "decode_errors_total",
			Help:      "Total number of TSP codec decode errors",
		},
	)
)
