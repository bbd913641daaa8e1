// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient provides the default implementation of the HTTP
// step handler's boundary contract: a client able to issue a request
// with a method and URL and report back the response status.
//
// Configuration of the underlying client (timeouts, retries, circuit
// breaking) is explicitly out of scope for the core per the
// specification's Non-goals; this package provides sane, observable
// defaults without exposing a retry policy.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Config configures the default HTTP client.
type Config struct {
	// Timeout bounds the full request/response round-trip, including
	// connection and TLS handshake time.
	Timeout time.Duration

	// UserAgent is sent on every request that doesn't already set one.
	UserAgent string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "flowcore/1.0",
	}
}

// New creates an *http.Client with TLS 1.2+ defaults, connection
// pooling, and a logging transport that records method/URL/status/
// duration with sensitive query parameters redacted.
func New(cfg Config) *http.Client {
	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Transport: newLoggingTransport(base, cfg.UserAgent),
		Timeout:   cfg.Timeout,
	}
}
