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

// Package idgen provides the concrete implementation of the core's
// identifier-generator boundary contract.
package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// UUID generates collision-resistant opaque string identifiers using
// UUIDv4.
type UUID struct{}

// NewID returns a new random UUID string.
func (UUID) NewID() string {
	return uuid.NewString()
}

// Sequential is a deterministic generator for tests: it returns ids of
// the form prefix-N (just N when Prefix is empty), incrementing N on
// every call.
type Sequential struct {
	Prefix string
	n      int
}

// NewID returns the next sequential id.
func (s *Sequential) NewID() string {
	s.n++
	if s.Prefix == "" {
		return strconv.Itoa(s.n)
	}
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
