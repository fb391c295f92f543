// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package addrman

import (
	crand "crypto/rand"
	"fmt"
	"math/rand"
	"time"
)

// Clock abstracts wall-clock time so tests can drive timestamp
// normalization, is_terrible and selection-chance decisions
// deterministically instead of racing the real clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config carries everything New needs to build an AddressManager.
// Every field is optional; zero values fall back to production defaults.
type Config struct {
	// AllowPrivateSubnets disables the private/loopback/link-local
	// rejection in Endpoint.IsValid. Production nodes never set this;
	// it exists for tests that only have RFC 1918 literals to work with.
	AllowPrivateSubnets bool

	// FixedKey pins the manager's bucket-derivation secret instead of
	// drawing one from crypto/rand. Used by the persistence store when
	// reloading a snapshot (the key must survive a restart) and by tests
	// that need reproducible bucket placement.
	FixedKey *[32]byte

	// Clock overrides time.Now for AddToNewTable's timestamp
	// normalization and is_terrible checks and for SelectPeer's
	// selection-chance math. Cleanup, GetPeers, MarkGood, Attempt and
	// ResolveTriedCollisions take their time as an argument instead.
	// Defaults to the real wall clock.
	Clock Clock

	// Rand overrides the manager's source of randomness for the coin
	// flips that grant a known record an extra new-table cell, SelectPeer
	// sampling, and GetPeers shuffling. Defaults to a source seeded from
	// the real clock.
	Rand *rand.Rand
}

func (c Config) resolve() (Config, error) {
	if c.FixedKey == nil {
		var k [32]byte
		if _, err := crand.Read(k[:]); err != nil {
			return c, fmt.Errorf("addrman: generating bucket key: %w", err)
		}
		c.FixedKey = &k
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c, nil
}
