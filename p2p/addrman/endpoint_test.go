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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpointIsValid(t *testing.T) {
	require.True(t, Endpoint{Host: "250.1.1.1", Port: 8444}.IsValid(false))
	require.False(t, Endpoint{Host: "250.1.1.1", Port: 0}.IsValid(false))
	require.False(t, Endpoint{Host: "not-an-ip", Port: 8444}.IsValid(false))
	require.False(t, Endpoint{Host: "10.0.0.5", Port: 8444}.IsValid(false))
	require.True(t, Endpoint{Host: "10.0.0.5", Port: 8444}.IsValid(true))
	require.False(t, Endpoint{Host: "127.0.0.1", Port: 8444}.IsValid(false))
	require.False(t, Endpoint{Host: "255.255.255.255", Port: 8444}.IsValid(true))
}

func TestEndpointKeyDeterministic(t *testing.T) {
	a := Endpoint{Host: "250.1.1.1", Port: 8444}
	b := Endpoint{Host: "250.1.1.1", Port: 8444}
	c := Endpoint{Host: "250.1.1.2", Port: 8444}

	ka, err := a.Key()
	require.NoError(t, err)
	kb, err := b.Key()
	require.NoError(t, err)
	kc, err := c.Key()
	require.NoError(t, err)

	require.Equal(t, ka, kb)
	require.NotEqual(t, ka, kc)
}

func TestEndpointGroupIPv4(t *testing.T) {
	a := Endpoint{Host: "250.1.1.1", Port: 8444}
	b := Endpoint{Host: "250.1.2.9", Port: 8444}
	c := Endpoint{Host: "250.2.1.1", Port: 8444}

	ga, err := a.Group()
	require.NoError(t, err)
	gb, err := b.Group()
	require.NoError(t, err)
	gc, err := c.Group()
	require.NoError(t, err)

	require.Equal(t, ga, gb, "same /16 must share a group")
	require.NotEqual(t, ga, gc, "different /16 must not share a group")
}

func TestEndpointGroupIPv6(t *testing.T) {
	a := Endpoint{Host: "2001:db8::1", Port: 8444}
	ga, err := a.Group()
	require.NoError(t, err)
	require.Equal(t, byte(0x00), ga[0])
	require.Len(t, ga, 5)
}

func TestIntMod(t *testing.T) {
	// all-zero digest always reduces to zero regardless of modulus.
	zero := make([]byte, 32)
	require.Equal(t, uint64(0), intMod(zero, 1024))

	// a digest of all 0xff bytes is 2^256-1; mod a power of two equals
	// that power of two minus one.
	ones := make([]byte, 32)
	for i := range ones {
		ones[i] = 0xff
	}
	require.Equal(t, uint64(1023), intMod(ones, 1024))
	require.Equal(t, uint64(255), intMod(ones, 256))
}
