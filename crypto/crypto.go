// Copyright 2014 The go-ethereum Authors
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

// Package crypto provides the single hash primitive the address manager
// relies on for bucket placement. Every derivation in p2p/addrman hashes
// through Keccak256; using anything else in one call site and not others
// would silently change bucket arithmetic.
package crypto

import (
	"golang.org/x/crypto/sha3"
)

// HashLength is the size in bytes of a Keccak256 digest.
const HashLength = 32

// Hash256 is a fixed-size Keccak256 digest.
type Hash256 [HashLength]byte

// Bytes returns the hash as a byte slice.
func (h Hash256) Bytes() []byte { return h[:] }

// Keccak256 calculates and returns the Keccak256 hash of the input data,
// concatenating multiple inputs before hashing.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates and returns the Keccak256 hash of the input
// data as a fixed-size Hash256, concatenating multiple inputs before
// hashing.
func Keccak256Hash(data ...[]byte) (h Hash256) {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}
