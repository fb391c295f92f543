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
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
	"strconv"

	"github.com/chia-network/go-addrman/p2p/distip"
)

// Endpoint is a host/port pair: either a peer's dial address or the
// address of whatever told the manager about that peer.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// ip parses Host into its 16-byte form (IPv4 addresses are returned
// 4-in-6 mapped, matching net.ParseIP's own representation).
func (e Endpoint) ip() (net.IP, error) {
	ip := net.ParseIP(e.Host)
	if ip == nil {
		return nil, fmt.Errorf("%w: host %q does not parse as an IP", ErrInvalidEndpoint, e.Host)
	}
	return ip.To16(), nil
}

// key returns the 18-byte map key used to dedupe endpoints: the packed
// 16-byte IP followed by the big-endian port.
func (e Endpoint) Key() ([18]byte, error) {
	var k [18]byte
	ip, err := e.ip()
	if err != nil {
		return k, err
	}
	copy(k[:16], ip)
	binary.BigEndian.PutUint16(k[16:], e.Port)
	return k, nil
}

// IsValid reports whether Host parses as an IP literal, Port is nonzero,
// and (unless allowPrivate is set) the address is not private, loopback,
// or link-local. allowPrivate exists solely so tests can exercise bucket
// placement using RFC 1918 literals without a real routable address pool.
func (e Endpoint) IsValid(allowPrivate bool) bool {
	if e.Port == 0 {
		return false
	}
	ip, err := e.ip()
	if err != nil {
		return false
	}
	if !allowPrivate && (distip.IsLAN(ip) || ip.IsLinkLocalUnicast()) {
		return false
	}
	if distip.IsSpecialNetwork(ip) {
		return false
	}
	return true
}

// Group returns the short network-locality prefix used to bound how many
// new-table buckets a single source can influence: for IPv4 (including
// 4-in-6 mapped addresses) the /16 formed from its top two octets tagged
// 0x01; for native IPv6 the /32 formed from its top four octets tagged
// 0x00.
func (e Endpoint) Group() ([]byte, error) {
	ip, err := e.ip()
	if err != nil {
		return nil, err
	}
	if v4 := ip.To4(); v4 != nil {
		return []byte{0x01, v4[0], v4[1]}, nil
	}
	return []byte{0x00, ip[0], ip[1], ip[2], ip[3]}, nil
}

// TimestampedEndpoint pairs an Endpoint with the unix time its source
// last claimed to have seen it — the unit of exchange when peers gossip
// address lists to one another.
type TimestampedEndpoint struct {
	Endpoint  Endpoint
	Timestamp int64
}

// intMod decodes h as a little-endian unsigned integer and reduces it
// modulo m. Digests are 32-byte Keccak256 outputs; math/big is used only
// because Go has no native 256-bit integer type, not as a stand-in for
// any higher-level concern.
func intMod(h []byte, m uint64) uint64 {
	rev := make([]byte, len(h))
	for i, b := range h {
		rev[len(h)-1-i] = b
	}
	n := new(big.Int).SetBytes(rev)
	return new(big.Int).Mod(n, new(big.Int).SetUint64(m)).Uint64()
}

// encodeBucket renders a bucket or position index as a 2-byte
// little-endian field for inclusion in a hash preimage. New-table
// buckets run up to 1024, so a single byte does not suffice; the width
// is kept uniform across new and tried derivations for simplicity.
func encodeBucket(b int) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(b))
	return buf[:]
}
