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

// cellRef names one new-table cell a record currently occupies, so the
// record can be pulled out of every cell it's in without a linear scan
// of the whole bucket matrix.
type cellRef struct {
	bucket, pos int
}

// PeerRecord is everything the manager tracks about one endpoint. It is
// addressed internally by a dense int64 id; callers never see the id
// itself, only the ExtendedPeerInfo views built from it.
type PeerRecord struct {
	Info   Endpoint
	Source Endpoint

	Timestamp   int64
	LastTry     int64
	LastSuccess int64
	NumAttempts int

	IsTried   bool
	RefCount  int
	NewCells  []cellRef
	RandomPos int
}

// ExtendedPeerInfo is the read-only view of a PeerRecord handed back to
// callers of SelectPeer and SelectTriedCollision. It is a copy:
// mutating it has no effect on the manager's bookkeeping.
type ExtendedPeerInfo struct {
	PeerInfo    Endpoint
	Source      Endpoint
	Timestamp   int64
	LastTry     int64
	LastSuccess int64
	NumAttempts int
	IsTried     bool
}

func extendedInfo(r *PeerRecord) *ExtendedPeerInfo {
	return &ExtendedPeerInfo{
		PeerInfo:    r.Info,
		Source:      r.Source,
		Timestamp:   r.Timestamp,
		LastTry:     r.LastTry,
		LastSuccess: r.LastSuccess,
		NumAttempts: r.NumAttempts,
		IsTried:     r.IsTried,
	}
}
