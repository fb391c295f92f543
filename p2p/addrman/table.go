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

// Bucket geometry. The new table is four times the size of the tried
// table (1024 vs 256 buckets of equal width): plenty of room for gossiped-but-unverified entries,
// a much smaller set of addresses a node has actually completed a
// handshake with.
const (
	newBucketCount   = 1024
	triedBucketCount = 256

	// bucketWidth is the number of cells per bucket on both sides of the
	// table; new and tried happen to share the same width.
	bucketWidth     = 64
	newBucketSize   = bucketWidth
	triedBucketSize = bucketWidth

	// maxNewBucketsPerAddress bounds how many distinct new-table cells a
	// single record may occupy, capping how much influence repeated
	// gossip from many sources can have over its survival.
	maxNewBucketsPerAddress = 8
)

// bucketTable is a fixed-size matrix of record ids, -1 marking an empty
// cell. Both the new and tried sides use the same shape; only their
// dimensions differ.
type bucketTable struct {
	cells [][]int64
}

func newBucketTable(buckets, size int) *bucketTable {
	cells := make([][]int64, buckets)
	for i := range cells {
		row := make([]int64, size)
		for j := range row {
			row[j] = -1
		}
		cells[i] = row
	}
	return &bucketTable{cells: cells}
}

func (t *bucketTable) get(bucket, pos int) int64 { return t.cells[bucket][pos] }

func (t *bucketTable) set(bucket, pos int, id int64) { t.cells[bucket][pos] = id }

func (t *bucketTable) clear(bucket, pos int) { t.cells[bucket][pos] = -1 }
