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
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedTestKey is the all-ones 256-bit key used throughout these tests so
// bucket placement is reproducible run to run.
func fixedTestKey() *[32]byte {
	var k [32]byte
	for i := range k {
		k[i] = 0xff
	}
	return &k
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager(t *testing.T) (*AddressManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_600_000_000, 0)}
	am, err := New(Config{
		AllowPrivateSubnets: true,
		FixedKey:            fixedTestKey(),
		Clock:               clock,
		Rand:                rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	return am, clock
}

func TestAddToNewTableInsertsRecord(t *testing.T) {
	am, _ := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}

	added := am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: 1_600_000_000}}, &source, 0)
	require.True(t, added)
	require.Equal(t, 1, am.Size())
	require.Equal(t, 1, am.newCount)
	require.Equal(t, 0, am.triedCount)
}

func TestAddToNewTableDuplicateDoesNotGrowSize(t *testing.T) {
	am, _ := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	peers := []TimestampedEndpoint{{Endpoint: peer, Timestamp: 1_600_000_000}}

	require.True(t, am.AddToNewTable(peers, &source, 0))
	added := am.AddToNewTable(peers, &source, 0)
	require.False(t, added, "re-adding the same endpoint is never reported as newly inserted")
	require.Equal(t, 1, am.Size())
}

func TestAddToNewTableRejectsInvalidEndpoints(t *testing.T) {
	am, _ := newTestManager(t)
	am.allowPrivateSubnets = false
	peer := Endpoint{Host: "127.0.0.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}

	added := am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: 1_600_000_000}}, &source, 0)
	require.False(t, added)
	require.Equal(t, 0, am.Size())
}

func TestAddToNewTableManyDistinctEndpointsSameSubnet(t *testing.T) {
	am, _ := newTestManager(t)
	source := Endpoint{Host: "252.2.2.2", Port: 8444}

	var peers []TimestampedEndpoint
	for i := 1; i <= 255; i++ {
		peers = append(peers, TimestampedEndpoint{
			Endpoint:  Endpoint{Host: fmt.Sprintf("250.1.1.%d", i), Port: 8444},
			Timestamp: 1_600_000_000,
		})
	}
	am.AddToNewTable(peers, &source, 0)
	// One source group and one peer group map every endpoint to the same
	// new-table bucket; an endpoint whose position is already held by a
	// non-terrible record is discarded. Under the fixed test key the 255
	// endpoints land on 63 distinct positions of that bucket.
	require.Equal(t, 63, am.Size(), "endpoints sharing a /24 and a source fill at most the distinct positions of one bucket")
}

func TestMarkGoodPromotesToTried(t *testing.T) {
	am, clock := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: clock.t.Unix()}}, &source, 0)

	am.MarkGood(peer, true, clock.t)

	require.Equal(t, 0, am.newCount)
	require.Equal(t, 1, am.triedCount)

	key, err := peer.Key()
	require.NoError(t, err)
	id := am.mapAddr[key]
	require.True(t, am.mapInfo[id].IsTried)
}

func TestMarkGoodUnknownPeerIsANoop(t *testing.T) {
	am, clock := newTestManager(t)
	am.MarkGood(Endpoint{Host: "1.2.3.4", Port: 8444}, true, clock.t)
	require.Equal(t, 0, am.Size())
}

func TestAttemptIncrementsNumAttemptsAfterCooldown(t *testing.T) {
	am, clock := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: clock.t.Unix()}}, &source, 0)

	am.Attempt(peer, true, clock.t)
	key, _ := peer.Key()
	id := am.mapAddr[key]
	require.Equal(t, 1, am.mapInfo[id].NumAttempts)

	// a second attempt less than a minute later does not count again.
	am.Attempt(peer, true, clock.t.Add(30*time.Second))
	require.Equal(t, 1, am.mapInfo[id].NumAttempts)

	am.Attempt(peer, true, clock.t.Add(90*time.Second))
	require.Equal(t, 2, am.mapInfo[id].NumAttempts)
}

func TestSelectPeerReturnsInsertedRecord(t *testing.T) {
	am, _ := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: 1_600_000_000}}, &source, 0)

	var got *ExtendedPeerInfo
	for i := 0; i < 200 && got == nil; i++ {
		got = am.SelectPeer(true)
	}
	require.NotNil(t, got)
	require.Equal(t, peer, got.PeerInfo)
}

func TestSelectPeerEmptyManagerReturnsNil(t *testing.T) {
	am, _ := newTestManager(t)
	require.Nil(t, am.SelectPeer(false))
}

// findTriedCollisionPair searches a deterministic space of private
// addresses for two endpoints that land on the same tried-table cell
// under am's bucket key, exercising the collision path without needing
// a preimage attack against Keccak256.
func findTriedCollisionPair(t *testing.T, am *AddressManager) (Endpoint, Endpoint) {
	t.Helper()
	type cell struct{ bucket, pos int }
	seen := make(map[cell]Endpoint)
	for a := 1; a < 255; a++ {
		for b := 1; b < 255; b++ {
			e := Endpoint{Host: fmt.Sprintf("10.%d.%d.7", a, b), Port: 8444}
			bucket, err := am.triedBucketFor(e)
			require.NoError(t, err)
			pos, err := am.bucketPositionFor(e, true, bucket)
			require.NoError(t, err)
			c := cell{bucket, pos}
			if other, ok := seen[c]; ok {
				return other, e
			}
			seen[c] = e
		}
	}
	t.Fatal("no tried-table collision found in search space")
	return Endpoint{}, Endpoint{}
}

func TestMarkGoodCollisionDeferredThenResolved(t *testing.T) {
	am, clock := newTestManager(t)
	incumbentEP, challengerEP := findTriedCollisionPair(t, am)
	source := Endpoint{Host: "10.99.99.1", Port: 8444}

	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: incumbentEP, Timestamp: clock.t.Unix()}}, &source, 0)
	am.MarkGood(incumbentEP, true, clock.t)
	require.Equal(t, 1, am.triedCount)

	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: challengerEP, Timestamp: clock.t.Unix()}}, &source, 0)
	am.MarkGood(challengerEP, true, clock.t)

	require.Len(t, am.collisions, 1, "promotion colliding with a live incumbent must be deferred, not applied immediately")

	collided := am.SelectTriedCollision()
	require.NotNil(t, collided)
	require.Equal(t, incumbentEP, collided.PeerInfo)

	// incumbent goes stale well past the collision test window; resolving
	// now must evict it in favor of the challenger.
	later := clock.t.Add(2 * time.Hour)
	am.ResolveTriedCollisions(later)

	require.Empty(t, am.collisions)
	challengerKey, _ := challengerEP.Key()
	challengerID := am.mapAddr[challengerKey]
	require.True(t, am.mapInfo[challengerID].IsTried, "challenger must win once the incumbent is stale")
}

func TestMarkGoodCollisionResolvedInFavorOfHealthyIncumbent(t *testing.T) {
	am, clock := newTestManager(t)
	incumbentEP, challengerEP := findTriedCollisionPair(t, am)
	source := Endpoint{Host: "10.99.99.1", Port: 8444}

	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: incumbentEP, Timestamp: clock.t.Unix()}}, &source, 0)
	am.MarkGood(incumbentEP, true, clock.t)

	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: challengerEP, Timestamp: clock.t.Unix()}}, &source, 0)
	am.MarkGood(challengerEP, true, clock.t)
	require.Len(t, am.collisions, 1)

	// incumbent remains healthy (within the test window) when resolved.
	soon := clock.t.Add(5 * time.Minute)
	am.ResolveTriedCollisions(soon)

	require.Empty(t, am.collisions)
	incumbentKey, _ := incumbentEP.Key()
	incumbentID, stillPresent := am.mapAddr[incumbentKey]
	require.True(t, stillPresent)
	require.True(t, am.mapInfo[incumbentID].IsTried, "a healthy incumbent keeps its cell")

	_, challengerPresent := am.mapAddr[mustKey(t, challengerEP)]
	require.False(t, challengerPresent, "a losing challenger is dropped, not left dangling in the new table")
}

func mustKey(t *testing.T, e Endpoint) [18]byte {
	t.Helper()
	k, err := e.Key()
	require.NoError(t, err)
	return k
}

func TestCleanupEvictsPersistentlyUnreachablePeers(t *testing.T) {
	am, clock := newTestManager(t)
	peer := Endpoint{Host: "250.1.1.1", Port: 8444}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	am.AddToNewTable([]TimestampedEndpoint{{Endpoint: peer, Timestamp: clock.t.Unix()}}, &source, 0)

	key, _ := peer.Key()
	id := am.mapAddr[key]
	am.mapInfo[id].NumAttempts = 12
	am.mapInfo[id].LastTry = clock.t.Add(-48 * time.Hour).Unix()

	am.Cleanup(24*time.Hour, 10, clock.t)

	require.Equal(t, 0, am.Size())
}

func TestMarkGoodDistinguishesEndpointsBySameHostDifferentPort(t *testing.T) {
	am, clock := newTestManager(t)
	first := Endpoint{Host: "250.1.1.1", Port: 8444}
	second := Endpoint{Host: "250.1.1.1", Port: 8445}
	source := Endpoint{Host: "252.2.2.2", Port: 8444}

	am.AddToNewTable([]TimestampedEndpoint{
		{Endpoint: first, Timestamp: clock.t.Unix()},
		{Endpoint: second, Timestamp: clock.t.Unix()},
	}, &source, 0)
	require.Equal(t, 2, am.Size(), "same host, different port must be two distinct records")

	am.MarkGood(first, true, clock.t)

	firstID := am.mapAddr[mustKey(t, first)]
	require.True(t, am.mapInfo[firstID].IsTried, "the marked endpoint is promoted to tried")

	secondID := am.mapAddr[mustKey(t, second)]
	require.False(t, am.mapInfo[secondID].IsTried, "a sibling endpoint differing only by port must not be promoted")
	require.Equal(t, 1, am.triedCount)
	require.Equal(t, 1, am.newCount)
}

func TestGetPeersExcludesTerribleRecords(t *testing.T) {
	am, clock := newTestManager(t)
	source := Endpoint{Host: "252.2.2.2", Port: 8444}
	terrible := Endpoint{Host: "250.1.1.2", Port: 8444}

	var peers []TimestampedEndpoint
	for i := 10; i < 40; i++ {
		peers = append(peers, TimestampedEndpoint{
			Endpoint:  Endpoint{Host: fmt.Sprintf("250.1.1.%d", i), Port: 8444},
			Timestamp: clock.t.Unix(),
		})
	}
	peers = append(peers, TimestampedEndpoint{Endpoint: terrible, Timestamp: clock.t.Unix()})
	am.AddToNewTable(peers, &source, 0)

	key, _ := terrible.Key()
	id := am.mapAddr[key]
	am.mapInfo[id].NumAttempts = 10

	got := am.GetPeers(clock.t)
	require.NotEmpty(t, got)
	for _, p := range got {
		require.NotEqual(t, terrible, p.Endpoint)
	}
}
