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
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/chia-network/go-addrman/crypto"
	"github.com/chia-network/go-addrman/logger"
	"github.com/chia-network/go-addrman/logger/glog"
	addrmetrics "github.com/chia-network/go-addrman/metrics"
	"github.com/chia-network/go-addrman/p2p/distip"
)

const (
	// staleTimestampFloor is the earliest last-seen time normalizeTimestamp
	// accepts for a peer; anything older, or more than 600 seconds in the
	// future, is replaced by a fixed stale value.
	staleTimestampFloor = 100000000

	// selectPeerMaxIterations bounds SelectPeer's rejection-sampling
	// loop; 50 keeps worst-case latency predictable while still giving
	// low-chance entries many shots as chanceFactor doubles after each
	// rejected candidate.
	selectPeerMaxIterations = 50

	// triedCollisionTestWindowSeconds is how long an incumbent gets to prove
	// itself reachable again before ResolveTriedCollisions hands its
	// cell to the challenger.
	triedCollisionTestWindowSeconds = 40 * 60

	// futureSkewSeconds is how far past "now" a record's timestamp may
	// sit before is_terrible treats it as bogus.
	futureSkewSeconds = 10 * 60
)

type collisionEntry struct {
	bucket, pos int
	incumbentID int64
}

// AddressManager is a process-local database of candidate and verified
// peer endpoints. All exported methods lock a single coarse mutex: the
// table is small, so finer-grained locking buys nothing but complexity.
type AddressManager struct {
	mu sync.Mutex

	key                 [32]byte
	clock               Clock
	rng                 *rand.Rand
	allowPrivateSubnets bool

	mapInfo map[int64]*PeerRecord
	mapAddr map[[18]byte]int64
	random  []int64
	nextID  int64

	newTable   *bucketTable
	triedTable *bucketTable
	newCount   int
	triedCount int

	collisions map[int64]collisionEntry
}

// New builds an empty AddressManager. Use a Store to load a previously
// persisted one instead, when continuity of the bucket key matters.
func New(cfg Config) (*AddressManager, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	am := &AddressManager{
		key:                 *cfg.FixedKey,
		clock:               cfg.Clock,
		rng:                 cfg.Rand,
		allowPrivateSubnets: cfg.AllowPrivateSubnets,
		mapInfo:             make(map[int64]*PeerRecord),
		mapAddr:             make(map[[18]byte]int64),
		newTable:            newBucketTable(newBucketCount, newBucketSize),
		triedTable:          newBucketTable(triedBucketCount, triedBucketSize),
		collisions:          make(map[int64]collisionEntry),
	}
	return am, nil
}

// --- bucket derivation -----------------------------------------------------

func (am *AddressManager) triedBucketFor(info Endpoint) (int, error) {
	key, err := info.Key()
	if err != nil {
		return 0, err
	}
	h1 := crypto.Keccak256(am.key[:], key[:])
	b := intMod(h1, 8)
	grp, err := info.Group()
	if err != nil {
		return 0, err
	}
	h2 := crypto.Keccak256(am.key[:], grp, encodeBucket(int(b)))
	return int(intMod(h2, triedBucketCount)), nil
}

func (am *AddressManager) newBucketFor(source, info Endpoint) (int, error) {
	srcGroup, err := source.Group()
	if err != nil {
		return 0, err
	}
	peerGroup, err := info.Group()
	if err != nil {
		return 0, err
	}
	h1 := crypto.Keccak256(am.key[:], srcGroup, peerGroup)
	b := intMod(h1, 64)
	h2 := crypto.Keccak256(am.key[:], srcGroup, encodeBucket(int(b)))
	return int(intMod(h2, newBucketCount)), nil
}

func (am *AddressManager) bucketPositionFor(info Endpoint, tried bool, bucket int) (int, error) {
	key, err := info.Key()
	if err != nil {
		return 0, err
	}
	var triedByte byte
	if tried {
		triedByte = 1
	}
	h := crypto.Keccak256(am.key[:], []byte{triedByte}, encodeBucket(bucket), key[:])
	return int(intMod(h, newBucketSize)), nil
}

// --- record lifecycle helpers ----------------------------------------------

func (am *AddressManager) appendRandom(id int64) {
	am.random = append(am.random, id)
	am.mapInfo[id].RandomPos = len(am.random) - 1
}

func (am *AddressManager) removeRandom(id int64) {
	r := am.mapInfo[id]
	last := len(am.random) - 1
	lastID := am.random[last]
	am.random[r.RandomPos] = lastID
	if info, ok := am.mapInfo[lastID]; ok {
		info.RandomPos = r.RandomPos
	}
	am.random = am.random[:last]
}

func (am *AddressManager) placeNewCell(id int64, bucket, pos int) {
	am.newTable.set(bucket, pos, id)
	r := am.mapInfo[id]
	r.NewCells = append(r.NewCells, cellRef{bucket, pos})
	r.RefCount++
}

// clearNewCell empties one new-table cell and, if that was the
// occupant's last reference and it was never promoted to tried, deletes
// the record entirely. It reports the id that was evicted, if any.
func (am *AddressManager) clearNewCell(bucket, pos int) (evicted int64) {
	occupant := am.newTable.get(bucket, pos)
	if occupant == -1 {
		return -1
	}
	am.newTable.clear(bucket, pos)
	r := am.mapInfo[occupant]
	for i, c := range r.NewCells {
		if c.bucket == bucket && c.pos == pos {
			r.NewCells = append(r.NewCells[:i], r.NewCells[i+1:]...)
			break
		}
	}
	r.RefCount--
	if r.RefCount <= 0 && !r.IsTried {
		am.deleteRecord(occupant)
	}
	return occupant
}

// removeFromAllNewCells clears every new-table cell a record occupies
// without deleting the record, used right before promoting it to tried.
func (am *AddressManager) removeFromAllNewCells(id int64) {
	r := am.mapInfo[id]
	cells := append([]cellRef(nil), r.NewCells...)
	for _, c := range cells {
		am.newTable.clear(c.bucket, c.pos)
	}
	r.NewCells = nil
	r.RefCount = 0
}

// deleteRecord fully forgets a record. Callers must have already
// cleared any table cell it occupied.
func (am *AddressManager) deleteRecord(id int64) {
	r, ok := am.mapInfo[id]
	if !ok {
		return
	}
	if key, err := r.Info.Key(); err == nil {
		delete(am.mapAddr, key)
	}
	am.removeRandom(id)
	delete(am.mapInfo, id)
	if r.IsTried {
		am.triedCount--
	} else {
		am.newCount--
	}
}

func (am *AddressManager) normalizeTimestamp(ts int64) int64 {
	now := am.clock.Now().Unix()
	if ts < staleTimestampFloor || ts > now+600 {
		return now - 5*24*60*60
	}
	return ts
}

// isTerrible reports whether a record is unfit to keep or to hand out,
// per the manager's staleness heuristic.
func (am *AddressManager) isTerrible(r *PeerRecord, now int64) bool {
	if r.LastTry != 0 && now-r.LastTry < 60 {
		return true
	}
	if r.Timestamp > now+futureSkewSeconds {
		return true
	}
	if r.Timestamp != 0 && now-r.Timestamp > 30*24*60*60 && r.LastSuccess == 0 {
		return true
	}
	if r.LastSuccess != 0 && now-r.LastSuccess > 7*24*60*60 && r.NumAttempts >= 3 {
		return true
	}
	if r.NumAttempts >= 10 {
		return true
	}
	return false
}

// selectionChance weighs how likely a record is to be handed out by
// SelectPeer: newer, rarely-failed records approach 1.0, while the chance
// decays as a record goes longer without being seen gossiped (Timestamp),
// gets tried again too soon after its last attempt (LastTry), and
// accumulates failed connection attempts (NumAttempts).
func (am *AddressManager) selectionChance(r *PeerRecord, now int64) float64 {
	chance := 1.0

	sinceLastSeen := now - r.Timestamp
	if sinceLastSeen < 0 {
		sinceLastSeen = 0
	}
	chance *= 600.0 / (600.0 + float64(sinceLastSeen))

	sinceLastTry := now - r.LastTry
	if sinceLastTry < 0 {
		sinceLastTry = 0
	}
	if sinceLastTry < 600 {
		chance *= 0.01
	}

	attempts := r.NumAttempts
	if attempts > 8 {
		attempts = 8
	}
	chance *= math.Pow(0.66, float64(attempts))
	return chance
}

func (am *AddressManager) refreshMetrics() {
	addrmetrics.AddrmanNewSize.Update(int64(am.newCount))
	addrmetrics.AddrmanTriedSize.Update(int64(am.triedCount))
	addrmetrics.AddrmanCollisions.Update(int64(len(am.collisions)))
}

// --- public operations ------------------------------------------------------

// AddToNewTable ingests a batch of endpoints a peer claims to know
// about. source is the endpoint that sent the batch; nil means the
// batch came from a direct, self-sourced connection. It reports whether
// at least one genuinely new record was created.
func (am *AddressManager) AddToNewTable(peers []TimestampedEndpoint, source *Endpoint, timePenalty int64) bool {
	am.mu.Lock()
	defer am.mu.Unlock()

	added := false
	for _, p := range peers {
		if am.addOne(p, source, timePenalty) {
			added = true
		}
	}
	am.refreshMetrics()
	return added
}

func (am *AddressManager) addOne(p TimestampedEndpoint, source *Endpoint, timePenalty int64) bool {
	if !p.Endpoint.IsValid(am.allowPrivateSubnets) {
		return false
	}
	if source != nil {
		if !source.IsValid(am.allowPrivateSubnets) {
			return false
		}
		sIP, err1 := source.ip()
		pIP, err2 := p.Endpoint.ip()
		if err1 == nil && err2 == nil {
			if err := distip.CheckRelayIP(sIP, pIP); err != nil {
				return false
			}
		}
	}

	src := p.Endpoint
	if source != nil {
		src = *source
	}

	key, err := p.Endpoint.Key()
	if err != nil {
		return false
	}

	addrmetrics.AddrmanAdds.Mark(1)

	if id, exists := am.mapAddr[key]; exists {
		r := am.mapInfo[id]
		ts := am.normalizeTimestamp(p.Timestamp)
		if ts-timePenalty > r.Timestamp+60*60 {
			r.Timestamp = ts
		}
		if r.RefCount < maxNewBucketsPerAddress && !r.IsTried {
			chance := math.Pow(0.5, float64(r.RefCount))
			if am.rng.Float64() < chance {
				am.tryAddNewCell(id, r, src)
			}
		}
		return false
	}

	id := am.nextID
	am.nextID++
	ts := am.normalizeTimestamp(p.Timestamp)
	r := &PeerRecord{Info: p.Endpoint, Source: src, Timestamp: ts}

	bucket, err := am.newBucketFor(src, p.Endpoint)
	if err != nil {
		return false
	}
	pos, err := am.bucketPositionFor(p.Endpoint, false, bucket)
	if err != nil {
		return false
	}

	if occupant := am.newTable.get(bucket, pos); occupant != -1 {
		occ := am.mapInfo[occupant]
		if !am.isTerrible(occ, am.clock.Now().Unix()) {
			return false
		}
		am.clearNewCell(bucket, pos)
	}

	am.mapInfo[id] = r
	am.mapAddr[key] = id
	am.newCount++
	am.appendRandom(id)
	am.placeNewCell(id, bucket, pos)
	addrmetrics.AddrmanAddsNew.Mark(1)

	if glog.V(logger.Detail) {
		line := *mlogAddPeer
		glog.V(logger.Detail).Infoln(line.SetDetailValues(p.Endpoint.String(), bucket).String())
	}
	return true
}

// tryAddNewCell attempts to give an already-known record one more
// new-table cell, using the source that just re-gossiped it (not
// necessarily the source stored on the record).
func (am *AddressManager) tryAddNewCell(id int64, r *PeerRecord, src Endpoint) {
	bucket, err := am.newBucketFor(src, r.Info)
	if err != nil {
		return
	}
	pos, err := am.bucketPositionFor(r.Info, false, bucket)
	if err != nil {
		return
	}
	for _, c := range r.NewCells {
		if c.bucket == bucket && c.pos == pos {
			return
		}
	}
	occupant := am.newTable.get(bucket, pos)
	if occupant == id {
		return
	}
	if occupant != -1 {
		occ := am.mapInfo[occupant]
		if !am.isTerrible(occ, am.clock.Now().Unix()) {
			return
		}
		am.clearNewCell(bucket, pos)
	}
	am.placeNewCell(id, bucket, pos)
}

// MarkGood records a successful handshake with an endpoint and, unless
// it is already in the tried table, attempts to promote it there.
// testBeforeEvict, when true, defers a colliding promotion to a
// SelectTriedCollision/ResolveTriedCollisions round instead of evicting
// the incumbent immediately.
func (am *AddressManager) MarkGood(e Endpoint, testBeforeEvict bool, at time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()

	addrmetrics.AddrmanMarkGood.Mark(1)

	key, err := e.Key()
	if err != nil {
		return
	}
	id, ok := am.mapAddr[key]
	if !ok {
		glog.V(logger.Debug).Infof("addrman: MarkGood: unknown peer %s", e)
		return
	}

	atUnix := at.Unix()
	r := am.mapInfo[id]
	r.LastSuccess = atUnix
	r.LastTry = atUnix
	r.NumAttempts = 0
	r.Timestamp = atUnix

	if r.IsTried {
		return
	}

	bucket, err := am.triedBucketFor(r.Info)
	if err != nil {
		return
	}
	pos, err := am.bucketPositionFor(r.Info, true, bucket)
	if err != nil {
		return
	}

	occupant := am.triedTable.get(bucket, pos)
	if occupant == -1 {
		am.promoteToTried(id, bucket, pos)
		if glog.V(logger.Detail) {
			line := *mlogMarkGood
			glog.V(logger.Detail).Infoln(line.SetDetailValues(e.String(), true).String())
		}
		return
	}
	if occupant == id {
		return
	}

	if testBeforeEvict {
		am.collisions[id] = collisionEntry{bucket: bucket, pos: pos, incumbentID: occupant}
		if glog.V(logger.Detail) {
			line := *mlogCollision
			glog.V(logger.Detail).Infoln(line.SetDetailValues(e.String(), am.mapInfo[occupant].Info.String()).String())
		}
		return
	}

	am.demoteTriedCell(bucket, pos)
	am.promoteToTried(id, bucket, pos)
}

func (am *AddressManager) promoteToTried(id int64, bucket, pos int) {
	r := am.mapInfo[id]
	if !r.IsTried {
		am.removeFromAllNewCells(id)
		am.newCount--
	}
	r.IsTried = true
	am.triedTable.set(bucket, pos, id)
	am.triedCount++
}

// demoteTriedCell evicts whatever occupies a tried-table cell, trying
// to give it a home back in the new table; if that cell is also full,
// the record is dropped.
func (am *AddressManager) demoteTriedCell(bucket, pos int) {
	incumbentID := am.triedTable.get(bucket, pos)
	if incumbentID == -1 {
		return
	}
	am.triedTable.clear(bucket, pos)
	r := am.mapInfo[incumbentID]
	r.IsTried = false
	am.triedCount--

	nb, err := am.newBucketFor(r.Source, r.Info)
	if err == nil {
		np, err2 := am.bucketPositionFor(r.Info, false, nb)
		if err2 == nil && am.newTable.get(nb, np) == -1 {
			am.newCount++
			am.placeNewCell(incumbentID, nb, np)
			return
		}
	}
	am.deleteRecord(incumbentID)
}

// SelectTriedCollision returns an arbitrary incumbent currently blocking
// a pending promotion, or nil if there is none.
func (am *AddressManager) SelectTriedCollision() *ExtendedPeerInfo {
	am.mu.Lock()
	defer am.mu.Unlock()
	for _, slot := range am.collisions {
		if incumbent, ok := am.mapInfo[slot.incumbentID]; ok {
			return extendedInfo(incumbent)
		}
	}
	return nil
}

// ResolveTriedCollisions walks every pending collision and either drops
// the challenger (incumbent proved itself reachable within the test
// window) or evicts the incumbent and promotes the challenger.
func (am *AddressManager) ResolveTriedCollisions(at time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := at.Unix()
	pending := am.collisions
	am.collisions = make(map[int64]collisionEntry)

	for challengerID, slot := range pending {
		incumbent, ok := am.mapInfo[slot.incumbentID]
		if !ok {
			if am.triedTable.get(slot.bucket, slot.pos) == -1 {
				am.promoteChallenger(challengerID, slot.bucket, slot.pos)
			}
			continue
		}
		healthy := now-incumbent.LastTry < triedCollisionTestWindowSeconds &&
			now-incumbent.LastSuccess < triedCollisionTestWindowSeconds
		if healthy {
			if ch, ok := am.mapInfo[challengerID]; ok && !ch.IsTried {
				am.removeFromAllNewCells(challengerID)
				am.deleteRecord(challengerID)
			}
			continue
		}
		if glog.V(logger.Detail) {
			line := *mlogResolve
			glog.V(logger.Detail).Infoln(line.SetDetailValues(am.mapInfo[challengerID].Info.String(), incumbent.Info.String()).String())
		}
		am.demoteTriedCell(slot.bucket, slot.pos)
		am.promoteChallenger(challengerID, slot.bucket, slot.pos)
	}
	am.refreshMetrics()
}

func (am *AddressManager) promoteChallenger(id int64, bucket, pos int) {
	r, ok := am.mapInfo[id]
	if !ok {
		return
	}
	if !r.IsTried {
		am.removeFromAllNewCells(id)
		am.newCount--
	}
	r.IsTried = true
	am.triedTable.set(bucket, pos, id)
	am.triedCount++
}

// Attempt records a connection attempt against an endpoint. countFailure
// should be true when the attempt did not result in a successful
// handshake; it only increments num_attempts if at least a minute has
// passed since the previous recorded attempt, so a tight retry loop
// does not make a peer look far worse than a single failure would.
func (am *AddressManager) Attempt(e Endpoint, countFailure bool, at time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()

	addrmetrics.AddrmanAttempts.Mark(1)

	key, err := e.Key()
	if err != nil {
		return
	}
	id, ok := am.mapAddr[key]
	if !ok {
		glog.V(logger.Debug).Infof("addrman: Attempt: unknown peer %s", e)
		return
	}
	r := am.mapInfo[id]
	atUnix := at.Unix()
	prevTry := r.LastTry
	if countFailure && atUnix-prevTry >= 60 {
		r.NumAttempts++
	}
	r.LastTry = atUnix
}

// SelectPeer samples one candidate to dial. newOnly restricts sampling
// to the new table; otherwise the side is chosen automatically,
// favoring whichever side has entries, coin-flipping when both do.
// It returns nil if no suitable candidate turns up within the bounded
// number of rejection-sampling rounds.
func (am *AddressManager) SelectPeer(newOnly bool) *ExtendedPeerInfo {
	am.mu.Lock()
	defer am.mu.Unlock()

	if len(am.mapInfo) == 0 {
		addrmetrics.AddrmanSelectMisses.Mark(1)
		return nil
	}

	var useNew bool
	switch {
	case newOnly || am.triedCount == 0:
		useNew = true
	case am.newCount == 0:
		useNew = false
	default:
		useNew = am.rng.Intn(2) == 0
	}
	if useNew && am.newCount == 0 {
		addrmetrics.AddrmanSelectMisses.Mark(1)
		return nil
	}
	if !useNew && am.triedCount == 0 {
		addrmetrics.AddrmanSelectMisses.Mark(1)
		return nil
	}

	table := am.triedTable
	bucketCount := triedBucketCount
	if useNew {
		table = am.newTable
		bucketCount = newBucketCount
	}

	var buckets []int
	for b := 0; b < bucketCount; b++ {
		for p := 0; p < newBucketSize; p++ {
			if table.get(b, p) != -1 {
				buckets = append(buckets, b)
				break
			}
		}
	}
	if len(buckets) == 0 {
		addrmetrics.AddrmanSelectMisses.Mark(1)
		return nil
	}

	now := am.clock.Now().Unix()
	chanceFactor := 1.0
	for i := 0; i < selectPeerMaxIterations; i++ {
		bucket := buckets[am.rng.Intn(len(buckets))]
		pos := am.rng.Intn(newBucketSize)
		id := table.get(bucket, pos)
		if id == -1 {
			continue
		}
		r := am.mapInfo[id]
		chance := am.selectionChance(r, now) * chanceFactor
		if chance > 1 {
			chance = 1
		}
		if am.rng.Float64() < chance {
			addrmetrics.AddrmanSelectHits.Mark(1)
			return extendedInfo(r)
		}
		chanceFactor *= 2
	}
	addrmetrics.AddrmanSelectMisses.Mark(1)
	return nil
}

// GetPeers returns a random subset (roughly 23%, capped at 1000) of
// records not currently considered terrible, for gossiping onward to a
// peer that asked for addresses.
func (am *AddressManager) GetPeers(at time.Time) []TimestampedEndpoint {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := at.Unix()
	candidates := make([]int64, 0, len(am.mapInfo))
	for id, r := range am.mapInfo {
		if !am.isTerrible(r, now) {
			candidates = append(candidates, id)
		}
	}
	am.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	n := len(candidates) * 23 / 100
	if n > 1000 {
		n = 1000
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	out := make([]TimestampedEndpoint, 0, n)
	for _, id := range candidates[:n] {
		r := am.mapInfo[id]
		out = append(out, TimestampedEndpoint{Endpoint: r.Info, Timestamp: r.Timestamp})
	}
	return out
}

// Size returns the total number of records the manager currently holds,
// new and tried combined.
func (am *AddressManager) Size() int {
	am.mu.Lock()
	defer am.mu.Unlock()
	return len(am.mapInfo)
}

// Cleanup evicts records that have failed at least maxConsecutiveFailures
// attempts in a row and have not been retried within maxAge.
func (am *AddressManager) Cleanup(maxAge time.Duration, maxConsecutiveFailures int, at time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := at.Unix()
	maxAgeSeconds := int64(maxAge / time.Second)

	var toEvict []int64
	for id, r := range am.mapInfo {
		if r.NumAttempts >= maxConsecutiveFailures && now-r.LastTry > maxAgeSeconds {
			toEvict = append(toEvict, id)
		}
	}

	for _, id := range toEvict {
		r := am.mapInfo[id]
		if r.IsTried {
			if bucket, err := am.triedBucketFor(r.Info); err == nil {
				if pos, err2 := am.bucketPositionFor(r.Info, true, bucket); err2 == nil && am.triedTable.get(bucket, pos) == id {
					am.triedTable.clear(bucket, pos)
				}
			}
		} else {
			am.removeFromAllNewCells(id)
		}
		am.deleteRecord(id)
	}

	if len(toEvict) > 0 {
		addrmetrics.AddrmanEvicted.Mark(int64(len(toEvict)))
		if glog.V(logger.Info) {
			line := *mlogCleanup
			glog.V(logger.Info).Infoln(line.SetDetailValues(len(toEvict)).String())
		}
	}
	am.refreshMetrics()
}
