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
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	_ "modernc.org/sqlite"
)

// Store persists an AddressManager's records to a SQLite database across
// three tables: metadata (the bucket key plus record counts), nodes (the
// dense-indexed record blobs), and new_table (which new-table bucket each
// record with a surviving reference sits in). The tried table's cell
// assignment is not stored directly; it is recomputed from the bucket key
// and each record's endpoint on load, the same way the live manager
// computes it, so a corrupted or hand-edited tried-table layout cannot
// desync from the derivation rule.
type Store struct {
	db       *sql.DB
	lastLost int
}

// OpenStore opens (creating if necessary) the sqlite database at path
// and ensures its schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStorageError, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS nodes (node_id INTEGER PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS new_table (node_id INTEGER, bucket INTEGER)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: creating schema: %v", ErrStorageError, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// LastDeserializeLostCount reports how many tried-table records from the
// most recent Load lost the race for their cell (another record, derived
// from the same bucket key, already claimed it) and were therefore left
// out of the loaded manager entirely.
func (s *Store) LastDeserializeLostCount() int { return s.lastLost }

type peerInfoDTO struct {
	Host        string `json:"host"`
	Port        uint16 `json:"port"`
	SourceHost  string `json:"source_host"`
	SourcePort  uint16 `json:"source_port"`
	Timestamp   int64  `json:"timestamp"`
	LastTry     int64  `json:"last_try"`
	LastSuccess int64  `json:"last_success"`
	NumAttempts int    `json:"num_attempts"`
	IsTried     bool   `json:"is_tried"`
}

func encodePeerInfo(r *PeerRecord) (string, error) {
	dto := peerInfoDTO{
		Host: r.Info.Host, Port: r.Info.Port,
		SourceHost: r.Source.Host, SourcePort: r.Source.Port,
		Timestamp: r.Timestamp, LastTry: r.LastTry, LastSuccess: r.LastSuccess,
		NumAttempts: r.NumAttempts, IsTried: r.IsTried,
	}
	b, err := json.Marshal(dto)
	return string(b), err
}

func decodePeerInfo(s string) (*PeerRecord, error) {
	var dto peerInfoDTO
	if err := json.Unmarshal([]byte(s), &dto); err != nil {
		return nil, err
	}
	return &PeerRecord{
		Info:        Endpoint{Host: dto.Host, Port: dto.Port},
		Source:      Endpoint{Host: dto.SourceHost, Port: dto.SourcePort},
		Timestamp:   dto.Timestamp,
		LastTry:     dto.LastTry,
		LastSuccess: dto.LastSuccess,
		NumAttempts: dto.NumAttempts,
		IsTried:     dto.IsTried,
	}, nil
}

// Serialize writes a full snapshot of am, replacing whatever the store
// previously held. Dense node ids are assigned in two runs over the
// manager's random-access list: first every record still referenced by
// the new table, then every tried record; new_table rows reference the
// former range only, since a tried record's cell is always recomputed
// from its endpoint rather than persisted directly.
func (s *Store) Serialize(am *AddressManager) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	type row struct {
		id    int64
		value string
	}
	denseID := make(map[int64]int64)
	var nodes []row
	var next int64

	for _, id := range am.random {
		r := am.mapInfo[id]
		if r.IsTried || r.RefCount <= 0 {
			continue
		}
		value, err := encodePeerInfo(r)
		if err != nil {
			return fmt.Errorf("%w: encoding node %d: %v", ErrStorageError, id, err)
		}
		denseID[id] = next
		nodes = append(nodes, row{next, value})
		next++
	}
	newCount := next

	for _, id := range am.random {
		r := am.mapInfo[id]
		if !r.IsTried {
			continue
		}
		value, err := encodePeerInfo(r)
		if err != nil {
			return fmt.Errorf("%w: encoding node %d: %v", ErrStorageError, id, err)
		}
		denseID[id] = next
		nodes = append(nodes, row{next, value})
		next++
	}
	triedCount := next - newCount

	type ntRow struct {
		id, bucket int64
	}
	var newTableRows []ntRow
	for bucket := 0; bucket < newBucketCount; bucket++ {
		for pos := 0; pos < newBucketSize; pos++ {
			id := am.newTable.get(bucket, pos)
			if id == -1 {
				continue
			}
			if d, ok := denseID[id]; ok {
				newTableRows = append(newTableRows, ntRow{d, int64(bucket)})
			}
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM metadata", "DELETE FROM nodes", "DELETE FROM new_table"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}

	keyInt := new(big.Int).SetBytes(am.key[:])
	meta := [][2]string{
		{"key", keyInt.String()},
		{"new_count", strconv.FormatInt(newCount, 10)},
		{"tried_count", strconv.FormatInt(triedCount, 10)},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO metadata(key, value) VALUES(?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}
	for _, n := range nodes {
		if _, err := tx.Exec(`INSERT INTO nodes(node_id, value) VALUES(?, ?)`, n.id, n.value); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}
	for _, e := range newTableRows {
		if _, err := tx.Exec(`INSERT INTO new_table(node_id, bucket) VALUES(?, ?)`, e.id, e.bucket); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// Load reconstructs an AddressManager from the store's current contents.
// cfg supplies everything Serialize cannot recover (clock, RNG); its
// FixedKey, if set, is overridden by the persisted key so that bucket
// placement survives a restart unchanged. An empty store (no metadata
// rows) yields a fresh, empty manager built from cfg as given.
func (s *Store) Load(cfg Config) (*AddressManager, error) {
	metaRows, err := s.db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	meta := map[string]string{}
	for metaRows.Next() {
		var k, v string
		if err := metaRows.Scan(&k, &v); err != nil {
			metaRows.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		meta[k] = v
	}
	metaRows.Close()

	if _, ok := meta["key"]; !ok {
		return New(cfg)
	}

	keyInt, ok := new(big.Int).SetString(meta["key"], 10)
	if !ok {
		return nil, fmt.Errorf("%w: metadata key is not a decimal integer", ErrIntegrityError)
	}
	var key [32]byte
	keyInt.FillBytes(key[:])
	cfg.FixedKey = &key

	am, err := New(cfg)
	if err != nil {
		return nil, err
	}

	newCount, err := strconv.ParseInt(meta["new_count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata new_count: %v", ErrIntegrityError, err)
	}

	nodeRows, err := s.db.Query(`SELECT node_id, value FROM nodes ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	type rawNode struct {
		id    int64
		value string
	}
	var raw []rawNode
	for nodeRows.Next() {
		var n rawNode
		if err := nodeRows.Scan(&n.id, &n.value); err != nil {
			nodeRows.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		raw = append(raw, n)
	}
	nodeRows.Close()

	ntRows, err := s.db.Query(`SELECT node_id, bucket FROM new_table`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	type ntRow struct{ id, bucket int64 }
	var nt []ntRow
	for ntRows.Next() {
		var e ntRow
		if err := ntRows.Scan(&e.id, &e.bucket); err != nil {
			ntRows.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		nt = append(nt, e)
	}
	ntRows.Close()

	for _, n := range raw {
		if n.id >= newCount {
			continue
		}
		r, err := decodePeerInfo(n.value)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding node %d: %v", ErrIntegrityError, n.id, err)
		}
		key, err := r.Info.Key()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrityError, err)
		}
		am.mapInfo[n.id] = r
		am.mapAddr[key] = n.id
		am.appendRandom(n.id)
		if n.id >= am.nextID {
			am.nextID = n.id + 1
		}
	}

	lost := 0
	for _, n := range raw {
		if n.id < newCount {
			continue
		}
		r, err := decodePeerInfo(n.value)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding node %d: %v", ErrIntegrityError, n.id, err)
		}
		bucket, err := am.triedBucketFor(r.Info)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrityError, err)
		}
		pos, err := am.bucketPositionFor(r.Info, true, bucket)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrityError, err)
		}
		if am.triedTable.get(bucket, pos) != -1 {
			lost++
			continue
		}
		r.IsTried = true
		key, err := r.Info.Key()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrityError, err)
		}
		am.mapInfo[n.id] = r
		am.mapAddr[key] = n.id
		am.appendRandom(n.id)
		am.triedTable.set(bucket, pos, n.id)
		if n.id >= am.nextID {
			am.nextID = n.id + 1
		}
	}
	s.lastLost = lost

	for _, e := range nt {
		r, ok := am.mapInfo[e.id]
		if !ok {
			continue
		}
		if r.IsTried {
			return nil, fmt.Errorf("%w: tried node %d listed in new_table", ErrIntegrityError, e.id)
		}
		pos, err := am.bucketPositionFor(r.Info, false, int(e.bucket))
		if err != nil {
			continue
		}
		if am.newTable.get(int(e.bucket), pos) == -1 && r.RefCount < maxNewBucketsPerAddress {
			am.placeNewCell(e.id, int(e.bucket), pos)
		}
	}

	var orphans []int64
	for id, r := range am.mapInfo {
		if !r.IsTried && r.RefCount == 0 {
			orphans = append(orphans, id)
		}
	}
	for _, id := range orphans {
		am.deleteRecord(id)
	}

	am.newCount, am.triedCount = 0, 0
	for _, r := range am.mapInfo {
		if r.IsTried {
			am.triedCount++
		} else {
			am.newCount++
		}
	}
	am.refreshMetrics()

	return am, nil
}
