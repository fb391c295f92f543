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

// Package addrman implements a process-local peer address database for a
// P2P full node: reputation bookkeeping, sybil-resistant bucket placement,
// and selection of outbound dial candidates. See the package's accompanying
// design notes for the bucket-derivation rationale.
package addrman

import "errors"

// ErrInvalidEndpoint is returned (or, for entries inside a batch passed to
// AddToNewTable, silently causes that entry to be skipped) when a host
// string fails to parse or is disallowed by the manager's subnet policy.
var ErrInvalidEndpoint = errors.New("addrman: invalid endpoint")

// ErrUnknownPeer would indicate that MarkGood or Attempt targeted an
// endpoint the manager has no record for. The manager never returns it:
// per the address manager's error-handling design, an unknown peer in
// MarkGood/Attempt is logged and the call returns nil, since the caller
// is authoritative about what it attempted and the entry may simply have
// aged out under Cleanup. The sentinel is exported so callers that want
// to distinguish the case can match against it in their own bookkeeping.
var ErrUnknownPeer = errors.New("addrman: unknown peer")

// ErrStorageError wraps any failure surfaced by the persistence store.
var ErrStorageError = errors.New("addrman: storage error")

// ErrIntegrityError indicates a deserialized snapshot violates the
// manager's invariants (for example, a tried record also present in a
// new-table cell). It is recoverable by discarding the snapshot and
// rebuilding the table from scratch.
var ErrIntegrityError = errors.New("addrman: integrity error")
