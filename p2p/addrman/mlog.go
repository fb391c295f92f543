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

import "github.com/chia-network/go-addrman/logger"

var mlogAddrman = logger.MLogRegisterAvailable("addrman", mLogLines)

var (
	mlogAddPeer = &logger.MLogT{
		Description: "Called when a gossiped endpoint is admitted to the new table.",
		Receiver:    "ADDRMAN", Verb: "ADD", Subject: "PEER",
		Details: []logger.MLogDetailT{
			{Owner: "PEER", Key: "ADDR", Value: nil},
			{Owner: "PEER", Key: "BUCKET", Value: nil},
		},
	}
	mlogMarkGood = &logger.MLogT{
		Description: "Called when a successful handshake promotes a peer toward the tried table.",
		Receiver:    "ADDRMAN", Verb: "MARK", Subject: "GOOD",
		Details: []logger.MLogDetailT{
			{Owner: "PEER", Key: "ADDR", Value: nil},
			{Owner: "PEER", Key: "PROMOTED", Value: nil},
		},
	}
	mlogCollision = &logger.MLogT{
		Description: "Called when promoting a peer to tried would evict an incumbent and the eviction is deferred.",
		Receiver:    "ADDRMAN", Verb: "DETECT", Subject: "COLLISION",
		Details: []logger.MLogDetailT{
			{Owner: "PEER", Key: "CHALLENGER", Value: nil},
			{Owner: "PEER", Key: "INCUMBENT", Value: nil},
		},
	}
	mlogResolve = &logger.MLogT{
		Description: "Called for each pending collision that ResolveTriedCollisions resolves by evicting the incumbent.",
		Receiver:    "ADDRMAN", Verb: "RESOLVE", Subject: "COLLISION",
		Details: []logger.MLogDetailT{
			{Owner: "PEER", Key: "CHALLENGER", Value: nil},
			{Owner: "PEER", Key: "EVICTED_INCUMBENT", Value: nil},
		},
	}
	mlogCleanup = &logger.MLogT{
		Description: "Called once per Cleanup pass that evicts at least one record, with the number evicted.",
		Receiver:    "ADDRMAN", Verb: "CLEANUP", Subject: "TABLE",
		Details: []logger.MLogDetailT{
			{Owner: "TABLE", Key: "EVICTED", Value: nil},
		},
	}
)

var mLogLines = []logger.MLogT{
	*mlogAddPeer,
	*mlogMarkGood,
	*mlogCollision,
	*mlogResolve,
	*mlogCleanup,
}
