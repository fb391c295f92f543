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

// Package metrics centralizes the registration of the address manager's
// counters and gauges against a single go-metrics registry.
package metrics

import (
	"github.com/rcrowley/go-metrics"
)

// reg is the metrics destination.
var reg = metrics.NewRegistry()

var (
	AddrmanNewSize      = metrics.NewRegisteredGauge("addrman/new/size", reg)
	AddrmanTriedSize    = metrics.NewRegisteredGauge("addrman/tried/size", reg)
	AddrmanCollisions   = metrics.NewRegisteredGauge("addrman/collisions/pending", reg)
	AddrmanAdds         = metrics.NewRegisteredMeter("addrman/add", reg)
	AddrmanAddsNew      = metrics.NewRegisteredMeter("addrman/add/new", reg)
	AddrmanMarkGood     = metrics.NewRegisteredMeter("addrman/mark_good", reg)
	AddrmanAttempts     = metrics.NewRegisteredMeter("addrman/attempt", reg)
	AddrmanSelectHits   = metrics.NewRegisteredMeter("addrman/select/hits", reg)
	AddrmanSelectMisses = metrics.NewRegisteredMeter("addrman/select/misses", reg)
	AddrmanEvicted      = metrics.NewRegisteredMeter("addrman/cleanup/evicted", reg)
)

// Registry exposes the backing go-metrics registry, e.g. for a node's
// reporting goroutine to range over when exporting to a sink.
func Registry() metrics.Registry { return reg }
