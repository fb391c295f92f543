// Copyright 2017 The go-ethereum Authors
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

// Structured mlog lines: every package that wants machine-parseable log
// output declares its lines as MLogT values in its own mlog.go and sends
// them through glog. There is no separate mlog file/rotation here — the
// surrounding daemon that owns log destinations is out of scope for this
// module.
package logger

import (
	"fmt"

	"github.com/chia-network/go-addrman/logger/glog"
)

// mlogComponent names a package's mlog line family (e.g. "addrman").
type mlogComponent string

// Send writes a fully-populated mlog line through glog at Info level.
func (c mlogComponent) Send(logLine string) {
	glog.V(Info).Infoln(string(c) + " " + logLine)
}

// MLogRegisterAvailable returns the component handle for a package's mlog
// line family. The lines are accepted for documentation at the call site
// and are not stored.
func MLogRegisterAvailable(name string, lines []MLogT) mlogComponent {
	return mlogComponent(name)
}

// MLogT defines an mlog LINE: RECEIVER VERB SUBJECT plus key/value details.
type MLogT struct {
	Description string
	Receiver    string
	Verb        string
	Subject     string
	Details     []MLogDetailT
}

// MLogDetailT defines an mlog LINE DETAIL.
type MLogDetailT struct {
	Owner string
	Key   string
	Value interface{}
}

// SetDetailValues fills in Value for each pre-declared detail, in order.
// The number of arguments must match the number of registered details.
func (m MLogT) SetDetailValues(detailVals ...interface{}) MLogT {
	if len(detailVals) != len(m.Details) {
		glog.Fatal("mlog: wrong number of details set, want: ", len(m.Details), " got: ", len(detailVals))
	}
	for i, v := range detailVals {
		m.Details[i].Value = v
	}
	return m
}

// String implements the stringer interface for an MLogT line.
func (m MLogT) String(documentation ...bool) string {
	placeholderEmpty := "-"
	if m.Receiver == "" {
		m.Receiver = placeholderEmpty
	}
	if m.Subject == "" {
		m.Subject = placeholderEmpty
	}
	if m.Verb == "" {
		m.Verb = placeholderEmpty
	}
	out := fmt.Sprintf("%s %s %s", m.Receiver, m.Verb, m.Subject)
	for _, d := range m.Details {
		out += " " + d.String(documentation...)
	}
	if len(documentation) > 0 && documentation[0] {
		out += fmt.Sprintf("\n    %s", m.Description)
	}
	return out
}

// String implements the stringer interface for mlog details.
func (d MLogDetailT) String(documentation ...bool) string {
	if len(documentation) > 0 && documentation[0] {
		return fmt.Sprintf("$%s:%s:%s", d.Owner, d.Key, d.Value)
	}
	return fmt.Sprintf("[%v]", d.Value)
}
