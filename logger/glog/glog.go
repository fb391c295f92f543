// Go support for leveled logs, analogous to https://code.google.com/p/google-glog/
//
// Copyright 2013 Google Inc. All Rights Reserved.
// Modifications copyright 2017 ETC Dev Team. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package glog implements leveled logging analogous to the Google-internal
// C++ INFO/ERROR/V setup, trimmed to the destination this module actually
// needs: everything goes to stderr, there is no log-file rotation, no
// -vmodule per-file filtering, and no flag wiring, since the daemon/CLI
// surface that would own log destinations and flags is out of scope here.
//
// Basic examples:
//
//	glog.Info("prepare to repel boarders")
//
//	glog.Fatalf("initialization failed: %s", err)
//
// V-style logging is gated by a single global verbosity level, set with
// SetV:
//
//	glog.V(2).Infoln("processed", nItems, "elements")
package glog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// out is where formatted log lines are written. Tests swap it for a buffer
// to inspect output without touching the process's real stderr.
var out io.Writer = os.Stderr

// severity identifies the sort of log: info, warning etc. A message written
// to a high-severity log is also considered logged at every lower severity.
type severity int32

const (
	infoLog severity = iota
	warningLog
	errorLog
	fatalLog
)

const severityChar = "IWEF"

// trimPrefixes are import-path prefixes stripped from the file name shown
// in a log header; matching is cosmetic only.
var trimPrefixes = []string{
	"/github.com/chia-network/go-addrman",
}

func trimToImportPath(file string) string {
	if root := strings.LastIndex(file, "src/"); root >= 0 {
		file = file[root+3:]
	}
	return file
}

// Level specifies a level of verbosity for V logs. It is treated as a
// sync/atomic int32 so SetV can be called concurrently with logging.
type Level int32

func (l *Level) get() Level { return Level(atomic.LoadInt32((*int32)(l))) }

func (l *Level) set(val Level) { atomic.StoreInt32((*int32)(l), int32(val)) }

// String is part of the flag.Value interface.
func (l *Level) String() string { return strconv.FormatInt(int64(*l), 10) }

// loggingT collects the global state of the logging setup.
type loggingT struct {
	mu        sync.Mutex
	verbosity Level // V logging level, read/written only via the atomic get/set above.
}

var logging loggingT

// SetV sets the global verbosity level.
func SetV(v int) { logging.verbosity.set(Level(v)) }

// GetVerbosity returns the global verbosity level.
func GetVerbosity() *Level { return &logging.verbosity }

var timeNow = time.Now // stubbed out for testing.

// logExitFunc, if non-nil, is called instead of os.Exit when a fatal log is
// written. Tests use it to observe a Fatal call without killing the test
// binary.
var logExitFunc func(args ...interface{})

// header formats the "Lmmdd hh:mm:ss.uuuuuu file:line] " prefix used by
// every log line.
func (l *loggingT) header(s severity) string {
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		file, line = "???", 1
	} else {
		file = trimToImportPath(file)
		for _, p := range trimPrefixes {
			if strings.HasPrefix(file, p) {
				file = file[len(p):]
				break
			}
		}
		file = strings.TrimPrefix(file, "/")
	}
	now := timeNow()
	return fmt.Sprintf("%c%02d%02d %02d:%02d:%02d.%06d %s:%d] ",
		severityChar[s], now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1000,
		file, line)
}

// output writes a fully-formatted line to stderr, appending a trailing
// newline if the caller's message doesn't already end with one. A fatal
// line additionally dumps goroutine stacks and terminates the process,
// unless logExitFunc has been set to intercept that for a test.
func (l *loggingT) output(s severity, msg string) {
	header := l.header(s)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	l.mu.Lock()
	io.WriteString(out, header)
	io.WriteString(out, msg)
	l.mu.Unlock()
	if s == fatalLog {
		out.Write(stacks())
		if logExitFunc != nil {
			logExitFunc(msg)
			return
		}
		os.Exit(255)
	}
}

func (l *loggingT) print(s severity, args ...interface{}) { l.output(s, fmt.Sprint(args...)) }

func (l *loggingT) println(s severity, args ...interface{}) { l.output(s, fmt.Sprintln(args...)) }

func (l *loggingT) printf(s severity, format string, args ...interface{}) {
	l.output(s, fmt.Sprintf(format, args...))
}

// stacks attempts to recover the stack traces for all running goroutines.
func stacks() []byte {
	n := 10000
	var trace []byte
	for i := 0; i < 5; i++ {
		trace = make([]byte, n)
		nbytes := runtime.Stack(trace, true)
		if nbytes < len(trace) {
			return trace[:nbytes]
		}
		n *= 2
	}
	return trace
}

// Verbose is a boolean type returned by V; it implements Info/Infoln/Infof
// so a V-gated log call can be written as glog.V(2).Infoln(...).
type Verbose bool

// V reports whether verbosity at the call site is at least the requested
// level. Logging is off by default (verbosity 0); SetV raises it.
func V(level Level) Verbose {
	return Verbose(logging.verbosity.get() >= level)
}

func (v Verbose) Info(args ...interface{}) {
	if v {
		logging.print(infoLog, args...)
	}
}

func (v Verbose) Infoln(args ...interface{}) {
	if v {
		logging.println(infoLog, args...)
	}
}

func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		logging.printf(infoLog, format, args...)
	}
}

// Info logs to the INFO log. Arguments are handled in the manner of
// fmt.Print; a newline is appended if missing.
func Info(args ...interface{}) { logging.print(infoLog, args...) }

// Infoln logs to the INFO log in the manner of fmt.Println.
func Infoln(args ...interface{}) { logging.println(infoLog, args...) }

// Infof logs to the INFO log in the manner of fmt.Printf.
func Infof(format string, args ...interface{}) { logging.printf(infoLog, format, args...) }

// Warning logs to the WARNING log in the manner of fmt.Print.
func Warning(args ...interface{}) { logging.print(warningLog, args...) }

// Warningln logs to the WARNING log in the manner of fmt.Println.
func Warningln(args ...interface{}) { logging.println(warningLog, args...) }

// Warningf logs to the WARNING log in the manner of fmt.Printf.
func Warningf(format string, args ...interface{}) { logging.printf(warningLog, format, args...) }

// Error logs to the ERROR log in the manner of fmt.Print.
func Error(args ...interface{}) { logging.print(errorLog, args...) }

// Errorln logs to the ERROR log in the manner of fmt.Println.
func Errorln(args ...interface{}) { logging.println(errorLog, args...) }

// Errorf logs to the ERROR log in the manner of fmt.Printf.
func Errorf(format string, args ...interface{}) { logging.printf(errorLog, format, args...) }

// Fatal logs to the FATAL log, including a stack trace of all running
// goroutines, then terminates the process. Arguments are handled in the
// manner of fmt.Print.
func Fatal(args ...interface{}) { logging.print(fatalLog, args...) }

// Fatalln logs to the FATAL log in the manner of fmt.Println, then
// terminates the process.
func Fatalln(args ...interface{}) { logging.println(fatalLog, args...) }

// Fatalf logs to the FATAL log in the manner of fmt.Printf, then
// terminates the process.
func Fatalf(format string, args ...interface{}) { logging.printf(fatalLog, format, args...) }
