// Copyright 2024 The Osprey Authors.
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

// Package sbi is the boundary to the supervisor-mode firmware: a single
// trap-like entry point taking a function id and three word-sized
// arguments. The machine behind it is simulated; the kernel only ever
// talks to this interface.
package sbi

import (
	"io"

	"github.com/osprey-os/osprey/pkg/cell"
)

// Firmware function ids.
const (
	// FuncConsolePutchar writes one byte to the console.
	FuncConsolePutchar = 1

	// FuncConsoleGetchar reads one byte from the console, or returns -1.
	FuncConsoleGetchar = 2

	// FuncShutdown powers the machine off. It does not return control
	// to the kernel.
	FuncShutdown = 8
)

type firmware struct {
	out      io.Writer
	in       []byte
	inPos    int
	shutdown bool
	failure  bool
}

var fw = cell.New("sbi.firmware", firmware{out: io.Discard})

// Init points the firmware console at the given sink and input bytes.
// Called once per machine boot, before any task runs.
func Init(out io.Writer, in []byte) {
	f := fw.Borrow()
	defer fw.Release()
	if out == nil {
		out = io.Discard
	}
	f.out = out
	f.in = in
	f.inPos = 0
	f.shutdown = false
	f.failure = false
}

// Call is the firmware entry point.
func Call(fid uint64, a0, a1, a2 uint64) int64 {
	switch fid {
	case FuncConsolePutchar:
		ConsolePutchar(byte(a0))
		return 0
	case FuncConsoleGetchar:
		return int64(ConsoleGetchar())
	case FuncShutdown:
		Shutdown(a0 != 0)
		return 0
	default:
		return -1
	}
}

// ConsolePutchar writes one byte to the console.
func ConsolePutchar(b byte) {
	f := fw.Borrow()
	defer fw.Release()
	f.out.Write([]byte{b})
}

// ConsoleGetchar returns the next console input byte, or -1 when none
// is pending.
func ConsoleGetchar() int {
	f := fw.Borrow()
	defer fw.Release()
	if f.inPos >= len(f.in) {
		return -1
	}
	b := f.in[f.inPos]
	f.inPos++
	return int(b)
}

// InputDrained reports whether console input is exhausted. A drained
// input is the simulated terminal's end of stream.
func InputDrained() bool {
	f := fw.Borrow()
	defer fw.Release()
	return f.inPos >= len(f.in)
}

// Shutdown records the power-off request. The processor loop observes
// it and stops fetching tasks.
func Shutdown(failure bool) {
	f := fw.Borrow()
	defer fw.Release()
	f.shutdown = true
	f.failure = failure
}

// IsShutdown reports whether shutdown was requested.
func IsShutdown() bool {
	f := fw.Borrow()
	defer fw.Release()
	return f.shutdown
}
