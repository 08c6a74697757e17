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

package vfs

import (
	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sbi"
)

// Stdin reads from the firmware console.
type Stdin struct{}

// Readable implements File.Readable.
func (Stdin) Readable() bool { return true }

// Writable implements File.Writable.
func (Stdin) Writable() bool { return false }

// Read implements File.Read. It yields while the console has no
// pending byte; a drained console input is end of stream.
func (Stdin) Read(ctx context.Context, dst *mm.UserBuffer) int64 {
	it := dst.Iter()
	var n int64
	for n < int64(dst.Len()) {
		c := sbi.ConsoleGetchar()
		if c < 0 {
			if n > 0 || sbi.InputDrained() {
				break
			}
			context.YielderFrom(ctx).Yield()
			continue
		}
		if !it.WriteByte(byte(c)) {
			break
		}
		n++
	}
	return n
}

// Write implements File.Write.
func (Stdin) Write(context.Context, *mm.UserBuffer) int64 {
	panic("cannot write to stdin")
}

// Stdout writes to the firmware console, one putchar per byte.
type Stdout struct{}

// Readable implements File.Readable.
func (Stdout) Readable() bool { return false }

// Writable implements File.Writable.
func (Stdout) Writable() bool { return true }

// Read implements File.Read.
func (Stdout) Read(context.Context, *mm.UserBuffer) int64 {
	panic("cannot read from stdout")
}

// Write implements File.Write.
func (Stdout) Write(ctx context.Context, src *mm.UserBuffer) int64 {
	it := src.Iter()
	var n int64
	for {
		b, ok := it.ReadByte()
		if !ok {
			return n
		}
		sbi.ConsolePutchar(b)
		n++
	}
}
