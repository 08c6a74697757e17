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
	"github.com/osprey-os/osprey/pkg/cell"
	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/mm"
)

const ringBufferSize = 32

type ringStatus int

const (
	ringEmpty ringStatus = iota
	ringNormal
	ringFull
)

// pipeRing is the fixed-capacity byte queue shared by the two pipe
// endpoints. writeEnds counts the live write-end descriptors; readers
// observe end of stream once it reaches zero.
type pipeRing struct {
	arr       [ringBufferSize]byte
	head      int
	tail      int
	status    ringStatus
	writeEnds int
}

func (r *pipeRing) writeByte(b byte) {
	r.status = ringNormal
	r.arr[r.tail] = b
	r.tail = (r.tail + 1) % ringBufferSize
	if r.tail == r.head {
		r.status = ringFull
	}
}

func (r *pipeRing) readByte() byte {
	r.status = ringNormal
	b := r.arr[r.head]
	r.head = (r.head + 1) % ringBufferSize
	if r.head == r.tail {
		r.status = ringEmpty
	}
	return b
}

func (r *pipeRing) availableRead() int {
	if r.status == ringEmpty {
		return 0
	}
	if r.tail > r.head {
		return r.tail - r.head
	}
	return r.tail + ringBufferSize - r.head
}

func (r *pipeRing) availableWrite() int {
	if r.status == ringFull {
		return 0
	}
	return ringBufferSize - r.availableRead()
}

// Pipe is one endpoint of an in-kernel pipe.
type Pipe struct {
	readable bool
	writable bool
	ring     *cell.Cell[pipeRing]
}

// NewPipe returns the read and write endpoints of a fresh pipe.
func NewPipe() (*Pipe, *Pipe) {
	ring := cell.New("vfs.pipeRing", pipeRing{writeEnds: 1})
	r := &Pipe{readable: true, ring: ring}
	w := &Pipe{writable: true, ring: ring}
	return r, w
}

// Readable implements File.Readable.
func (p *Pipe) Readable() bool { return p.readable }

// Writable implements File.Writable.
func (p *Pipe) Writable() bool { return p.writable }

// Retain implements Retainer.Retain; each duplicated write-end
// descriptor keeps the stream open.
func (p *Pipe) Retain() {
	if !p.writable {
		return
	}
	r := p.ring.Borrow()
	r.writeEnds++
	p.ring.Release()
}

// Release implements Releaser.Release.
func (p *Pipe) Release() {
	if !p.writable {
		return
	}
	r := p.ring.Borrow()
	r.writeEnds--
	p.ring.Release()
}

// Read implements File.Read. It consumes bytes, yielding while the
// ring is empty, and returns a short read once every write end is
// gone. The ring borrow is released before every yield and reacquired
// after wake.
func (p *Pipe) Read(ctx context.Context, dst *mm.UserBuffer) int64 {
	if !p.readable {
		panic("read from a write-only pipe end")
	}
	want := int64(dst.Len())
	it := dst.Iter()
	var done int64
	for {
		ring := p.ring.Borrow()
		n := ring.availableRead()
		if n == 0 {
			if ring.writeEnds == 0 {
				p.ring.Release()
				return done
			}
			p.ring.Release()
			context.YielderFrom(ctx).Yield()
			continue
		}
		for i := 0; i < n; i++ {
			if !it.WriteByte(ring.readByte()) {
				p.ring.Release()
				return done
			}
			done++
			if done == want {
				p.ring.Release()
				return want
			}
		}
		p.ring.Release()
	}
}

// Write implements File.Write. It produces bytes, yielding while the
// ring is full.
func (p *Pipe) Write(ctx context.Context, src *mm.UserBuffer) int64 {
	if !p.writable {
		panic("write to a read-only pipe end")
	}
	want := int64(src.Len())
	it := src.Iter()
	var done int64
	for {
		ring := p.ring.Borrow()
		n := ring.availableWrite()
		if n == 0 {
			p.ring.Release()
			context.YielderFrom(ctx).Yield()
			continue
		}
		for i := 0; i < n; i++ {
			b, ok := it.ReadByte()
			if !ok {
				p.ring.Release()
				return done
			}
			ring.writeByte(b)
			done++
			if done == want {
				p.ring.Release()
				return want
			}
		}
		p.ring.Release()
	}
}
