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

// Package mm implements the guest memory manager: the global frame
// allocator, per-process page tables and memory sets, and the
// kernel/user buffer translation used by I/O syscalls.
package mm

import (
	"github.com/osprey-os/osprey/pkg/cell"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/memarch"
)

// frameAllocator hands out physical frames from a fixed pool,
// preferring recycled frames over fresh ones.
type frameAllocator struct {
	// frames backs physical memory, indexed by PhysPageNum. A slot is
	// allocated lazily the first time its frame is handed out.
	frames []*[memarch.PageSize]byte

	// current is the watermark of never-used frames.
	current memarch.PhysPageNum

	// end is one past the last frame.
	end memarch.PhysPageNum

	// recycled holds freed frame numbers, reused LIFO.
	recycled []memarch.PhysPageNum
}

var frameAlloc = cell.New("mm.frameAllocator", frameAllocator{})

// InitFrameAllocator sizes the physical frame pool. Called once per
// machine boot.
func InitFrameAllocator(nframes int) {
	f := frameAlloc.Borrow()
	defer frameAlloc.Release()
	*f = frameAllocator{
		frames:  make([]*[memarch.PageSize]byte, nframes),
		current: 0,
		end:     memarch.PhysPageNum(nframes),
	}
	log.Debugf("kernel: frame allocator holds %d frames", nframes)
}

// FrameTracker owns one allocated physical frame; dropping the tracker
// returns the frame to the pool.
type FrameTracker struct {
	PPN memarch.PhysPageNum

	released bool
}

// AllocFrame allocates one zeroed frame. It fails with ErrNoMemory when
// the pool is exhausted.
func AllocFrame() (*FrameTracker, error) {
	f := frameAlloc.Borrow()
	defer frameAlloc.Release()
	var ppn memarch.PhysPageNum
	if n := len(f.recycled); n > 0 {
		ppn = f.recycled[n-1]
		f.recycled = f.recycled[:n-1]
	} else if f.current < f.end {
		ppn = f.current
		f.current++
	} else {
		return nil, kernelerr.ErrNoMemory
	}
	if f.frames[ppn] == nil {
		f.frames[ppn] = new([memarch.PageSize]byte)
	} else {
		*f.frames[ppn] = [memarch.PageSize]byte{}
	}
	return &FrameTracker{PPN: ppn}, nil
}

// Release returns the frame to the pool. Double release panics: a frame
// in two owners means the memory-set invariant is already broken.
func (ft *FrameTracker) Release() {
	if ft.released {
		panic("frame released twice")
	}
	ft.released = true
	f := frameAlloc.Borrow()
	defer frameAlloc.Release()
	f.recycled = append(f.recycled, ft.PPN)
}

// FrameData returns the backing bytes of an allocated frame.
func FrameData(ppn memarch.PhysPageNum) *[memarch.PageSize]byte {
	f := frameAlloc.Borrow()
	defer frameAlloc.Release()
	d := f.frames[ppn]
	if d == nil {
		panic("access to unallocated frame")
	}
	return d
}

// FramesRemaining returns the number of allocatable frames.
func FramesRemaining() int {
	f := frameAlloc.Borrow()
	defer frameAlloc.Release()
	return int(f.end-f.current) + len(f.recycled)
}
