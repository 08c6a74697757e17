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

package mm

import (
	"testing"

	"github.com/osprey-os/osprey/pkg/memarch"
)

const pageSize = memarch.PageSize

var rwUser = memarch.AccessType{Read: true, Write: true, User: true}

func TestFrameAllocatorRecycle(t *testing.T) {
	InitFrameAllocator(4)
	a, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	b, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if a.PPN == b.PPN {
		t.Fatalf("two live frames share ppn %#x", a.PPN)
	}
	FrameData(a.PPN)[0] = 0xAB
	a.Release()
	c, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame after release: %v", err)
	}
	if c.PPN != a.PPN {
		t.Errorf("recycled frame not reused: got %#x, want %#x", c.PPN, a.PPN)
	}
	if FrameData(c.PPN)[0] != 0 {
		t.Errorf("recycled frame not zeroed")
	}
}

func TestFrameAllocatorExhaustion(t *testing.T) {
	InitFrameAllocator(2)
	if _, err := AllocFrame(); err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if _, err := AllocFrame(); err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if _, err := AllocFrame(); err == nil {
		t.Errorf("AllocFrame succeeded on an empty pool")
	}
}

func newTestSet(t *testing.T, frames int) *MemorySet {
	t.Helper()
	InitFrameAllocator(frames)
	ms, err := NewMemorySet()
	if err != nil {
		t.Fatalf("NewMemorySet: %v", err)
	}
	return ms
}

func TestInsertRemoveFramedArea(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x10000000)
	if err := ms.InsertFramedArea(base, base+pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	if err := ms.InsertFramedArea(base, base+pageSize, rwUser); err == nil {
		t.Fatalf("overlapping InsertFramedArea succeeded")
	}
	if err := ms.RemoveFramedPages(base, base+pageSize); err != nil {
		t.Fatalf("RemoveFramedPages: %v", err)
	}
	if err := ms.RemoveFramedPages(base, base+pageSize); err == nil {
		t.Fatalf("second RemoveFramedPages succeeded")
	}
}

func TestMmapRoundTripRestoresSet(t *testing.T) {
	ms := newTestSet(t, 64)
	before := ms.MappedPages()
	base := memarch.VirtAddr(0x20000000)
	if err := ms.InsertFramedArea(base, base+3*pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	if got := ms.MappedPages(); got != before+3 {
		t.Fatalf("mapped pages = %d, want %d", got, before+3)
	}
	if err := ms.RemoveFramedPages(base, base+3*pageSize); err != nil {
		t.Fatalf("RemoveFramedPages: %v", err)
	}
	if got := ms.MappedPages(); got != before {
		t.Errorf("mapped pages after unmap = %d, want %d", got, before)
	}
	if err := ms.CheckDisjoint(); err != nil {
		t.Errorf("CheckDisjoint: %v", err)
	}
}

func TestRemoveSplitsArea(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x30000000)
	if err := ms.InsertFramedArea(base, base+4*pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	// Punch out the middle two pages.
	if err := ms.RemoveFramedPages(base+pageSize, base+3*pageSize); err != nil {
		t.Fatalf("RemoveFramedPages: %v", err)
	}
	var ranges [][2]memarch.VirtPageNum
	ms.Areas(func(a *MapArea) bool {
		s, e := a.Range()
		if s >= base.Floor() && e <= base.Floor()+4 {
			ranges = append(ranges, [2]memarch.VirtPageNum{s, e})
		}
		return true
	})
	if len(ranges) != 2 {
		t.Fatalf("got %d fragments, want 2: %v", len(ranges), ranges)
	}
	if err := ms.CheckDisjoint(); err != nil {
		t.Errorf("CheckDisjoint: %v", err)
	}
	// The hole is mappable again.
	if err := ms.InsertFramedArea(base+pageSize, base+3*pageSize, rwUser); err != nil {
		t.Errorf("remap of hole failed: %v", err)
	}
}

func TestInsertRollsBackOnExhaustion(t *testing.T) {
	InitFrameAllocator(3)
	ms, err := NewMemorySet() // consumes 1 frame for the trampoline
	if err != nil {
		t.Fatalf("NewMemorySet: %v", err)
	}
	before := FramesRemaining()
	base := memarch.VirtAddr(0x40000000)
	if err := ms.InsertFramedArea(base, base+4*pageSize, rwUser); err == nil {
		t.Fatalf("InsertFramedArea succeeded with %d frames for 4 pages", before)
	}
	if got := FramesRemaining(); got != before {
		t.Errorf("frames remaining after failed insert = %d, want %d", got, before)
	}
	if ms.anyMapped(base.Floor(), base.Floor()+4) {
		t.Errorf("failed insert left pages mapped")
	}
}

func TestHeapAppendShrinkRoundTrip(t *testing.T) {
	ms := newTestSet(t, 64)
	bottom := memarch.VirtAddr(0x50000000)
	if err := ms.AppendTo(bottom, bottom+2*pageSize); err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if err := ms.AppendTo(bottom, bottom+5*pageSize); err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if err := ms.ShrinkTo(bottom, bottom+2*pageSize); err != nil {
		t.Fatalf("ShrinkTo: %v", err)
	}
	if !ms.allMapped(bottom.Floor(), bottom.Floor()+2) {
		t.Errorf("kept heap pages unmapped after shrink")
	}
	if ms.anyMapped(bottom.Floor()+2, bottom.Floor()+5) {
		t.Errorf("shrunk heap pages still mapped")
	}
}

func TestTranslatedByteBufferSpansPages(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x60000000)
	if err := ms.InsertFramedArea(base, base+2*pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	// A write straddling the page boundary lands in both frames.
	va := base + pageSize - 2
	msg := []byte("abcd")
	if err := CopyOutBytes(ms.Token(), va, msg); err != nil {
		t.Fatalf("CopyOutBytes: %v", err)
	}
	ub, err := TranslatedByteBuffer(ms.Token(), va, len(msg))
	if err != nil {
		t.Fatalf("TranslatedByteBuffer: %v", err)
	}
	if got := string(ub.Bytes()); got != "abcd" {
		t.Errorf("read back %q, want %q", got, "abcd")
	}
	if ub.Len() != 4 {
		t.Errorf("buffer len = %d, want 4", ub.Len())
	}
}

func TestTranslatedByteBufferRejectsKernelPages(t *testing.T) {
	ms := newTestSet(t, 64)
	// The trampoline page has no User bit.
	if _, err := TranslatedByteBuffer(ms.Token(), memarch.TrampolineBase, 8); err == nil {
		t.Errorf("translation of a supervisor page succeeded")
	}
	if _, err := TranslatedByteBuffer(ms.Token(), 0x123000, 8); err == nil {
		t.Errorf("translation of an unmapped page succeeded")
	}
}

func TestTranslatedStr(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x70000000)
	if err := ms.InsertFramedArea(base, base+2*pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	va := base + pageSize - 3
	if err := CopyOutBytes(ms.Token(), va, []byte("hello\x00")); err != nil {
		t.Fatalf("CopyOutBytes: %v", err)
	}
	s, err := TranslatedStr(ms.Token(), va)
	if err != nil {
		t.Fatalf("TranslatedStr: %v", err)
	}
	if s != "hello" {
		t.Errorf("TranslatedStr = %q, want %q", s, "hello")
	}
}

func TestScalarWrites(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x80000000)
	if err := ms.InsertFramedArea(base, base+pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	pa, ok := VaddrToPaddr(ms.Token(), base+16)
	if !ok {
		t.Fatalf("VaddrToPaddr failed")
	}
	WriteScalar64(pa, 0x1122334455667788)
	if got := ReadScalar64(pa); got != 0x1122334455667788 {
		t.Errorf("scalar round trip = %#x", got)
	}
}

func TestCloneCopiesBytes(t *testing.T) {
	ms := newTestSet(t, 64)
	base := memarch.VirtAddr(0x90000000)
	if err := ms.InsertFramedArea(base, base+pageSize, rwUser); err != nil {
		t.Fatalf("InsertFramedArea: %v", err)
	}
	if err := CopyOutBytes(ms.Token(), base, []byte("fork")); err != nil {
		t.Fatalf("CopyOutBytes: %v", err)
	}
	dup, err := ms.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	// Writes to the parent are invisible to the child.
	if err := CopyOutBytes(ms.Token(), base, []byte("xxxx")); err != nil {
		t.Fatalf("CopyOutBytes: %v", err)
	}
	b, err := CopyInBytes(dup.Token(), base, 4)
	if err != nil {
		t.Fatalf("CopyInBytes: %v", err)
	}
	if string(b) != "fork" {
		t.Errorf("child read %q, want %q", b, "fork")
	}
}
