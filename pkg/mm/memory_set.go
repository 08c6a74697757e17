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
	"fmt"

	"github.com/google/btree"
	"github.com/osprey-os/osprey/pkg/memarch"
)

// MapArea is one framed area: a half-open virtual page range mapped
// page-by-page to freshly allocated frames under one permission mask.
type MapArea struct {
	start, end memarch.VirtPageNum
	access     memarch.AccessType
	frames     map[memarch.VirtPageNum]*FrameTracker
}

// Less implements btree.Item.Less, ordering areas by start page.
func (a *MapArea) Less(than btree.Item) bool {
	return a.start < than.(*MapArea).start
}

// Range returns the half-open page range of the area.
func (a *MapArea) Range() (memarch.VirtPageNum, memarch.VirtPageNum) {
	return a.start, a.end
}

// Access returns the area's permission mask.
func (a *MapArea) Access() memarch.AccessType {
	return a.access
}

const areaBTreeDegree = 8

// MemorySet is a process address space: a page table plus the ordered
// collection of framed areas backing it.
type MemorySet struct {
	pt    *PageTable
	areas *btree.BTree
}

// NewMemorySet returns an empty address space with the trampoline page
// installed. The trampoline is mapped executable and supervisor-only
// at the same virtual address in every process.
func NewMemorySet() (*MemorySet, error) {
	ms := &MemorySet{
		pt:    NewPageTable(),
		areas: btree.New(areaBTreeDegree),
	}
	tramp := memarch.TrampolineBase
	if err := ms.InsertFramedArea(tramp, tramp+memarch.PageSize, memarch.AccessType{Read: true, Execute: true}); err != nil {
		return nil, err
	}
	return ms, nil
}

// Token returns the address-space token used by translation helpers.
func (ms *MemorySet) Token() *PageTable {
	return ms.pt
}

// anyMapped returns whether any page in [start, end) is mapped.
func (ms *MemorySet) anyMapped(start, end memarch.VirtPageNum) bool {
	for vpn := start; vpn < end; vpn++ {
		if ms.pt.Mapped(vpn) {
			return true
		}
	}
	return false
}

// allMapped returns whether every page in [start, end) is mapped.
func (ms *MemorySet) allMapped(start, end memarch.VirtPageNum) bool {
	for vpn := start; vpn < end; vpn++ {
		if !ms.pt.Mapped(vpn) {
			return false
		}
	}
	return true
}

// InsertFramedArea maps [startVA, endVA) (rounded out to page
// boundaries) as a new framed area. The whole range must be unmapped
// and enough frames must remain; on any failure nothing is mapped.
func (ms *MemorySet) InsertFramedArea(startVA, endVA memarch.VirtAddr, at memarch.AccessType) error {
	start, end := startVA.Floor(), endVA.Ceil()
	if ms.anyMapped(start, end) {
		return fmt.Errorf("range [%#x, %#x) overlaps a mapped page", startVA, endVA)
	}
	area := &MapArea{
		start:  start,
		end:    end,
		access: at,
		frames: make(map[memarch.VirtPageNum]*FrameTracker),
	}
	for vpn := start; vpn < end; vpn++ {
		ft, err := AllocFrame()
		if err != nil {
			// Partially acquired frames go back before reporting.
			for _, held := range area.frames {
				held.Release()
			}
			for un := start; un < vpn; un++ {
				ms.pt.Unmap(un)
			}
			return err
		}
		area.frames[vpn] = ft
		ms.pt.Map(vpn, ft.PPN, at)
	}
	ms.areas.ReplaceOrInsert(area)
	return nil
}

// RemoveFramedPages unmaps [startVA, endVA) (rounded out to page
// boundaries), releasing the backing frames. Every page in the range
// must be mapped; a partial match fails with no effect.
func (ms *MemorySet) RemoveFramedPages(startVA, endVA memarch.VirtAddr) error {
	start, end := startVA.Floor(), endVA.Ceil()
	if !ms.allMapped(start, end) {
		return fmt.Errorf("range [%#x, %#x) has unmapped pages", startVA, endVA)
	}
	for vpn := start; vpn < end; {
		area := ms.areaContaining(vpn)
		if area == nil {
			panic(fmt.Sprintf("mapped vpn %#x belongs to no area", vpn))
		}
		upTo := area.end
		if end < upTo {
			upTo = end
		}
		ms.removeFromArea(area, vpn, upTo)
		vpn = upTo
	}
	return nil
}

// areaContaining returns the area covering vpn, or nil.
func (ms *MemorySet) areaContaining(vpn memarch.VirtPageNum) *MapArea {
	var found *MapArea
	ms.areas.DescendLessOrEqual(&MapArea{start: vpn}, func(i btree.Item) bool {
		a := i.(*MapArea)
		if vpn < a.end {
			found = a
		}
		return false
	})
	return found
}

// removeFromArea drops [from, to) out of area, splitting what remains.
// Precondition: area.start <= from < to <= area.end.
func (ms *MemorySet) removeFromArea(area *MapArea, from, to memarch.VirtPageNum) {
	for vpn := from; vpn < to; vpn++ {
		ms.pt.Unmap(vpn)
		area.frames[vpn].Release()
		delete(area.frames, vpn)
	}
	ms.areas.Delete(area)
	if area.start < from {
		left := &MapArea{start: area.start, end: from, access: area.access, frames: make(map[memarch.VirtPageNum]*FrameTracker)}
		for vpn := left.start; vpn < left.end; vpn++ {
			left.frames[vpn] = area.frames[vpn]
		}
		ms.areas.ReplaceOrInsert(left)
	}
	if to < area.end {
		right := &MapArea{start: to, end: area.end, access: area.access, frames: make(map[memarch.VirtPageNum]*FrameTracker)}
		for vpn := right.start; vpn < right.end; vpn++ {
			right.frames[vpn] = area.frames[vpn]
		}
		ms.areas.ReplaceOrInsert(right)
	}
}

// RemoveAreaAt drops the whole area starting at start, releasing its
// frames. Used when a thread's user stack or trap-context page is torn
// down.
func (ms *MemorySet) RemoveAreaAt(start memarch.VirtPageNum) {
	item := ms.areas.Get(&MapArea{start: start})
	if item == nil {
		panic(fmt.Sprintf("no area starts at vpn %#x", start))
	}
	area := item.(*MapArea)
	for vpn := area.start; vpn < area.end; vpn++ {
		ms.pt.Unmap(vpn)
		area.frames[vpn].Release()
	}
	ms.areas.Delete(area)
}

// AppendTo grows the heap area rooted at heapBottom so it covers
// [heapBottom, newEnd). The heap area is created on first growth.
func (ms *MemorySet) AppendTo(heapBottom, newEnd memarch.VirtAddr) error {
	start := heapBottom.Floor()
	item := ms.areas.Get(&MapArea{start: start})
	if item == nil {
		return ms.InsertFramedArea(heapBottom, newEnd, memarch.AccessType{Read: true, Write: true, User: true})
	}
	area := item.(*MapArea)
	newEndVPN := newEnd.Ceil()
	for vpn := area.end; vpn < newEndVPN; vpn++ {
		ft, err := AllocFrame()
		if err != nil {
			for un := area.end; un < vpn; un++ {
				ms.pt.Unmap(un)
				area.frames[un].Release()
				delete(area.frames, un)
			}
			return err
		}
		area.frames[vpn] = ft
		ms.pt.Map(vpn, ft.PPN, area.access)
	}
	if newEndVPN > area.end {
		area.end = newEndVPN
	}
	return nil
}

// ShrinkTo trims the heap area rooted at heapBottom down to
// [heapBottom, newEnd).
func (ms *MemorySet) ShrinkTo(heapBottom, newEnd memarch.VirtAddr) error {
	start := heapBottom.Floor()
	item := ms.areas.Get(&MapArea{start: start})
	if item == nil {
		// No heap area exists, so no heap page is mapped.
		return nil
	}
	area := item.(*MapArea)
	newEndVPN := newEnd.Ceil()
	if newEndVPN < area.start {
		newEndVPN = area.start
	}
	for vpn := newEndVPN; vpn < area.end; vpn++ {
		ms.pt.Unmap(vpn)
		area.frames[vpn].Release()
		delete(area.frames, vpn)
	}
	if newEndVPN < area.end {
		area.end = newEndVPN
	}
	if area.start == area.end {
		ms.areas.Delete(area)
	}
	return nil
}

// Clone duplicates the address space: same areas and permissions, new
// frames holding copies of every page's bytes.
func (ms *MemorySet) Clone() (*MemorySet, error) {
	dup := &MemorySet{
		pt:    NewPageTable(),
		areas: btree.New(areaBTreeDegree),
	}
	var err error
	ms.areas.Ascend(func(i btree.Item) bool {
		src := i.(*MapArea)
		dst := &MapArea{
			start:  src.start,
			end:    src.end,
			access: src.access,
			frames: make(map[memarch.VirtPageNum]*FrameTracker),
		}
		for vpn := src.start; vpn < src.end; vpn++ {
			var ft *FrameTracker
			ft, err = AllocFrame()
			if err != nil {
				// Back out the partially copied area; Recycle below
				// handles the completed ones.
				for got, held := range dst.frames {
					dup.pt.Unmap(got)
					held.Release()
				}
				return false
			}
			*FrameData(ft.PPN) = *FrameData(src.frames[vpn].PPN)
			dst.frames[vpn] = ft
			dup.pt.Map(vpn, ft.PPN, dst.access)
		}
		dup.areas.ReplaceOrInsert(dst)
		return true
	})
	if err != nil {
		dup.Recycle()
		return nil, err
	}
	return dup, nil
}

// Recycle releases every frame and clears the address space.
func (ms *MemorySet) Recycle() {
	ms.areas.Ascend(func(i btree.Item) bool {
		area := i.(*MapArea)
		for vpn := area.start; vpn < area.end; vpn++ {
			ms.pt.Unmap(vpn)
			area.frames[vpn].Release()
		}
		return true
	})
	ms.areas.Clear(false)
}

// Areas calls f on every framed area in ascending start order.
func (ms *MemorySet) Areas(f func(*MapArea) bool) {
	ms.areas.Ascend(func(i btree.Item) bool {
		return f(i.(*MapArea))
	})
}

// CheckDisjoint verifies that no two framed areas overlap. Meant for
// tests and debug assertions.
func (ms *MemorySet) CheckDisjoint() error {
	var prev *MapArea
	var err error
	ms.areas.Ascend(func(i btree.Item) bool {
		a := i.(*MapArea)
		if prev != nil && a.start < prev.end {
			err = fmt.Errorf("areas [%#x, %#x) and [%#x, %#x) overlap", prev.start, prev.end, a.start, a.end)
			return false
		}
		prev = a
		return true
	})
	return err
}

// MappedPages returns the number of mapped pages in the address space.
func (ms *MemorySet) MappedPages() int {
	return ms.pt.MappedPages()
}
