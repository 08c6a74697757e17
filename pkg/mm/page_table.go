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

	"github.com/osprey-os/osprey/pkg/memarch"
)

// PTE is one page-table entry.
type PTE struct {
	PPN    memarch.PhysPageNum
	Access memarch.AccessType
}

// PageTable maps virtual page numbers to frames. A process's page
// table doubles as its address-space token: syscall translation
// helpers take the token of the process they operate on.
type PageTable struct {
	entries map[memarch.VirtPageNum]PTE
}

// NewPageTable returns an empty page table.
func NewPageTable() *PageTable {
	return &PageTable{entries: make(map[memarch.VirtPageNum]PTE)}
}

// Map installs a translation. Mapping an already-mapped page panics:
// every mapped page has exactly one backing frame, and callers check
// before mapping.
func (pt *PageTable) Map(vpn memarch.VirtPageNum, ppn memarch.PhysPageNum, at memarch.AccessType) {
	if _, ok := pt.entries[vpn]; ok {
		panic(fmt.Sprintf("vpn %#x mapped twice", vpn))
	}
	pt.entries[vpn] = PTE{PPN: ppn, Access: at}
}

// Unmap removes a translation. Unmapping an unmapped page panics.
func (pt *PageTable) Unmap(vpn memarch.VirtPageNum) {
	if _, ok := pt.entries[vpn]; !ok {
		panic(fmt.Sprintf("vpn %#x is not mapped", vpn))
	}
	delete(pt.entries, vpn)
}

// Translate looks up the entry for vpn.
func (pt *PageTable) Translate(vpn memarch.VirtPageNum) (PTE, bool) {
	pte, ok := pt.entries[vpn]
	return pte, ok
}

// Mapped returns whether vpn has a translation.
func (pt *PageTable) Mapped(vpn memarch.VirtPageNum) bool {
	_, ok := pt.entries[vpn]
	return ok
}

// MappedPages returns the number of installed translations.
func (pt *PageTable) MappedPages() int {
	return len(pt.entries)
}
