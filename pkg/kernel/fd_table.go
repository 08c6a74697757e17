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

package kernel

import (
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/vfs"
)

// FDEntry is one descriptor slot: an open file plus its display name.
type FDEntry struct {
	File vfs.File
	Name string
}

// allocFD returns the lowest free slot, reusing holes before extending
// the table.
func (pi *processInner) allocFD() int {
	for fd, e := range pi.fdTable {
		if e == nil {
			return fd
		}
	}
	pi.fdTable = append(pi.fdTable, nil)
	return len(pi.fdTable) - 1
}

// cloneFDTable copies the table for a forked child, retaining every
// open file.
func (pi *processInner) cloneFDTable() []*FDEntry {
	dup := make([]*FDEntry, len(pi.fdTable))
	for fd, e := range pi.fdTable {
		if e == nil {
			continue
		}
		vfs.Retain(e.File)
		dup[fd] = &FDEntry{File: e.File, Name: e.Name}
	}
	return dup
}

// InstallFD places file in the lowest free slot and returns the fd.
func (p *Process) InstallFD(file vfs.File, name string) int {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	fd := pi.allocFD()
	pi.fdTable[fd] = &FDEntry{File: file, Name: name}
	return fd
}

// GetFD returns the entry behind fd.
func (p *Process) GetFD(fd int) (*FDEntry, bool) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if fd < 0 || fd >= len(pi.fdTable) || pi.fdTable[fd] == nil {
		return nil, false
	}
	return pi.fdTable[fd], true
}

// CloseFD empties the slot, dropping the table's reference to the
// file.
func (p *Process) CloseFD(fd int) error {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if fd < 0 || fd >= len(pi.fdTable) || pi.fdTable[fd] == nil {
		return kernelerr.ErrInvalid
	}
	vfs.Release(pi.fdTable[fd].File)
	pi.fdTable[fd] = nil
	return nil
}

// DupFD duplicates fd into the lowest free slot, sharing the open
// file.
func (p *Process) DupFD(fd int) (int, error) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if fd < 0 || fd >= len(pi.fdTable) || pi.fdTable[fd] == nil {
		return 0, kernelerr.ErrInvalid
	}
	e := pi.fdTable[fd]
	vfs.Retain(e.File)
	nfd := pi.allocFD()
	pi.fdTable[nfd] = &FDEntry{File: e.File, Name: e.Name}
	return nfd, nil
}
