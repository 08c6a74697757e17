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

// Package fs is the in-memory stand-in for the external filesystem
// layer: a flat namespace of regular files with hard links, enough to
// drive the fd table and the translation paths. The on-disk format and
// the block device stay behind this boundary.
package fs

import (
	"github.com/osprey-os/osprey/pkg/cell"
	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// inode is one regular file's storage.
type inode struct {
	ino   uint64
	nlink uint32
	data  []byte
}

type fsState struct {
	byName  map[string]*inode
	nextIno uint64
}

var state = cell.New("fs.state", fsState{})

// Init resets the filesystem. Called once per machine boot.
func Init() {
	s := state.Borrow()
	defer state.Release()
	s.byName = make(map[string]*inode)
	s.nextIno = 1
}

// RegularFile is an open regular file. The offset is shared by every
// descriptor that refers to this open (dup, fork).
type RegularFile struct {
	readable bool
	writable bool
	node     *inode
	offset   int
}

// Open opens name with the given flags. CREATE creates the file if
// missing and truncates it otherwise; TRUNC truncates; without CREATE
// a missing name fails.
func Open(name string, flags sysabi.OpenFlags) (*RegularFile, error) {
	if name == "" {
		return nil, kernelerr.ErrInvalid
	}
	s := state.Borrow()
	defer state.Release()
	node, ok := s.byName[name]
	if !ok {
		if flags&sysabi.OpenCREATE == 0 {
			return nil, kernelerr.ErrInvalid
		}
		node = &inode{ino: s.nextIno, nlink: 1}
		s.nextIno++
		s.byName[name] = node
	} else if flags&(sysabi.OpenCREATE|sysabi.OpenTRUNC) != 0 {
		node.data = nil
	}
	r, w := flags.ReadWrite()
	return &RegularFile{readable: r, writable: w, node: node}, nil
}

// Link gives oldName a second name. Linking a name to itself or a
// missing file fails.
func Link(oldName, newName string) error {
	if oldName == newName || newName == "" {
		return kernelerr.ErrInvalid
	}
	s := state.Borrow()
	defer state.Release()
	node, ok := s.byName[oldName]
	if !ok {
		return kernelerr.ErrInvalid
	}
	if _, exists := s.byName[newName]; exists {
		return kernelerr.ErrInvalid
	}
	s.byName[newName] = node
	node.nlink++
	return nil
}

// Unlink removes one name. The storage goes away with the last link;
// already-open descriptors keep their inode.
func Unlink(name string) error {
	s := state.Borrow()
	defer state.Release()
	node, ok := s.byName[name]
	if !ok {
		return kernelerr.ErrInvalid
	}
	delete(s.byName, name)
	node.nlink--
	return nil
}

// Readable implements vfs.File.Readable.
func (f *RegularFile) Readable() bool { return f.readable }

// Writable implements vfs.File.Writable.
func (f *RegularFile) Writable() bool { return f.writable }

// Read implements vfs.File.Read.
func (f *RegularFile) Read(ctx context.Context, dst *mm.UserBuffer) int64 {
	if f.offset >= len(f.node.data) {
		return 0
	}
	n := dst.Fill(f.node.data[f.offset:])
	f.offset += n
	return int64(n)
}

// Write implements vfs.File.Write, writing at the open offset and
// growing the file when the write runs past its end.
func (f *RegularFile) Write(ctx context.Context, src *mm.UserBuffer) int64 {
	b := src.Bytes()
	end := f.offset + len(b)
	if end > len(f.node.data) {
		grown := make([]byte, end)
		copy(grown, f.node.data)
		f.node.data = grown
	}
	copy(f.node.data[f.offset:], b)
	f.offset = end
	return int64(len(b))
}

// Stat implements vfs.Stater.Stat.
func (f *RegularFile) Stat() sysabi.Stat {
	return sysabi.Stat{
		Dev:   0,
		Ino:   f.node.ino,
		Mode:  sysabi.StatModeFile,
		Nlink: f.node.nlink,
	}
}
