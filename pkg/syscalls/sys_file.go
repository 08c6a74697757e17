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

package syscalls

import (
	"github.com/osprey-os/osprey/pkg/fs"
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sysabi"
	"github.com/osprey-os/osprey/pkg/vfs"
)

// Write implements the write syscall: write(fd, buf, len).
func Write(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	fd := int(args[0].Int())
	buf := memarch.VirtAddr(args[1].Pointer())
	n := int(args[2].Uint())
	e, ok := t.Process().GetFD(fd)
	if !ok || !e.File.Writable() {
		return 0, nil, kernelerr.ErrInvalid
	}
	ub, err := mm.TranslatedByteBuffer(t.Process().Token(), buf, n)
	if err != nil {
		return 0, nil, err
	}
	return e.File.Write(t, ub), nil, nil
}

// Read implements the read syscall: read(fd, buf, len).
func Read(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	fd := int(args[0].Int())
	buf := memarch.VirtAddr(args[1].Pointer())
	n := int(args[2].Uint())
	e, ok := t.Process().GetFD(fd)
	if !ok || !e.File.Readable() {
		return 0, nil, kernelerr.ErrInvalid
	}
	ub, err := mm.TranslatedByteBuffer(t.Process().Token(), buf, n)
	if err != nil {
		return 0, nil, err
	}
	return e.File.Read(t, ub), nil, nil
}

// Open implements the open syscall: open(path, flags).
func Open(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	path, err := mm.TranslatedStr(t.Process().Token(), memarch.VirtAddr(args[0].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	f, err := fs.Open(path, sysabi.OpenFlags(args[1].Uint()))
	if err != nil {
		return 0, nil, err
	}
	fd := t.Process().InstallFD(f, path)
	return int64(fd), nil, nil
}

// Close implements the close syscall.
func Close(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().CloseFD(int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Dup implements the dup syscall.
func Dup(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	nfd, err := t.Process().DupFD(int(args[0].Int()))
	if err != nil {
		return 0, nil, err
	}
	return int64(nfd), nil, nil
}

// Pipe implements the pipe syscall: pipe(&fds[2]). The two descriptor
// numbers are written as words through the user pointer.
func Pipe(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	fdsVA := memarch.VirtAddr(args[0].Pointer())
	token := t.Process().Token()
	paR, ok1 := mm.VaddrToPaddr(token, fdsVA)
	paW, ok2 := mm.VaddrToPaddr(token, fdsVA+8)
	if !ok1 || !ok2 {
		return 0, nil, kernelerr.ErrBadAddress
	}
	r, w := vfs.NewPipe()
	rfd := t.Process().InstallFD(r, "pipe:r")
	wfd := t.Process().InstallFD(w, "pipe:w")
	mm.WriteScalar64(paR, uint64(rfd))
	mm.WriteScalar64(paW, uint64(wfd))
	return 0, nil, nil
}

// Fstat implements the fstat syscall, filling the Stat layout field by
// field: the struct may straddle a page boundary.
func Fstat(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	e, ok := t.Process().GetFD(int(args[0].Int()))
	if !ok {
		return 0, nil, kernelerr.ErrInvalid
	}
	stater, ok := e.File.(vfs.Stater)
	if !ok {
		return 0, nil, kernelerr.ErrInvalid
	}
	st := stater.Stat()
	base := memarch.VirtAddr(args[1].Pointer())
	token := t.Process().Token()
	for _, field := range []struct {
		off  memarch.VirtAddr
		wide bool
		val  uint64
	}{
		{sysabi.StatOffDev, true, st.Dev},
		{sysabi.StatOffIno, true, st.Ino},
		{sysabi.StatOffMode, false, uint64(st.Mode)},
		{sysabi.StatOffNlink, false, uint64(st.Nlink)},
	} {
		pa, ok := mm.VaddrToPaddr(token, base+field.off)
		if !ok {
			return 0, nil, kernelerr.ErrBadAddress
		}
		if field.wide {
			mm.WriteScalar64(pa, field.val)
		} else {
			mm.WriteScalar32(pa, uint32(field.val))
		}
	}
	return 0, nil, nil
}

// Linkat implements the linkat syscall: linkat(oldname, newname).
func Linkat(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	token := t.Process().Token()
	oldName, err := mm.TranslatedStr(token, memarch.VirtAddr(args[0].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	newName, err := mm.TranslatedStr(token, memarch.VirtAddr(args[1].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	if err := fs.Link(oldName, newName); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Unlinkat implements the unlinkat syscall: unlinkat(name).
func Unlinkat(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	name, err := mm.TranslatedStr(t.Process().Token(), memarch.VirtAddr(args[0].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	if err := fs.Unlink(name); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}
