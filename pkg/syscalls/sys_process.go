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
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// Exit implements the exit syscall. It does not return to the caller.
func Exit(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	t.PrepareExit(int32(args[0].Int()))
	return 0, kernel.CtrlDoExit, nil
}

// Yield implements the yield syscall.
func Yield(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	kernel.SuspendCurrentAndRunNext()
	return 0, nil, nil
}

// Sleep implements the sleep syscall: a one-shot timer keyed on the
// expiry wakes the blocked task.
func Sleep(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	kernel.Sleep(args[0].Int())
	return 0, nil, nil
}

// SetPriority implements the set_priority syscall, adjusting the
// calling thread's stride priority. Priorities below 2 are rejected.
func SetPriority(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	prio := args[0].Int()
	if prio < 2 || !t.SetPrio(uint64(prio)) {
		return 0, nil, kernelerr.ErrInvalid
	}
	return prio, nil, nil
}

// GetTime implements the get_time syscall, writing the TimeVal fields
// one at a time: the struct may straddle a page boundary.
func GetTime(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	us := kernel.GetTimeUS()
	base := memarch.VirtAddr(args[0].Pointer())
	token := t.Process().Token()
	paSec, ok1 := mm.VaddrToPaddr(token, base+sysabi.TimeValOffSec)
	paUSec, ok2 := mm.VaddrToPaddr(token, base+sysabi.TimeValOffUSec)
	if !ok1 || !ok2 {
		return 0, nil, kernelerr.ErrBadAddress
	}
	mm.WriteScalar64(paSec, uint64(us/1_000_000))
	mm.WriteScalar64(paUSec, uint64(us%1_000_000))
	return 0, nil, nil
}

// TaskInfo implements the task_info syscall, writing the counters, run
// time and status field by field through the page table.
func TaskInfo(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	info := t.Info()
	base := memarch.VirtAddr(args[0].Pointer())
	token := t.Process().Token()
	for i, c := range info.SyscallCounts {
		pa, ok := mm.VaddrToPaddr(token, base+sysabi.TaskInfoOffCounts+memarch.VirtAddr(4*i))
		if !ok {
			return 0, nil, kernelerr.ErrBadAddress
		}
		mm.WriteScalar32(pa, c)
	}
	paTime, ok1 := mm.VaddrToPaddr(token, base+sysabi.TaskInfoOffTime)
	paStatus, ok2 := mm.VaddrToPaddr(token, base+sysabi.TaskInfoOffStatus)
	if !ok1 || !ok2 {
		return 0, nil, kernelerr.ErrBadAddress
	}
	mm.WriteScalar64(paTime, uint64(info.RunTimeMS))
	mm.WriteScalar32(paStatus, uint32(kernel.TaskStatusRunning))
	return 0, nil, nil
}

// Mmap implements the mmap syscall: mmap(start, len, port).
func Mmap(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	err := t.Process().Mmap(memarch.VirtAddr(args[0].Pointer()), args[1].Uint(), args[2].Uint())
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Munmap implements the munmap syscall: munmap(start, len).
func Munmap(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().Munmap(memarch.VirtAddr(args[0].Pointer()), args[1].Uint()); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Sbrk implements the sbrk syscall, returning the old program break.
func Sbrk(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	oldBrk, err := t.Process().Sbrk(args[0].Int())
	if err != nil {
		return 0, nil, err
	}
	return int64(oldBrk), nil, nil
}

// Getpid implements the getpid syscall.
func Getpid(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	return int64(t.PID()), nil, nil
}

// Fork implements the fork syscall. The child starts at the entry
// address in the first argument with the second as its argument; the
// parent receives the child pid.
func Fork(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	pid, err := kernel.Fork(t, args[0].Pointer(), args[1].Uint())
	if err != nil {
		return 0, nil, err
	}
	return int64(pid), nil, nil
}

// Exec implements the exec syscall: the named image replaces the
// calling process and the task restarts at its entry.
func Exec(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	path, err := mm.TranslatedStr(t.Process().Token(), memarch.VirtAddr(args[0].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	img, ok := loader.Lookup(path)
	if !ok {
		return 0, nil, kernelerr.ErrInvalid
	}
	if err := kernel.Exec(t, img.CreateArgs(args[1].Uint())); err != nil {
		return 0, nil, err
	}
	return 0, kernel.CtrlRestart, nil
}

// Waitpid implements the waitpid syscall: waitpid(pid, *exit_code).
func Waitpid(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	pid, err := kernel.WaitPid(t, int32(args[0].Int()), memarch.VirtAddr(args[1].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	return int64(pid), nil, nil
}

// Spawn implements the spawn syscall: a new child process from the
// named image.
func Spawn(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	path, err := mm.TranslatedStr(t.Process().Token(), memarch.VirtAddr(args[0].Pointer()))
	if err != nil {
		return 0, nil, err
	}
	img, ok := loader.Lookup(path)
	if !ok {
		return 0, nil, kernelerr.ErrInvalid
	}
	pid, err := kernel.Spawn(t, img.CreateArgs(args[1].Uint()))
	if err != nil {
		return 0, nil, err
	}
	return int64(pid), nil, nil
}
