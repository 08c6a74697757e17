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

// Package usys is the user-mode runtime: typed wrappers around the raw
// syscall trap for guest programs. Buffers and strings are staged into
// the calling thread's user stack region first, so every kernel access
// goes through address translation like a real user pointer.
package usys

import (
	"encoding/binary"

	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// Write writes b to fd, returning the count written or -1.
func Write(t *kernel.Task, fd int, b []byte) int64 {
	va := t.StageBytes(b)
	return t.Syscall(sysabi.SysWrite, uint64(fd), uint64(va), uint64(len(b)))
}

// Print writes s to stdout.
func Print(t *kernel.Task, s string) {
	Write(t, 1, []byte(s))
}

// Read reads up to n bytes from fd.
func Read(t *kernel.Task, fd int, n int) ([]byte, int64) {
	va := t.StageZero(n)
	ret := t.Syscall(sysabi.SysRead, uint64(fd), uint64(va), uint64(n))
	if ret <= 0 {
		return nil, ret
	}
	b, _ := t.CopyInBytes(va, int(ret))
	return b, ret
}

// Open opens path, returning the fd or -1.
func Open(t *kernel.Task, path string, flags sysabi.OpenFlags) int64 {
	va := t.StageString(path)
	return t.Syscall(sysabi.SysOpen, uint64(va), uint64(flags))
}

// Close closes fd.
func Close(t *kernel.Task, fd int) int64 {
	return t.Syscall(sysabi.SysClose, uint64(fd))
}

// Dup duplicates fd.
func Dup(t *kernel.Task, fd int) int64 {
	return t.Syscall(sysabi.SysDup, uint64(fd))
}

// Pipe creates a pipe, returning (readFD, writeFD, ret).
func Pipe(t *kernel.Task) (int, int, int64) {
	va := t.StageZero(16)
	ret := t.Syscall(sysabi.SysPipe, uint64(va))
	if ret < 0 {
		return 0, 0, ret
	}
	r, _ := t.ReadWord(va)
	w, _ := t.ReadWord(va + 8)
	return int(r), int(w), ret
}

// Fstat stats fd.
func Fstat(t *kernel.Task, fd int) (sysabi.Stat, int64) {
	va := t.StageZero(80)
	ret := t.Syscall(sysabi.SysFstat, uint64(fd), uint64(va))
	if ret < 0 {
		return sysabi.Stat{}, ret
	}
	b, _ := t.CopyInBytes(va, 24)
	return sysabi.Stat{
		Dev:   binary.LittleEndian.Uint64(b[sysabi.StatOffDev:]),
		Ino:   binary.LittleEndian.Uint64(b[sysabi.StatOffIno:]),
		Mode:  sysabi.StatMode(binary.LittleEndian.Uint32(b[sysabi.StatOffMode:])),
		Nlink: binary.LittleEndian.Uint32(b[sysabi.StatOffNlink:]),
	}, ret
}

// Linkat links oldPath to newPath.
func Linkat(t *kernel.Task, oldPath, newPath string) int64 {
	oldVA := t.StageString(oldPath)
	newVA := t.StageString(newPath)
	return t.Syscall(sysabi.SysLinkat, uint64(oldVA), uint64(newVA))
}

// Unlinkat removes path.
func Unlinkat(t *kernel.Task, path string) int64 {
	va := t.StageString(path)
	return t.Syscall(sysabi.SysUnlinkat, uint64(va))
}

// Exit ends the calling thread with code. It does not return.
func Exit(t *kernel.Task, code int32) {
	t.Syscall(sysabi.SysExit, uint64(uint32(code)))
	panic("unreachable after exit")
}

// Yield gives up the core.
func Yield(t *kernel.Task) int64 {
	return t.Syscall(sysabi.SysYield)
}

// Sleep blocks for ms milliseconds.
func Sleep(t *kernel.Task, ms int64) int64 {
	return t.Syscall(sysabi.SysSleep, uint64(ms))
}

// SetPriority sets the calling thread's stride priority.
func SetPriority(t *kernel.Task, prio int64) int64 {
	return t.Syscall(sysabi.SysSetPriority, uint64(prio))
}

// GetTime returns (seconds, microseconds) of the machine clock.
func GetTime(t *kernel.Task) (uint64, uint64) {
	va := t.StageZero(16)
	t.Syscall(sysabi.SysGetTime, uint64(va), 0)
	sec, _ := t.ReadWord(va + sysabi.TimeValOffSec)
	usec, _ := t.ReadWord(va + sysabi.TimeValOffUSec)
	return sec, usec
}

// TaskInfo returns the per-task syscall counters and run time.
func TaskInfo(t *kernel.Task) ([]uint32, uint64) {
	size := sysabi.TaskInfoOffStatus + 4
	va := t.StageZero(size)
	t.Syscall(sysabi.SysTaskInfo, uint64(va))
	b, _ := t.CopyInBytes(va, size)
	counts := make([]uint32, sysabi.MaxSyscallNum)
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return counts, binary.LittleEndian.Uint64(b[sysabi.TaskInfoOffTime:])
}

// Mmap maps [start, start+len) with the port permission bits.
func Mmap(t *kernel.Task, start memarch.VirtAddr, length, port uint64) int64 {
	return t.Syscall(sysabi.SysMmap, uint64(start), length, port)
}

// Munmap unmaps [start, start+len).
func Munmap(t *kernel.Task, start memarch.VirtAddr, length uint64) int64 {
	return t.Syscall(sysabi.SysMunmap, uint64(start), length)
}

// Sbrk moves the program break by delta, returning the old break.
func Sbrk(t *kernel.Task, delta int64) int64 {
	return t.Syscall(sysabi.SysSbrk, uint64(delta))
}

// Getpid returns the process id.
func Getpid(t *kernel.Task) int64 {
	return t.Syscall(sysabi.SysGetpid)
}

// Fork duplicates the process; the child runs child with arg. The
// parent receives the child pid.
func Fork(t *kernel.Task, child kernel.Entry, arg uint64) int64 {
	addr := t.Process().RegisterEntry(child)
	return t.Syscall(sysabi.SysFork, addr, arg)
}

// Exec replaces the process with the named image. On success it does
// not return.
func Exec(t *kernel.Task, path string, arg uint64) int64 {
	va := t.StageString(path)
	return t.Syscall(sysabi.SysExec, uint64(va), arg)
}

// Spawn starts path as a new child process, returning its pid.
func Spawn(t *kernel.Task, path string, arg uint64) int64 {
	va := t.StageString(path)
	return t.Syscall(sysabi.SysSpawn, uint64(va), arg)
}

// Waitpid waits for the child pid (-1 for any), returning the reaped
// pid (or -1/-2) and the child's exit code.
func Waitpid(t *kernel.Task, pid int32) (int64, int32) {
	va := t.StageZero(8)
	ret := t.Syscall(sysabi.SysWaitpid, uint64(uint32(pid)), uint64(va))
	if ret < 0 {
		return ret, 0
	}
	w, _ := t.ReadWord(va)
	return ret, int32(uint32(w))
}

// WaitpidBlocking loops waitpid over yield until the child exits.
func WaitpidBlocking(t *kernel.Task, pid int32) (int64, int32) {
	for {
		ret, code := Waitpid(t, pid)
		if ret != -2 {
			return ret, code
		}
		Yield(t)
	}
}

// ThreadCreate starts a thread at entry with arg, returning its tid.
func ThreadCreate(t *kernel.Task, entry kernel.Entry, arg uint64) int64 {
	addr := t.Process().RegisterEntry(entry)
	return t.Syscall(sysabi.SysThreadCreate, addr, arg)
}

// Gettid returns the calling thread id.
func Gettid(t *kernel.Task) int64 {
	return t.Syscall(sysabi.SysGettid)
}

// Waittid reaps the sibling tid: its exit code, -2 while it runs, -1
// for a missing thread or self-wait.
func Waittid(t *kernel.Task, tid int) int64 {
	return t.Syscall(sysabi.SysWaittid, uint64(tid))
}

// WaittidBlocking loops waittid over yield until the thread exits.
func WaittidBlocking(t *kernel.Task, tid int) int64 {
	for {
		ret := Waittid(t, tid)
		if ret != -2 {
			return ret
		}
		Yield(t)
	}
}

// MutexCreate creates a mutex; blocking picks the kind.
func MutexCreate(t *kernel.Task, blocking bool) int64 {
	arg := uint64(0)
	if blocking {
		arg = 1
	}
	return t.Syscall(sysabi.SysMutexCreate, arg)
}

// MutexLock locks the mutex; under deadlock detection an unsafe
// request fails with the refusal code.
func MutexLock(t *kernel.Task, id int) int64 {
	return t.Syscall(sysabi.SysMutexLock, uint64(id))
}

// MutexUnlock unlocks the mutex.
func MutexUnlock(t *kernel.Task, id int) int64 {
	return t.Syscall(sysabi.SysMutexUnlock, uint64(id))
}

// SemaphoreCreate creates a semaphore with resCount units.
func SemaphoreCreate(t *kernel.Task, resCount int64) int64 {
	return t.Syscall(sysabi.SysSemaphoreCreate, uint64(resCount))
}

// SemaphoreUp returns one unit.
func SemaphoreUp(t *kernel.Task, id int) int64 {
	return t.Syscall(sysabi.SysSemaphoreUp, uint64(id))
}

// SemaphoreDown takes one unit.
func SemaphoreDown(t *kernel.Task, id int) int64 {
	return t.Syscall(sysabi.SysSemaphoreDown, uint64(id))
}

// CondvarCreate creates a condition variable.
func CondvarCreate(t *kernel.Task) int64 {
	return t.Syscall(sysabi.SysCondvarCreate)
}

// CondvarSignal wakes one waiter.
func CondvarSignal(t *kernel.Task, id int) int64 {
	return t.Syscall(sysabi.SysCondvarSignal, uint64(id))
}

// CondvarWait waits on the condvar with the mutex held.
func CondvarWait(t *kernel.Task, id, mutexID int) int64 {
	return t.Syscall(sysabi.SysCondvarWait, uint64(id), uint64(mutexID))
}

// EnableDeadlockDetect toggles the availability check.
func EnableDeadlockDetect(t *kernel.Task, on bool) int64 {
	arg := uint64(0)
	if on {
		arg = 1
	}
	return t.Syscall(sysabi.SysEnableDeadlockDetect, arg)
}
