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

// Package kernel implements the task and process model, the stride
// scheduler, the synchronization primitives with their deadlock
// detector, and syscall dispatch.
package kernel

import (
	"github.com/osprey-os/osprey/pkg/cell"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// TaskStatus is a thread's scheduling state.
type TaskStatus int

// The task states.
const (
	TaskStatusUnInit TaskStatus = iota
	TaskStatusReady
	TaskStatusRunning
	TaskStatusBlocked
	TaskStatusZombie
)

// Stride scheduling constants.
const (
	// BigStride is the dividend of the per-selection stride increment.
	BigStride = 1 << 20

	// DefaultPrio is the priority a thread starts with.
	DefaultPrio = 16
)

// User address-space layout.
const (
	// userImageBase is where a program image is loaded.
	userImageBase memarch.VirtAddr = 0x10000

	// DefaultBaseSize is the image end for programs that do not ask
	// for more static data.
	DefaultBaseSize memarch.VirtAddr = 0x30000

	// heapBase is the bottom of the sbrk heap.
	heapBase memarch.VirtAddr = 0x4000000

	// UserStackSize is each thread's user stack size.
	UserStackSize = 2 * memarch.PageSize
)

// Task is the task control block: one schedulable thread belonging to
// exactly one process. The process strongly owns its tasks; the
// process field is the weak back-reference.
type Task struct {
	process *Process
	kstack  *KernelStack
	cx      taskContext
	inner   *cell.Cell[taskInner]
}

type taskInner struct {
	// res holds the thread's user resources while it is alive; nil
	// after exit.
	res *TaskUserRes

	// trapCxPPN is the frame holding the trap context.
	trapCxPPN memarch.PhysPageNum

	status   TaskStatus
	exitCode *int32

	// Scheduler state.
	stride uint64
	prio   uint64

	// Bookkeeping.
	syscallCounts []uint32
	firstRun      int64

	// pendingExit carries the exit code from the syscall handler to
	// the run loop.
	pendingExit int32

	// stageOff is the bump offset for staged user data on the thread's
	// stack region.
	stageOff uint64
}

// TaskUserRes is a thread's user-space footprint: its tid, user stack,
// and trap-context page.
type TaskUserRes struct {
	tid        int
	ustackBase memarch.VirtAddr
	process    *Process
}

func (r *TaskUserRes) ustackBottom() memarch.VirtAddr {
	return r.ustackBase + memarch.VirtAddr(r.tid)*(UserStackSize+memarch.PageSize)
}

func (r *TaskUserRes) ustackTop() memarch.VirtAddr {
	return r.ustackBottom() + UserStackSize
}

func (r *TaskUserRes) trapCxVA() memarch.VirtAddr {
	return memarch.TrapContextTop - memarch.VirtAddr(r.tid+1)*memarch.PageSize
}

// allocUserRes maps the thread's user stack and trap-context page.
// Preconditions: the process inner is borrowed by the caller.
func (r *TaskUserRes) allocUserRes(pi *processInner) error {
	if err := pi.memorySet.InsertFramedArea(r.ustackBottom(), r.ustackTop(),
		memarch.AccessType{Read: true, Write: true, User: true}); err != nil {
		return err
	}
	if err := pi.memorySet.InsertFramedArea(r.trapCxVA(), r.trapCxVA()+memarch.PageSize,
		memarch.AccessType{Read: true, Write: true}); err != nil {
		pi.memorySet.RemoveAreaAt(r.ustackBottom().Floor())
		return err
	}
	return nil
}

// deallocUserRes unmaps the stack and trap page and retires the tid.
// Preconditions: the process inner is borrowed by the caller.
func (r *TaskUserRes) deallocUserRes(pi *processInner) {
	pi.memorySet.RemoveAreaAt(r.ustackBottom().Floor())
	pi.memorySet.RemoveAreaAt(r.trapCxVA().Floor())
	pi.tidAllocator.dealloc(r.tid)
}

// newTask creates a thread of process. With allocRes, fresh user
// resources are mapped; without it the pages are expected to exist
// already (the fork path clones them with the address space).
// Preconditions: the process inner is borrowed by the caller.
func newTask(process *Process, pi *processInner, ustackBase memarch.VirtAddr, allocRes bool) (*Task, error) {
	res := &TaskUserRes{
		tid:        pi.tidAllocator.alloc(),
		ustackBase: ustackBase,
		process:    process,
	}
	if allocRes {
		if err := res.allocUserRes(pi); err != nil {
			pi.tidAllocator.dealloc(res.tid)
			return nil, err
		}
	}
	pte, ok := pi.memorySet.Token().Translate(res.trapCxVA().Floor())
	if !ok {
		panic("trap-context page is not mapped")
	}
	t := &Task{
		process: process,
		kstack:  allocKernelStack(),
		cx:      newTaskContext(),
		inner: cell.New("kernel.taskInner", taskInner{
			res:           res,
			trapCxPPN:     pte.PPN,
			status:        TaskStatusUnInit,
			stride:        0,
			prio:          DefaultPrio,
			syscallCounts: make([]uint32, sysabi.MaxSyscallNum),
			firstRun:      -1,
		}),
	}
	return t, nil
}

// Process returns the owning process.
func (t *Task) Process() *Process {
	return t.process
}

// TID returns the task's thread id. It implements part of
// context.Identity.
func (t *Task) TID() int {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	if ti.res == nil {
		return -1
	}
	return ti.res.tid
}

// PID returns the owning process id. It implements part of
// context.Identity.
func (t *Task) PID() int32 {
	return t.process.PID()
}

// SetPrio sets the stride priority; prio must be at least 1.
func (t *Task) SetPrio(prio uint64) bool {
	if prio < 1 {
		return false
	}
	ti := t.inner.Borrow()
	defer t.inner.Release()
	ti.prio = prio
	return true
}

// status returns the scheduling state.
func (t *Task) status() TaskStatus {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	return ti.status
}

func (t *Task) setStatus(s TaskStatus) {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	ti.status = s
}

// trapContext reads the thread's trap context from its trap page.
func (t *Task) trapContext() TrapContext {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	return decodeTrapContext(ti.trapCxPPN)
}

// setTrapContext writes the thread's trap context to its trap page.
func (t *Task) setTrapContext(cx TrapContext) {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	cx.encode(ti.trapCxPPN)
}
