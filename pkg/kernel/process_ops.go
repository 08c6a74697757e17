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
	"github.com/osprey-os/osprey/pkg/cell"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/mm"
)

// PrepareExit stores the exit code the run loop uses once the user
// frames unwind.
func (t *Task) PrepareExit(code int32) {
	ti := t.inner.Borrow()
	ti.pendingExit = code
	t.inner.Release()
}

// TaskInfo is the snapshot behind the task_info syscall.
type TaskInfo struct {
	Status        TaskStatus
	SyscallCounts []uint32
	RunTimeMS     int64
}

// Info returns the task's bookkeeping snapshot.
func (t *Task) Info() TaskInfo {
	now := GetTimeMS()
	ti := t.inner.Borrow()
	defer t.inner.Release()
	counts := append([]uint32(nil), ti.syscallCounts...)
	run := int64(0)
	if ti.firstRun >= 0 {
		run = now - ti.firstRun
	}
	return TaskInfo{Status: ti.status, SyscallCounts: counts, RunTimeMS: run}
}

// ThreadCreate builds a thread starting at entryAddr with arg in the
// first argument register, grows the deadlock matrices to cover the
// new tid, enqueues it, and returns the tid.
func ThreadCreate(t *Task, entryAddr, arg uint64) (int, error) {
	p := t.process
	pi := p.inner.Borrow()
	nt, err := newTask(p, pi, pi.ustackBase, true)
	if err != nil {
		p.inner.Release()
		return 0, kernelerr.ErrNoMemory
	}
	ni := nt.inner.Borrow()
	tid := ni.res.tid
	ustackTop := ni.res.ustackTop()
	cx := appInitContext(entryAddr, uint64(ustackTop), nt.kstack.Top())
	cx.X[10] = arg
	cx.encode(ni.trapCxPPN)
	ni.status = TaskStatusReady
	nt.inner.Release()

	for len(pi.tasks) < tid+1 {
		pi.tasks = append(pi.tasks, nil)
	}
	pi.tasks[tid] = nt
	pi.ensureSyncRows(tid)
	p.inner.Release()

	incTaskCount()
	nt.start()
	addTask(nt)
	log.Debugf("kernel: pid[%d] tid[%d] created", p.PID(), tid)
	return tid, nil
}

// WaitTid reaps an exited sibling thread: the exit code if present,
// ErrThreadRunning while it runs, ErrNoSuchThread for a missing tid or
// a self-wait. Reaping clears the thread's slot.
func WaitTid(t *Task, tid int) (int32, error) {
	if t.TID() == tid {
		return 0, kernelerr.ErrNoSuchThread
	}
	p := t.process
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if tid < 0 || tid >= len(pi.tasks) || pi.tasks[tid] == nil {
		return 0, kernelerr.ErrNoSuchThread
	}
	target := pi.tasks[tid]
	wi := target.inner.Borrow()
	code := wi.exitCode
	target.inner.Release()
	if code == nil {
		return 0, kernelerr.ErrThreadRunning
	}
	pi.tasks[tid] = nil
	return *code, nil
}

// Fork duplicates the calling process: cloned address space, cloned
// descriptor table, fresh synchronization tables. The child's main
// thread starts at entryAddr with arg; the trap page it starts from
// was cloned with the address space. The caller must be the process's
// main thread.
func Fork(t *Task, entryAddr, arg uint64) (int32, error) {
	parent := t.process
	ppi := parent.inner.Borrow()
	ms, err := ppi.memorySet.Clone()
	if err != nil {
		parent.inner.Release()
		return 0, kernelerr.ErrNoMemory
	}
	entries := make(map[uint64]Entry, len(ppi.entries))
	for addr, fn := range ppi.entries {
		entries[addr] = fn
	}
	inner := processInner{
		memorySet:     ms,
		parent:        parent,
		fdTable:       ppi.cloneFDTable(),
		baseSize:      ppi.baseSize,
		ustackBase:    ppi.ustackBase,
		heapBottom:    ppi.heapBottom,
		programBrk:    ppi.programBrk,
		entries:       entries,
		nextEntryAddr: ppi.nextEntryAddr,
	}
	parent.inner.Release()

	child := &Process{pid: allocPID(), inner: cell.New("kernel.processInner", inner)}
	cpi := child.inner.Borrow()
	main, err := newTask(child, cpi, cpi.ustackBase, false)
	if err != nil {
		cpi.memorySet.Recycle()
		child.inner.Release()
		child.pid.Release()
		return 0, kernelerr.ErrNoMemory
	}
	cpi.tasks = append(cpi.tasks, main)
	cpi.ensureSyncRows(0)
	child.inner.Release()

	mi := main.inner.Borrow()
	cx := appInitContext(entryAddr, uint64(mi.res.ustackTop()), main.kstack.Top())
	cx.X[10] = arg
	cx.encode(mi.trapCxPPN)
	mi.status = TaskStatusReady
	main.inner.Release()

	ppi = parent.inner.Borrow()
	ppi.children = append(ppi.children, child)
	parent.inner.Release()

	registerProcess(child)
	incTaskCount()
	main.start()
	addTask(main)
	log.Debugf("kernel: pid[%d] forked pid[%d]", parent.PID(), child.PID())
	return child.PID(), nil
}

// Exec replaces the calling process's address space with the given
// image and repoints the trap context at its entry; the caller's run
// loop restarts there. Only the main thread may exec.
func Exec(t *Task, args CreateProcessArgs) error {
	if t.TID() != 0 {
		return kernelerr.ErrInvalid
	}
	baseSize := args.BaseSize
	if baseSize == 0 {
		baseSize = DefaultBaseSize
	}
	ms, err := mm.NewMemorySet()
	if err != nil {
		return kernelerr.ErrNoMemory
	}
	ustackBase := baseSize + memarch.PageSize
	res := TaskUserRes{tid: 0, ustackBase: ustackBase}
	ok := ms.InsertFramedArea(userImageBase, baseSize,
		memarch.AccessType{Read: true, Write: true, Execute: true, User: true}) == nil &&
		ms.InsertFramedArea(res.ustackBottom(), res.ustackTop(),
			memarch.AccessType{Read: true, Write: true, User: true}) == nil &&
		ms.InsertFramedArea(res.trapCxVA(), res.trapCxVA()+memarch.PageSize,
			memarch.AccessType{Read: true, Write: true}) == nil
	if !ok {
		ms.Recycle()
		return kernelerr.ErrNoMemory
	}

	p := t.process
	pi := p.inner.Borrow()
	old := pi.memorySet
	pi.memorySet = ms
	old.Recycle()
	pi.baseSize = baseSize
	pi.ustackBase = ustackBase
	pi.heapBottom = heapBase
	pi.programBrk = heapBase
	pi.entries = make(map[uint64]Entry)
	pi.nextEntryAddr = uint64(userImageBase)
	entryAddr := pi.registerEntry(args.Entry)
	pi.tasks = []*Task{t}
	pi.mutexes = nil
	pi.semaphores = nil
	pi.condvars = nil
	pi.mutexAvailable = nil
	pi.mutexAllocation = nil
	pi.mutexNeed = nil
	pi.semAvailable = nil
	pi.semAllocation = nil
	pi.semNeed = nil
	pi.ensureSyncRows(0)

	pte, found := ms.Token().Translate(res.trapCxVA().Floor())
	if !found {
		panic("trap-context page is not mapped")
	}
	ti := t.inner.Borrow()
	ti.res.ustackBase = ustackBase
	ti.trapCxPPN = pte.PPN
	ti.stageOff = 0
	cx := appInitContext(entryAddr, uint64(res.ustackTop()), t.kstack.Top())
	cx.X[10] = args.Arg
	cx.encode(pte.PPN)
	t.inner.Release()
	p.inner.Release()
	log.Debugf("kernel: pid[%d] exec image %q", p.PID(), args.Name)
	return nil
}

// Spawn starts a new child process from the image, without the
// fork/exec pair.
func Spawn(t *Task, args CreateProcessArgs) (int32, error) {
	child, err := CreateProcess(args, t.process)
	if err != nil {
		return 0, kernelerr.ErrNoMemory
	}
	return child.PID(), nil
}

// WaitPid reaps a zombie child: pid -1 matches any. It returns the
// reaped child's pid and writes its exit code through exitCodeVA when
// that is nonzero. ErrNoChild without a matching child, ErrChildRunning
// while all matches still run.
func WaitPid(t *Task, pid int32, exitCodeVA memarch.VirtAddr) (int32, error) {
	p := t.process
	pi := p.inner.Borrow()
	matched := false
	var reaped *Process
	idx := -1
	for i, ch := range pi.children {
		if pid != -1 && ch.PID() != pid {
			continue
		}
		matched = true
		if ch.IsZombie() {
			reaped = ch
			idx = i
			break
		}
	}
	if reaped != nil {
		pi.children = append(pi.children[:idx], pi.children[idx+1:]...)
	}
	p.inner.Release()
	if !matched {
		return 0, kernelerr.ErrNoChild
	}
	if reaped == nil {
		return 0, kernelerr.ErrChildRunning
	}
	childPID := reaped.PID()
	code := reaped.ExitCode()
	reaped.pid.Release()
	if exitCodeVA != 0 {
		pa, ok := mm.VaddrToPaddr(p.Token(), exitCodeVA)
		if !ok {
			return 0, kernelerr.ErrBadAddress
		}
		mm.WriteScalar32(pa, uint32(code))
	}
	return childPID, nil
}
