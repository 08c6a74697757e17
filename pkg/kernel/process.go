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
	"github.com/osprey-os/osprey/pkg/vfs"
)

// Entry is a program entry point: the simulated text the loader hands
// the kernel. A thread starts at the entry its trap context points at,
// with the first argument register as arg.
type Entry func(t *Task, arg uint64)

// Process is the process control block: one address space and its
// threads.
type Process struct {
	pid   *PIDHandle
	inner *cell.Cell[processInner]
}

type processInner struct {
	isZombie  bool
	memorySet *mm.MemorySet

	// parent is a weak back-reference; children are owned.
	parent   *Process
	children []*Process

	exitCode int32

	fdTable []*FDEntry

	// tasks is indexed by tid; nil entries are free slots.
	tasks        []*Task
	tidAllocator recycleAllocator

	baseSize   memarch.VirtAddr
	ustackBase memarch.VirtAddr
	heapBottom memarch.VirtAddr
	programBrk memarch.VirtAddr

	// Synchronization tables; nil entries are reusable slots.
	mutexes    []Mutex
	semaphores []*Semaphore
	condvars   []*Condvar

	// Deadlock bookkeeping, one column per resource, one row per tid.
	mutexAvailable  []int64
	mutexAllocation [][]int64
	mutexNeed       [][]int64
	semAvailable    []int64
	semAllocation   [][]int64
	semNeed         [][]int64
	deadlockDetect  bool

	// entries is the simulated text segment: entry address to entry
	// point. Cloned with the address space on fork.
	entries       map[uint64]Entry
	nextEntryAddr uint64
}

// CreateProcessArgs describes a program image to start, the shape the
// loader boundary hands over.
type CreateProcessArgs struct {
	// Name is the image name, used in logs.
	Name string

	// BaseSize is the end of the static image; zero means
	// DefaultBaseSize.
	BaseSize memarch.VirtAddr

	// Entry is the image's main entry point.
	Entry Entry

	// Arg is passed in the first argument register.
	Arg uint64
}

// CreateProcess builds a process around the image, links it under
// parent (nil for the init process), and enqueues its main thread.
func CreateProcess(args CreateProcessArgs, parent *Process) (*Process, error) {
	baseSize := args.BaseSize
	if baseSize == 0 {
		baseSize = DefaultBaseSize
	}
	ms, err := mm.NewMemorySet()
	if err != nil {
		return nil, err
	}
	if err := ms.InsertFramedArea(userImageBase, baseSize,
		memarch.AccessType{Read: true, Write: true, Execute: true, User: true}); err != nil {
		ms.Recycle()
		return nil, err
	}
	p := &Process{
		pid: allocPID(),
		inner: cell.New("kernel.processInner", processInner{
			memorySet: ms,
			parent:    parent,
			fdTable: []*FDEntry{
				{File: vfs.Stdin{}, Name: "stdin"},
				{File: vfs.Stdout{}, Name: "stdout"},
				{File: vfs.Stdout{}, Name: "stderr"},
			},
			baseSize:      baseSize,
			ustackBase:    baseSize + memarch.PageSize,
			heapBottom:    heapBase,
			programBrk:    heapBase,
			entries:       make(map[uint64]Entry),
			nextEntryAddr: uint64(userImageBase),
		}),
	}
	pi := p.inner.Borrow()
	entryAddr := pi.registerEntry(args.Entry)
	main, err := newTask(p, pi, pi.ustackBase, true)
	if err != nil {
		ms.Recycle()
		p.inner.Release()
		p.pid.Release()
		return nil, err
	}
	pi.tasks = append(pi.tasks, main)
	pi.ensureSyncRows(0)
	p.inner.Release()

	mi := main.inner.Borrow()
	cx := appInitContext(entryAddr, uint64(mi.res.ustackTop()), main.kstack.Top())
	cx.X[10] = args.Arg
	cx.encode(mi.trapCxPPN)
	mi.status = TaskStatusReady
	main.inner.Release()

	if parent != nil {
		ppi := parent.inner.Borrow()
		ppi.children = append(ppi.children, p)
		parent.inner.Release()
	}
	registerProcess(p)
	incTaskCount()
	main.start()
	addTask(main)
	log.Debugf("kernel: pid[%d] created from image %q", p.PID(), args.Name)
	return p, nil
}

// PID returns the process id.
func (p *Process) PID() int32 {
	return p.pid.ID
}

// registerEntry assigns an address in the simulated text segment.
func (pi *processInner) registerEntry(fn Entry) uint64 {
	addr := pi.nextEntryAddr
	pi.nextEntryAddr += 16
	pi.entries[addr] = fn
	return addr
}

// RegisterEntry exposes entry registration to the user-side runtime;
// thread_create and fork take entry addresses, as the real ABI does.
func (p *Process) RegisterEntry(fn Entry) uint64 {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	return pi.registerEntry(fn)
}

func (p *Process) lookupEntry(addr uint64) Entry {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	fn, ok := pi.entries[addr]
	if !ok {
		panic("jump to an unmapped entry address")
	}
	return fn
}

// Token returns the process's address-space token.
func (p *Process) Token() *mm.PageTable {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	return pi.memorySet.Token()
}

// IsZombie reports whether the process has exited.
func (p *Process) IsZombie() bool {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	return pi.isZombie
}

// ExitCode returns the recorded exit code.
func (p *Process) ExitCode() int32 {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	return pi.exitCode
}

// SetDeadlockDetect turns the availability check on or off.
func (p *Process) SetDeadlockDetect(on bool) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.deadlockDetect = on
}

// Mmap maps [start, start+length) with the requested port permissions.
// start must be page-aligned, the port mask valid, and every page in
// the range unmapped; there is no partial success.
func (p *Process) Mmap(start memarch.VirtAddr, length uint64, port uint64) error {
	if !start.Aligned() {
		return kernelerr.ErrInvalid
	}
	at, ok := memarch.AccessFromPort(port)
	if !ok {
		return kernelerr.ErrInvalid
	}
	if length == 0 {
		return nil
	}
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if err := pi.memorySet.InsertFramedArea(start, start+memarch.VirtAddr(length), at); err != nil {
		if err == kernelerr.ErrNoMemory {
			return err
		}
		return kernelerr.ErrInvalid
	}
	return nil
}

// Munmap unmaps [start, start+length). Every page in the range must be
// mapped; a partial match fails with no effect.
func (p *Process) Munmap(start memarch.VirtAddr, length uint64) error {
	if !start.Aligned() {
		return kernelerr.ErrInvalid
	}
	if length == 0 {
		return nil
	}
	pi := p.inner.Borrow()
	defer p.inner.Release()
	if err := pi.memorySet.RemoveFramedPages(start, start+memarch.VirtAddr(length)); err != nil {
		return kernelerr.ErrInvalid
	}
	return nil
}

// Sbrk grows or shrinks the heap by delta bytes, refusing to shrink
// below the heap bottom. It returns the previous program break.
func (p *Process) Sbrk(delta int64) (memarch.VirtAddr, error) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	oldBrk := pi.programBrk
	newBrk := int64(oldBrk) + delta
	if newBrk < int64(pi.heapBottom) {
		return 0, kernelerr.ErrInvalid
	}
	if delta > 0 {
		if err := pi.memorySet.AppendTo(pi.heapBottom, memarch.VirtAddr(newBrk)); err != nil {
			return 0, err
		}
	} else if delta < 0 {
		if err := pi.memorySet.ShrinkTo(pi.heapBottom, memarch.VirtAddr(newBrk)); err != nil {
			return 0, err
		}
	}
	pi.programBrk = memarch.VirtAddr(newBrk)
	return oldBrk, nil
}

// ensureSyncRows makes sure the deadlock matrices have a zeroed row
// for tid, growing or resetting as needed.
func (pi *processInner) ensureSyncRows(tid int) {
	for len(pi.mutexAllocation) <= tid {
		pi.mutexAllocation = append(pi.mutexAllocation, make([]int64, len(pi.mutexAvailable)))
		pi.mutexNeed = append(pi.mutexNeed, make([]int64, len(pi.mutexAvailable)))
	}
	for len(pi.semAllocation) <= tid {
		pi.semAllocation = append(pi.semAllocation, make([]int64, len(pi.semAvailable)))
		pi.semNeed = append(pi.semNeed, make([]int64, len(pi.semAvailable)))
	}
	pi.mutexAllocation[tid] = make([]int64, len(pi.mutexAvailable))
	pi.mutexNeed[tid] = make([]int64, len(pi.mutexAvailable))
	pi.semAllocation[tid] = make([]int64, len(pi.semAvailable))
	pi.semNeed[tid] = make([]int64, len(pi.semAvailable))
}

// clearSyncRows zeroes a retiring thread's rows so a recycled tid
// starts from clean vectors.
func (pi *processInner) clearSyncRows(tid int) {
	if tid < len(pi.mutexAllocation) {
		for j := range pi.mutexAllocation[tid] {
			pi.mutexAllocation[tid][j] = 0
			pi.mutexNeed[tid][j] = 0
		}
	}
	if tid < len(pi.semAllocation) {
		for j := range pi.semAllocation[tid] {
			pi.semAllocation[tid][j] = 0
			pi.semNeed[tid][j] = 0
		}
	}
}
