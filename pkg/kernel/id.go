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
	"github.com/osprey-os/osprey/pkg/memarch"
)

// recycleAllocator hands out dense integer ids, reusing released ones
// before extending the range.
type recycleAllocator struct {
	current  int
	recycled []int
}

func (a *recycleAllocator) alloc() int {
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	id := a.current
	a.current++
	return id
}

func (a *recycleAllocator) dealloc(id int) {
	a.recycled = append(a.recycled, id)
}

// PIDHandle owns one process id for the life of its process.
type PIDHandle struct {
	ID int32

	released bool
}

var pidAllocator = cell.New("kernel.pidAllocator", recycleAllocator{})

func allocPID() *PIDHandle {
	a := pidAllocator.Borrow()
	defer pidAllocator.Release()
	return &PIDHandle{ID: int32(a.alloc())}
}

// Release returns the pid to the pool.
func (h *PIDHandle) Release() {
	if h.released {
		panic("pid released twice")
	}
	h.released = true
	a := pidAllocator.Borrow()
	defer pidAllocator.Release()
	a.dealloc(int(h.ID))
}

// Kernel stack geometry, in kernel address space.
const (
	kernelStackSize = 2 * memarch.PageSize
	kernelStackTop  = uint64(memarch.TrampolineBase)
)

// KernelStack is a task's exclusively owned kernel stack region.
type KernelStack struct {
	id int
}

var kstackAllocator = cell.New("kernel.kstackAllocator", recycleAllocator{})

func allocKernelStack() *KernelStack {
	a := kstackAllocator.Borrow()
	defer kstackAllocator.Release()
	return &KernelStack{id: a.alloc()}
}

// Top returns the stack's highest address, the value loaded into the
// trap context's kernel stack pointer.
func (k *KernelStack) Top() uint64 {
	return kernelStackTop - uint64(k.id)*(kernelStackSize+memarch.PageSize)
}

func (k *KernelStack) release() {
	a := kstackAllocator.Borrow()
	defer kstackAllocator.Release()
	a.dealloc(k.id)
}
