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
)

// kernelState holds the machine-wide singletons keyed off the process
// table.
type kernelState struct {
	syscalls *SyscallTable

	// processes indexes every live process by pid.
	processes map[int32]*Process

	initProc *Process

	// taskCount counts threads that have not exited yet; the processor
	// loop stops when it reaches zero.
	taskCount int
}

var kstate = cell.New("kernel.state", kernelState{})

// Init resets every kernel singleton for a fresh machine. Called once
// per boot, before any task exists.
func Init(table *SyscallTable) {
	ks := kstate.Borrow()
	*ks = kernelState{
		syscalls:  table,
		processes: make(map[int32]*Process),
	}
	kstate.Release()

	manager.With(func(tm *taskManager) { *tm = taskManager{} })
	timers.With(func(ts *timerState) { *ts = timerState{} })
	processor.With(func(ps *processorState) { *ps = processorState{} })
	pidAllocator.With(func(a *recycleAllocator) { *a = recycleAllocator{} })
	kstackAllocator.With(func(a *recycleAllocator) { *a = recycleAllocator{} })
	idleCx = newTaskContext()
}

func syscallTable() *SyscallTable {
	ks := kstate.Borrow()
	defer kstate.Release()
	return ks.syscalls
}

func registerProcess(p *Process) {
	ks := kstate.Borrow()
	defer kstate.Release()
	ks.processes[p.PID()] = p
	if ks.initProc == nil {
		ks.initProc = p
	}
}

func unregisterProcess(p *Process) {
	ks := kstate.Borrow()
	defer kstate.Release()
	delete(ks.processes, p.PID())
}

// InitProc returns the first process started on the machine.
func InitProc() *Process {
	ks := kstate.Borrow()
	defer kstate.Release()
	return ks.initProc
}

func incTaskCount() {
	ks := kstate.Borrow()
	defer kstate.Release()
	ks.taskCount++
}

func decTaskCount(n int) {
	ks := kstate.Borrow()
	defer kstate.Release()
	ks.taskCount -= n
}

func taskCountNow() int {
	ks := kstate.Borrow()
	defer kstate.Release()
	return ks.taskCount
}
