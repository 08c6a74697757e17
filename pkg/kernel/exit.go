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
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/vfs"
)

// exitCurrentAndRunNext tears the current task down and hands the core
// back to the idle loop for good. Runs on the task's goroutine with
// the user frames already unwound.
//
// A thread exit releases the thread's user resources and keeps the
// zombie in the task table until waittid reaps it. The main thread's
// exit ends the whole process: every sibling is torn down, children
// are reparented to the init process, descriptors close, and the
// address space is recycled.
func exitCurrentAndRunNext(t *Task) {
	takeCurrentTask()
	proc := t.process

	ti := t.inner.Borrow()
	code := ti.pendingExit
	res := ti.res
	ti.res = nil
	ti.status = TaskStatusZombie
	exited := code
	ti.exitCode = &exited
	t.inner.Release()

	tid := res.tid
	log.Debugf("kernel: pid[%d] tid[%d] exit with code %d", proc.PID(), tid, code)

	pi := proc.inner.Borrow()
	if tid == 0 {
		pi.isZombie = true
		pi.exitCode = code
		init := InitProc()
		children := pi.children
		pi.children = nil

		extinct := 1
		for _, sib := range pi.tasks {
			if sib == nil || sib == t {
				continue
			}
			si := sib.inner.Borrow()
			if si.status != TaskStatusZombie {
				extinct++
			}
			si.res = nil
			si.status = TaskStatusZombie
			sib.inner.Release()
			removeInactiveTask(sib)
			sib.kstack.release()
		}
		pi.tasks = nil

		for fd, e := range pi.fdTable {
			if e != nil {
				vfs.Release(e.File)
				pi.fdTable[fd] = nil
			}
		}
		pi.mutexes = nil
		pi.semaphores = nil
		pi.condvars = nil

		// Sibling stacks and trap pages go with the rest of the
		// address space.
		pi.memorySet.Recycle()
		proc.inner.Release()

		for _, ch := range children {
			ci := ch.inner.Borrow()
			ci.parent = init
			ch.inner.Release()
			if init != nil && init != proc {
				ii := init.inner.Borrow()
				ii.children = append(ii.children, ch)
				init.inner.Release()
			}
		}
		unregisterProcess(proc)
		decTaskCount(extinct)
	} else {
		res.deallocUserRes(pi)
		pi.clearSyncRows(tid)
		proc.inner.Release()
		decTaskCount(1)
	}

	t.kstack.release()
	handoff(&idleCx)
}
