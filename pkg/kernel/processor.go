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
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/sbi"
)

// processor is the single core: the idle control flow that fetches the
// next task and switches into it.
type processorState struct {
	current *Task
}

var (
	processor = cell.New("kernel.processor", processorState{})

	// idleCx is the idle loop's own context; tasks switch back to it
	// at every suspension point.
	idleCx taskContext
)

// CurrentTask returns the task holding the core, or nil from the idle
// loop.
func CurrentTask() *Task {
	ps := processor.Borrow()
	defer processor.Release()
	return ps.current
}

// CurrentProcess returns the process of the current task.
func CurrentProcess() *Process {
	t := CurrentTask()
	if t == nil {
		return nil
	}
	return t.process
}

func takeCurrentTask() *Task {
	ps := processor.Borrow()
	defer processor.Release()
	t := ps.current
	ps.current = nil
	return t
}

// RunTasks is the processor loop. It fetches by stride order, runs the
// task until its next suspension, and stops once the machine shuts
// down or the last task exits.
func RunTasks() {
	for {
		if sbi.IsShutdown() {
			return
		}
		wakeDueTimers()
		task := fetchTask()
		if task == nil {
			if taskCountNow() == 0 {
				log.Debugf("kernel: all tasks completed")
				return
			}
			if jumpToNextTimer() {
				continue
			}
			panic("kernel: tasks blocked with no pending timer")
		}
		tickClock()
		ti := task.inner.Borrow()
		ti.status = TaskStatusRunning
		if ti.firstRun < 0 {
			ti.firstRun = peekClock()
		}
		task.inner.Release()
		ps := processor.Borrow()
		ps.current = task
		processor.Release()
		switchTo(&idleCx, &task.cx)
	}
}

func peekClock() int64 {
	ts := timers.Borrow()
	defer timers.Release()
	return ts.clockMS
}

// schedule returns the core to the idle loop. Callers hold no cell
// borrows.
func schedule(cur *taskContext) {
	switchTo(cur, &idleCx)
}

// SuspendCurrentAndRunNext marks the current task Ready, pushes it
// back on the queue, and switches to the next fetched task.
func SuspendCurrentAndRunNext() {
	t := takeCurrentTask()
	t.setStatus(TaskStatusReady)
	addTask(t)
	schedule(&t.cx)
}

// BlockCurrentAndRunNext marks the current task Blocked, leaves it off
// the queue, and switches away. Something else wakes it later.
func BlockCurrentAndRunNext() {
	t := takeCurrentTask()
	t.setStatus(TaskStatusBlocked)
	schedule(&t.cx)
}

// Yield implements context.Yielder on behalf of the task: files that
// must wait call it between cell borrows.
func (t *Task) Yield() {
	SuspendCurrentAndRunNext()
}

// Sleep blocks the task until ms milliseconds from now.
func Sleep(ms int64) {
	t := CurrentTask()
	AddTimer(GetTimeMS()+ms, t)
	BlockCurrentAndRunNext()
}
