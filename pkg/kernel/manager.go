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

import "github.com/osprey-os/osprey/pkg/cell"

// taskManager owns the single global ready queue of runnable tasks.
type taskManager struct {
	readyQueue []*Task
}

var manager = cell.New("kernel.taskManager", taskManager{})

// add enqueues a Ready task.
func (tm *taskManager) add(t *Task) {
	tm.readyQueue = append(tm.readyQueue, t)
}

// fetch dequeues the minimum-stride task, breaking ties by insertion
// order, and charges it one pass of BigStride/prio. Returns nil if the
// queue is empty.
func (tm *taskManager) fetch() *Task {
	if len(tm.readyQueue) == 0 {
		return nil
	}
	idx := 0
	minStride := uint64(0)
	for i, t := range tm.readyQueue {
		ti := t.inner.Borrow()
		stride := ti.stride
		t.inner.Release()
		if i == 0 || stride < minStride {
			minStride = stride
			idx = i
		}
	}
	t := tm.readyQueue[idx]
	tm.readyQueue = append(tm.readyQueue[:idx], tm.readyQueue[idx+1:]...)
	ti := t.inner.Borrow()
	ti.stride += BigStride / ti.prio
	t.inner.Release()
	return t
}

// remove drops the task from the ready queue if present.
func (tm *taskManager) remove(target *Task) {
	for i, t := range tm.readyQueue {
		if t == target {
			tm.readyQueue = append(tm.readyQueue[:i], tm.readyQueue[i+1:]...)
			return
		}
	}
}

// addTask enqueues a Ready task on the global queue.
func addTask(t *Task) {
	tm := manager.Borrow()
	defer manager.Release()
	tm.add(t)
}

// fetchTask dequeues the next task by stride order.
func fetchTask() *Task {
	tm := manager.Borrow()
	defer manager.Release()
	return tm.fetch()
}

// removeInactiveTask purges a task that exited or whose process died
// from the ready queue and the timer list.
func removeInactiveTask(t *Task) {
	tm := manager.Borrow()
	tm.remove(t)
	manager.Release()
	removeTimersFor(t)
}

// WakeupTask transitions a Blocked task to Ready and enqueues it.
func WakeupTask(t *Task) {
	t.setStatus(TaskStatusReady)
	addTask(t)
}
