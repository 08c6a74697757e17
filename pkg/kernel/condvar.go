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

// Condvar is a condition variable with a strict-FIFO wait queue.
type Condvar struct {
	inner *cell.Cell[condvarInner]
}

type condvarInner struct {
	waitQueue []*Task
}

// NewCondvar returns an empty condition variable.
func NewCondvar() *Condvar {
	return &Condvar{inner: cell.New("kernel.condvar", condvarInner{})}
}

// Signal moves one waiter to Ready. The signaller keeps running until
// its next suspension.
func (c *Condvar) Signal() {
	ci := c.inner.Borrow()
	var next *Task
	if len(ci.waitQueue) > 0 {
		next = ci.waitQueue[0]
		ci.waitQueue = ci.waitQueue[1:]
	}
	c.inner.Release()
	if next != nil {
		WakeupTask(next)
	}
}

// Wait releases mutex, blocks until signalled, and reacquires mutex on
// the way out.
func (c *Condvar) Wait(t *Task, mutex Mutex) {
	mutex.Unlock(t)
	ci := c.inner.Borrow()
	ci.waitQueue = append(ci.waitQueue, t)
	c.inner.Release()
	BlockCurrentAndRunNext()
	mutex.Lock(t)
}
