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

// Semaphore is a counting semaphore with a strict-FIFO wait queue.
type Semaphore struct {
	inner *cell.Cell[semaphoreInner]
}

type semaphoreInner struct {
	count     int64
	waitQueue []*Task
}

// NewSemaphore returns a semaphore holding resCount units.
func NewSemaphore(resCount int64) *Semaphore {
	return &Semaphore{inner: cell.New("kernel.semaphore", semaphoreInner{count: resCount})}
}

// Down takes one unit, blocking while the count is negative. The
// per-thread allocation moves once the unit is actually held.
func (s *Semaphore) Down(t *Task, id int) {
	si := s.inner.Borrow()
	si.count--
	if si.count < 0 {
		si.waitQueue = append(si.waitQueue, t)
		s.inner.Release()
		BlockCurrentAndRunNext()
	} else {
		s.inner.Release()
	}
	t.process.semAcquire(t.TID(), id)
}

// Up returns one unit and wakes the queue head if anyone waits. The
// accounting settles before the wakeup.
func (s *Semaphore) Up(t *Task, id int) {
	si := s.inner.Borrow()
	si.count++
	var next *Task
	if si.count <= 0 && len(si.waitQueue) > 0 {
		next = si.waitQueue[0]
		si.waitQueue = si.waitQueue[1:]
	}
	s.inner.Release()
	t.process.semRelease(t.TID(), id)
	if next != nil {
		WakeupTask(next)
	}
}

func (p *Process) semAcquire(tid, id int) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.semAvailable[id]--
	pi.semAllocation[tid][id]++
	pi.semNeed[tid][id]--
}

func (p *Process) semRelease(tid, id int) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.semAvailable[id]++
	pi.semAllocation[tid][id]--
}
