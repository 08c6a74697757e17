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

import "github.com/osprey-os/osprey/pkg/kernelerr"

// MutexCreate installs a new mutex, reusing a free slot before
// extending the table, and seeds its availability column with one
// unit.
func (p *Process) MutexCreate(blocking bool) int {
	var m Mutex
	if blocking {
		m = NewBlockingMutex()
	} else {
		m = NewSpinMutex()
	}
	pi := p.inner.Borrow()
	defer p.inner.Release()
	for id, slot := range pi.mutexes {
		if slot == nil {
			pi.mutexes[id] = m
			pi.mutexAvailable[id] = 1
			return id
		}
	}
	pi.mutexes = append(pi.mutexes, m)
	pi.mutexAvailable = append(pi.mutexAvailable, 1)
	for i := range pi.mutexAllocation {
		pi.mutexAllocation[i] = append(pi.mutexAllocation[i], 0)
		pi.mutexNeed[i] = append(pi.mutexNeed[i], 0)
	}
	return len(pi.mutexes) - 1
}

// MutexLock records the pending request, runs the availability check
// when detection is enabled, and acquires. A refused request restores
// the need counter and fails without blocking.
func (p *Process) MutexLock(t *Task, id int) error {
	tid := t.TID()
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.mutexes) || pi.mutexes[id] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	pi.mutexNeed[tid][id]++
	if pi.deadlockDetect {
		if !bankerSafe(pi.mutexAvailable, pi.mutexAllocation, pi.mutexNeed) {
			pi.mutexNeed[tid][id]--
			p.inner.Release()
			return kernelerr.ErrDeadlock
		}
	}
	m := pi.mutexes[id]
	p.inner.Release()
	m.LockAccounted(t, id)
	return nil
}

// MutexUnlock releases the mutex.
func (p *Process) MutexUnlock(t *Task, id int) error {
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.mutexes) || pi.mutexes[id] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	m := pi.mutexes[id]
	p.inner.Release()
	m.UnlockAccounted(t, id)
	return nil
}

// SemaphoreCreate installs a new semaphore with resCount units,
// seeding its availability column.
func (p *Process) SemaphoreCreate(resCount int64) int {
	s := NewSemaphore(resCount)
	pi := p.inner.Borrow()
	defer p.inner.Release()
	for id, slot := range pi.semaphores {
		if slot == nil {
			pi.semaphores[id] = s
			pi.semAvailable[id] = resCount
			return id
		}
	}
	pi.semaphores = append(pi.semaphores, s)
	pi.semAvailable = append(pi.semAvailable, resCount)
	for i := range pi.semAllocation {
		pi.semAllocation[i] = append(pi.semAllocation[i], 0)
		pi.semNeed[i] = append(pi.semNeed[i], 0)
	}
	return len(pi.semaphores) - 1
}

// SemaphoreDown records the pending request, runs the availability
// check when detection is enabled, and takes a unit.
func (p *Process) SemaphoreDown(t *Task, id int) error {
	tid := t.TID()
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.semaphores) || pi.semaphores[id] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	pi.semNeed[tid][id]++
	if pi.deadlockDetect {
		if !bankerSafe(pi.semAvailable, pi.semAllocation, pi.semNeed) {
			pi.semNeed[tid][id]--
			p.inner.Release()
			return kernelerr.ErrDeadlock
		}
	}
	s := pi.semaphores[id]
	p.inner.Release()
	s.Down(t, id)
	return nil
}

// SemaphoreUp returns a unit.
func (p *Process) SemaphoreUp(t *Task, id int) error {
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.semaphores) || pi.semaphores[id] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	s := pi.semaphores[id]
	p.inner.Release()
	s.Up(t, id)
	return nil
}

// CondvarCreate installs a new condition variable.
func (p *Process) CondvarCreate() int {
	cv := NewCondvar()
	pi := p.inner.Borrow()
	defer p.inner.Release()
	for id, slot := range pi.condvars {
		if slot == nil {
			pi.condvars[id] = cv
			return id
		}
	}
	pi.condvars = append(pi.condvars, cv)
	return len(pi.condvars) - 1
}

// CondvarSignal wakes one waiter.
func (p *Process) CondvarSignal(id int) error {
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.condvars) || pi.condvars[id] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	cv := pi.condvars[id]
	p.inner.Release()
	cv.Signal()
	return nil
}

// CondvarWait atomically releases the mutex, blocks, and reacquires.
func (p *Process) CondvarWait(t *Task, id, mutexID int) error {
	pi := p.inner.Borrow()
	if id < 0 || id >= len(pi.condvars) || pi.condvars[id] == nil ||
		mutexID < 0 || mutexID >= len(pi.mutexes) || pi.mutexes[mutexID] == nil {
		p.inner.Release()
		return kernelerr.ErrInvalid
	}
	cv := pi.condvars[id]
	m := pi.mutexes[mutexID]
	p.inner.Release()
	cv.Wait(t, m)
	return nil
}
