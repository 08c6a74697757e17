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

// Mutex is the capability set behind a slot in the mutex table. The
// accounted variants additionally keep the deadlock-detection vectors
// current, taking the mutex id to address the resource column.
type Mutex interface {
	Lock(t *Task)
	Unlock(t *Task)
	LockAccounted(t *Task, id int)
	UnlockAccounted(t *Task, id int)
}

// SpinMutex is a mutex without a wait queue: a contended lock yields
// and retries. No fairness, no ownership tracking.
type SpinMutex struct {
	locked *cell.Cell[bool]
}

// NewSpinMutex returns an unlocked SpinMutex.
func NewSpinMutex() *SpinMutex {
	return &SpinMutex{locked: cell.New("kernel.spinMutex", false)}
}

// Lock implements Mutex.Lock.
func (m *SpinMutex) Lock(t *Task) {
	for {
		locked := m.locked.Borrow()
		if *locked {
			m.locked.Release()
			SuspendCurrentAndRunNext()
			continue
		}
		*locked = true
		m.locked.Release()
		return
	}
}

// Unlock implements Mutex.Unlock.
func (m *SpinMutex) Unlock(t *Task) {
	locked := m.locked.Borrow()
	*locked = false
	m.locked.Release()
}

// LockAccounted implements Mutex.LockAccounted.
func (m *SpinMutex) LockAccounted(t *Task, id int) {
	m.Lock(t)
	t.process.mutexAcquire(t.TID(), id)
}

// UnlockAccounted implements Mutex.UnlockAccounted.
func (m *SpinMutex) UnlockAccounted(t *Task, id int) {
	t.process.mutexRelease(t.TID(), id)
	m.Unlock(t)
}

// BlockingMutex is a mutex with a strict-FIFO wait queue; unlock with
// waiters hands ownership straight to the head of the queue.
type BlockingMutex struct {
	inner *cell.Cell[blockingMutexInner]
}

type blockingMutexInner struct {
	locked    bool
	waitQueue []*Task
}

// NewBlockingMutex returns an unlocked BlockingMutex.
func NewBlockingMutex() *BlockingMutex {
	return &BlockingMutex{inner: cell.New("kernel.blockingMutex", blockingMutexInner{})}
}

// Lock implements Mutex.Lock.
func (m *BlockingMutex) Lock(t *Task) {
	mi := m.inner.Borrow()
	if mi.locked {
		mi.waitQueue = append(mi.waitQueue, t)
		m.inner.Release()
		BlockCurrentAndRunNext()
		// Ownership was transferred by the unlocker; locked stays set.
		return
	}
	mi.locked = true
	m.inner.Release()
}

// Unlock implements Mutex.Unlock.
func (m *BlockingMutex) Unlock(t *Task) {
	mi := m.inner.Borrow()
	if !mi.locked {
		panic("unlock of an unlocked mutex")
	}
	if len(mi.waitQueue) > 0 {
		next := mi.waitQueue[0]
		mi.waitQueue = mi.waitQueue[1:]
		m.inner.Release()
		WakeupTask(next)
		return
	}
	mi.locked = false
	m.inner.Release()
}

// LockAccounted implements Mutex.LockAccounted. On the blocked path
// the accounting was already moved over by the unlocker's transfer, so
// the woken task takes ownership without touching the vectors.
func (m *BlockingMutex) LockAccounted(t *Task, id int) {
	mi := m.inner.Borrow()
	if mi.locked {
		mi.waitQueue = append(mi.waitQueue, t)
		m.inner.Release()
		BlockCurrentAndRunNext()
		return
	}
	mi.locked = true
	m.inner.Release()
	t.process.mutexAcquire(t.TID(), id)
}

// UnlockAccounted implements Mutex.UnlockAccounted. With a waiter
// queued, the releaser's decrement and the wakee's increment are one
// transaction on the process record, settled before the wakeup, so the
// newly runnable thread observes consistent accounting.
func (m *BlockingMutex) UnlockAccounted(t *Task, id int) {
	mi := m.inner.Borrow()
	if !mi.locked {
		panic("unlock of an unlocked mutex")
	}
	if len(mi.waitQueue) > 0 {
		next := mi.waitQueue[0]
		mi.waitQueue = mi.waitQueue[1:]
		m.inner.Release()
		t.process.mutexTransfer(t.TID(), next.TID(), id)
		WakeupTask(next)
		return
	}
	mi.locked = false
	m.inner.Release()
	t.process.mutexRelease(t.TID(), id)
}

// Deadlock-vector updates for the mutex resource kind. Acquisition and
// release mirror each other; the update always lands before any wakeup
// so a newly runnable thread sees settled counts.

func (p *Process) mutexAcquire(tid, id int) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.mutexAvailable[id]--
	pi.mutexAllocation[tid][id]++
	pi.mutexNeed[tid][id]--
}

func (p *Process) mutexRelease(tid, id int) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.mutexAvailable[id]++
	pi.mutexAllocation[tid][id]--
}

func (p *Process) mutexTransfer(fromTID, toTID, id int) {
	pi := p.inner.Borrow()
	defer p.inner.Release()
	pi.mutexAllocation[fromTID][id]--
	pi.mutexAllocation[toTID][id]++
	pi.mutexNeed[toTID][id]--
}
