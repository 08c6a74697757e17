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
	"testing"

	"github.com/osprey-os/osprey/pkg/cell"
)

func newSchedTask(prio uint64) *Task {
	return &Task{
		cx: newTaskContext(),
		inner: cell.New("kernel.taskInner", taskInner{
			status:   TaskStatusReady,
			prio:     prio,
			firstRun: -1,
		}),
	}
}

func (t *Task) strideNow() uint64 {
	ti := t.inner.Borrow()
	defer t.inner.Release()
	return ti.stride
}

func TestFetchPrefersMinStride(t *testing.T) {
	var tm taskManager
	a := newSchedTask(DefaultPrio)
	b := newSchedTask(DefaultPrio)
	bi := b.inner.Borrow()
	bi.stride = 10
	b.inner.Release()
	tm.add(b)
	tm.add(a)
	if got := tm.fetch(); got != a {
		t.Errorf("fetch returned the larger-stride task")
	}
}

func TestFetchBreaksTiesByInsertionOrder(t *testing.T) {
	var tm taskManager
	a := newSchedTask(DefaultPrio)
	b := newSchedTask(DefaultPrio)
	c := newSchedTask(DefaultPrio)
	tm.add(a)
	tm.add(b)
	tm.add(c)
	if got := tm.fetch(); got != a {
		t.Fatalf("first fetch skipped the earliest-queued task")
	}
	if got := tm.fetch(); got != b {
		t.Fatalf("second fetch skipped the next-queued task")
	}
	if got := tm.fetch(); got != c {
		t.Fatalf("third fetch out of order")
	}
	if got := tm.fetch(); got != nil {
		t.Fatalf("fetch from an empty queue returned %v", got)
	}
}

func TestFetchChargesStride(t *testing.T) {
	var tm taskManager
	a := newSchedTask(8)
	tm.add(a)
	tm.fetch()
	if got := a.strideNow(); got != BigStride/8 {
		t.Errorf("stride = %d, want %d", got, BigStride/8)
	}
}

func TestStrideShareTracksPriority(t *testing.T) {
	// A(prio=8) and B(prio=16) yielding in a loop: over a long run B is
	// selected about twice as often as A.
	var tm taskManager
	a := newSchedTask(8)
	b := newSchedTask(16)
	tm.add(a)
	tm.add(b)
	counts := map[*Task]int{}
	const rounds = 3 * BigStride / (BigStride / 16) // 3*BigStride of B-sized passes
	for i := 0; i < rounds; i++ {
		got := tm.fetch()
		counts[got]++
		tm.add(got)
	}
	ratio := float64(counts[b]) / float64(counts[a])
	if ratio < 1.9 || ratio > 2.1 {
		t.Errorf("selection ratio B/A = %.3f (A=%d, B=%d), want about 2", ratio, counts[a], counts[b])
	}
}

func TestRemoveDropsTask(t *testing.T) {
	var tm taskManager
	a := newSchedTask(DefaultPrio)
	b := newSchedTask(DefaultPrio)
	tm.add(a)
	tm.add(b)
	tm.remove(a)
	if got := tm.fetch(); got != b {
		t.Errorf("fetch after remove returned the removed task")
	}
	if got := tm.fetch(); got != nil {
		t.Errorf("queue not empty after removing both tasks")
	}
}
