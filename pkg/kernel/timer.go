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
	"sort"

	"github.com/osprey-os/osprey/pkg/cell"
)

// The machine clock is virtual: one tick per schedule point, plus a
// jump to the next timer expiry when every task sleeps. That keeps
// runs deterministic while preserving the timing relations sleep and
// task_info observe.
type timerEntry struct {
	expireMS int64
	task     *Task
}

type timerState struct {
	clockMS int64

	// entries is kept sorted by expiry.
	entries []timerEntry
}

var timers = cell.New("kernel.timers", timerState{})

// GetTimeMS returns the machine clock in milliseconds.
func GetTimeMS() int64 {
	ts := timers.Borrow()
	defer timers.Release()
	return ts.clockMS
}

// GetTimeUS returns the machine clock in microseconds.
func GetTimeUS() int64 {
	return GetTimeMS() * 1000
}

func tickClock() {
	ts := timers.Borrow()
	defer timers.Release()
	ts.clockMS++
}

// AddTimer installs a one-shot wakeup for task at expireMS.
func AddTimer(expireMS int64, task *Task) {
	ts := timers.Borrow()
	defer timers.Release()
	ts.entries = append(ts.entries, timerEntry{expireMS: expireMS, task: task})
	sort.SliceStable(ts.entries, func(i, j int) bool {
		return ts.entries[i].expireMS < ts.entries[j].expireMS
	})
}

// removeTimersFor drops pending timers of a task that is going away.
func removeTimersFor(task *Task) {
	ts := timers.Borrow()
	defer timers.Release()
	kept := ts.entries[:0]
	for _, e := range ts.entries {
		if e.task != task {
			kept = append(kept, e)
		}
	}
	ts.entries = kept
}

// wakeDueTimers wakes every task whose timer expired. Wakeups happen
// after the timer borrow is released.
func wakeDueTimers() {
	ts := timers.Borrow()
	var due []*Task
	i := 0
	for ; i < len(ts.entries) && ts.entries[i].expireMS <= ts.clockMS; i++ {
		due = append(due, ts.entries[i].task)
	}
	ts.entries = append([]timerEntry{}, ts.entries[i:]...)
	timers.Release()
	for _, t := range due {
		WakeupTask(t)
	}
}

// jumpToNextTimer advances the clock to the earliest pending expiry.
// It returns false when no timer is pending.
func jumpToNextTimer() bool {
	ts := timers.Borrow()
	defer timers.Release()
	if len(ts.entries) == 0 {
		return false
	}
	if next := ts.entries[0].expireMS; next > ts.clockMS {
		ts.clockMS = next
	}
	return true
}
