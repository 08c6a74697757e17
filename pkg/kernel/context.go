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

// taskContext is the saved execution state of a task between context
// switches. The machine-level register snapshot becomes a parked
// goroutine: handing the token through the gate resumes the peer,
// waiting on one's own gate suspends. Exactly one goroutine holds the
// core at any time, which is what makes the cell discipline sound.
type taskContext struct {
	gate chan struct{}
}

func newTaskContext() taskContext {
	return taskContext{gate: make(chan struct{}, 1)}
}

// switchTo suspends cur and resumes next. Callers must have released
// every cell borrow first: the core changes hands on the send.
func switchTo(cur, next *taskContext) {
	next.gate <- struct{}{}
	<-cur.gate
}

// handoff resumes next without suspending the caller. Used on the exit
// path, where the calling goroutine is about to return for good and
// must not touch kernel state after the send.
func handoff(next *taskContext) {
	next.gate <- struct{}{}
}
