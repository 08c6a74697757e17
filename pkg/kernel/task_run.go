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

type runAction int

const (
	actionExit runAction = iota
	actionRestart
)

// start launches the task's goroutine, parked until the scheduler
// first switches to it.
func (t *Task) start() {
	go t.run()
}

// run is the trap-return loop: enter user mode at the trap context,
// and when the user frames unwind, either restart (exec) or tear the
// thread down.
func (t *Task) run() {
	<-t.cx.gate
	for {
		if t.runUser() == actionRestart {
			continue
		}
		exitCurrentAndRunNext(t)
		// The core has been handed off; this goroutine is done.
		return
	}
}

// runUser calls the entry the trap context points at and converts the
// unwind that ends it into a run action. A plain return from the entry
// is an exit with code 0.
func (t *Task) runUser() (action runAction) {
	defer func() {
		switch r := recover(); r.(type) {
		case nil:
		case exitUnwind:
			action = actionExit
		case execUnwind:
			action = actionRestart
		default:
			panic(r)
		}
	}()
	cx := t.trapContext()
	fn := t.process.lookupEntry(cx.SEPC)
	fn(t, cx.X[10])
	ti := t.inner.Borrow()
	ti.pendingExit = 0
	t.inner.Release()
	return actionExit
}
