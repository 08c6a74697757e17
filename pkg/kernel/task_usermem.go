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
	"time"

	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/mm"
)

// The Task doubles as the context of everything running on its behalf;
// files and lower layers fish the capabilities they need out of it.

// Deadline implements context.Context.Deadline.
func (t *Task) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Done implements context.Context.Done.
func (t *Task) Done() <-chan struct{} {
	return nil
}

// Err implements context.Context.Err.
func (t *Task) Err() error {
	return nil
}

// Value implements context.Context.Value.
func (t *Task) Value(key any) any {
	switch key {
	case context.CtxYielder:
		return context.Yielder(t)
	case context.CtxIdentity:
		return context.Identity(t)
	default:
		return nil
	}
}

// CopyOutBytes stores b at va in the task's address space, the user
// side of the simulation's memory accesses.
func (t *Task) CopyOutBytes(va memarch.VirtAddr, b []byte) bool {
	return mm.CopyOutBytes(t.process.Token(), va, b) == nil
}

// CopyInBytes loads n bytes at va in the task's address space.
func (t *Task) CopyInBytes(va memarch.VirtAddr, n int) ([]byte, bool) {
	b, err := mm.CopyInBytes(t.process.Token(), va, n)
	return b, err == nil
}

// ReadWord loads one word at va.
func (t *Task) ReadWord(va memarch.VirtAddr) (uint64, bool) {
	pa, ok := mm.VaddrToPaddr(t.process.Token(), va)
	if !ok {
		return 0, false
	}
	return mm.ReadScalar64(pa), true
}

// StageBytes places b on the thread's user stack region and returns
// its virtual address. User programs stage syscall buffers with it.
func (t *Task) StageBytes(b []byte) memarch.VirtAddr {
	ti := t.inner.Borrow()
	res := ti.res
	if res == nil {
		t.inner.Release()
		panic("staging on an exited thread")
	}
	if ti.stageOff+uint64(len(b)) > UserStackSize {
		ti.stageOff = 0
	}
	va := res.ustackBottom() + memarch.VirtAddr(ti.stageOff)
	ti.stageOff += uint64(len(b))
	// Word-align the next staging slot.
	ti.stageOff = (ti.stageOff + 7) &^ 7
	t.inner.Release()
	if !t.CopyOutBytes(va, b) {
		panic("stage write did not translate")
	}
	return va
}

// StageString stages a NUL-terminated string.
func (t *Task) StageString(s string) memarch.VirtAddr {
	return t.StageBytes(append([]byte(s), 0))
}

// StageZero stages n zero bytes, a scratch output buffer.
func (t *Task) StageZero(n int) memarch.VirtAddr {
	return t.StageBytes(make([]byte, n))
}
