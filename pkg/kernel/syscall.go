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

	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/log"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// SyscallControl alters control flow after a handler returns instead
// of delivering a plain return value.
type SyscallControl struct {
	kind int
}

const (
	ctrlKindExit = iota
	ctrlKindExec
)

// Control values a handler may return.
var (
	// CtrlDoExit unwinds the task's user frames and runs the exit
	// path. The handler stores the exit code first.
	CtrlDoExit = &SyscallControl{kind: ctrlKindExit}

	// CtrlRestart unwinds the user frames and re-enters user mode at
	// the trap context, which the handler has repointed (exec).
	CtrlRestart = &SyscallControl{kind: ctrlKindExec}
)

// SyscallFn is a syscall handler.
type SyscallFn func(t *Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *SyscallControl, error)

// Syscall is one syscall table entry.
type Syscall struct {
	Name string
	Fn   SyscallFn
}

// SyscallTable maps syscall numbers to handlers.
type SyscallTable struct {
	table map[uintptr]Syscall
}

// NewSyscallTable wraps a handler map.
func NewSyscallTable(table map[uintptr]Syscall) *SyscallTable {
	return &SyscallTable{table: table}
}

// Lookup returns the entry for sysno.
func (st *SyscallTable) Lookup(sysno uintptr) (Syscall, bool) {
	sc, ok := st.table[sysno]
	return sc, ok
}

// Walk calls f for every entry, in syscall-number order.
func (st *SyscallTable) Walk(f func(sysno uintptr, sc Syscall)) {
	nums := make([]uintptr, 0, len(st.table))
	for n := range st.table {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		f(n, st.table[n])
	}
}

// Unwind sentinels thrown through the user frames by Syscall.
type (
	exitUnwind struct{}
	execUnwind struct{}
)

// Syscall is the trap from user mode: it dispatches sysno, accounts
// the call, and either returns the handler's value or unwinds the user
// frames when the handler requests a control transfer.
func (t *Task) Syscall(sysno uintptr, args ...uint64) int64 {
	ti := t.inner.Borrow()
	if int(sysno) < len(ti.syscallCounts) {
		ti.syscallCounts[sysno]++
	}
	t.inner.Release()

	sc, ok := syscallTable().Lookup(sysno)
	if !ok {
		log.Warningf("kernel: pid[%d] unsupported syscall %d", t.PID(), sysno)
		return kernelerr.ReturnValue(kernelerr.ErrNoSys)
	}
	ret, ctl, err := sc.Fn(t, sysno, sysabi.Args(args...))
	if err != nil {
		log.Debugf("kernel: pid[%d] tid[%d] %s = %v", t.PID(), t.TID(), sc.Name, err)
		return kernelerr.ReturnValue(err)
	}
	if ctl != nil {
		switch ctl.kind {
		case ctrlKindExit:
			panic(exitUnwind{})
		case ctrlKindExec:
			panic(execUnwind{})
		}
	}
	return ret
}
