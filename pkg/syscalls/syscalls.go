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

// Package syscalls is the interface from user programs to the kernel:
// it populates the dispatch table with the handlers implementing the
// syscall surface.
package syscalls

import (
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// Supported returns a fully supported syscall table entry.
func Supported(name string, fn kernel.SyscallFn) kernel.Syscall {
	return kernel.Syscall{Name: name, Fn: fn}
}

// Table builds the syscall dispatch table.
func Table() *kernel.SyscallTable {
	return kernel.NewSyscallTable(map[uintptr]kernel.Syscall{
		sysabi.SysDup:                  Supported("sys_dup", Dup),
		sysabi.SysUnlinkat:             Supported("sys_unlinkat", Unlinkat),
		sysabi.SysLinkat:               Supported("sys_linkat", Linkat),
		sysabi.SysOpen:                 Supported("sys_open", Open),
		sysabi.SysClose:                Supported("sys_close", Close),
		sysabi.SysPipe:                 Supported("sys_pipe", Pipe),
		sysabi.SysRead:                 Supported("sys_read", Read),
		sysabi.SysWrite:                Supported("sys_write", Write),
		sysabi.SysFstat:                Supported("sys_fstat", Fstat),
		sysabi.SysExit:                 Supported("sys_exit", Exit),
		sysabi.SysSleep:                Supported("sys_sleep", Sleep),
		sysabi.SysYield:                Supported("sys_yield", Yield),
		sysabi.SysSetPriority:          Supported("sys_set_priority", SetPriority),
		sysabi.SysGetTime:              Supported("sys_get_time", GetTime),
		sysabi.SysGetpid:               Supported("sys_getpid", Getpid),
		sysabi.SysSbrk:                 Supported("sys_sbrk", Sbrk),
		sysabi.SysMunmap:               Supported("sys_munmap", Munmap),
		sysabi.SysFork:                 Supported("sys_fork", Fork),
		sysabi.SysExec:                 Supported("sys_exec", Exec),
		sysabi.SysMmap:                 Supported("sys_mmap", Mmap),
		sysabi.SysWaitpid:              Supported("sys_waitpid", Waitpid),
		sysabi.SysSpawn:                Supported("sys_spawn", Spawn),
		sysabi.SysTaskInfo:             Supported("sys_task_info", TaskInfo),
		sysabi.SysEnableDeadlockDetect: Supported("sys_enable_deadlock_detect", EnableDeadlockDetect),
		sysabi.SysThreadCreate:         Supported("sys_thread_create", ThreadCreate),
		sysabi.SysGettid:               Supported("sys_gettid", Gettid),
		sysabi.SysWaittid:              Supported("sys_waittid", Waittid),
		sysabi.SysMutexCreate:          Supported("sys_mutex_create", MutexCreate),
		sysabi.SysMutexLock:            Supported("sys_mutex_lock", MutexLock),
		sysabi.SysMutexUnlock:          Supported("sys_mutex_unlock", MutexUnlock),
		sysabi.SysSemaphoreCreate:      Supported("sys_semaphore_create", SemaphoreCreate),
		sysabi.SysSemaphoreUp:          Supported("sys_semaphore_up", SemaphoreUp),
		sysabi.SysSemaphoreDown:        Supported("sys_semaphore_down", SemaphoreDown),
		sysabi.SysCondvarCreate:        Supported("sys_condvar_create", CondvarCreate),
		sysabi.SysCondvarSignal:        Supported("sys_condvar_signal", CondvarSignal),
		sysabi.SysCondvarWait:          Supported("sys_condvar_wait", CondvarWait),
	})
}
