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

package syscalls

import (
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// MutexCreate implements the mutex_create syscall; a nonzero argument
// asks for the blocking kind.
func MutexCreate(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	id := t.Process().MutexCreate(args[0].Uint() != 0)
	return int64(id), nil, nil
}

// MutexLock implements the mutex_lock syscall. Under deadlock
// detection an unsafe request fails with the refusal code instead of
// blocking.
func MutexLock(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().MutexLock(t, int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// MutexUnlock implements the mutex_unlock syscall.
func MutexUnlock(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().MutexUnlock(t, int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// SemaphoreCreate implements the semaphore_create syscall.
func SemaphoreCreate(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	id := t.Process().SemaphoreCreate(args[0].Int())
	return int64(id), nil, nil
}

// SemaphoreUp implements the semaphore_up syscall.
func SemaphoreUp(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().SemaphoreUp(t, int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// SemaphoreDown implements the semaphore_down syscall, guarded by the
// availability check when detection is enabled.
func SemaphoreDown(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().SemaphoreDown(t, int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// CondvarCreate implements the condvar_create syscall.
func CondvarCreate(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	return int64(t.Process().CondvarCreate()), nil, nil
}

// CondvarSignal implements the condvar_signal syscall.
func CondvarSignal(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().CondvarSignal(int(args[0].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// CondvarWait implements the condvar_wait syscall:
// condvar_wait(id, mutex_id).
func CondvarWait(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	if err := t.Process().CondvarWait(t, int(args[0].Int()), int(args[1].Int())); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// EnableDeadlockDetect implements the enable_deadlock_detect syscall.
func EnableDeadlockDetect(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	switch args[0].Uint() {
	case 0:
		t.Process().SetDeadlockDetect(false)
	case 1:
		t.Process().SetDeadlockDetect(true)
	default:
		return 0, nil, kernelerr.ErrInvalid
	}
	return 0, nil, nil
}
