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
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// ThreadCreate implements the thread_create syscall:
// thread_create(entry, arg) returns the new tid.
func ThreadCreate(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	tid, err := kernel.ThreadCreate(t, args[0].Pointer(), args[1].Uint())
	if err != nil {
		return 0, nil, err
	}
	return int64(tid), nil, nil
}

// Gettid implements the gettid syscall.
func Gettid(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	return int64(t.TID()), nil, nil
}

// Waittid implements the waittid syscall: the exit code of an exited
// sibling, -2 while it runs, -1 for a missing tid or self-wait.
func Waittid(t *kernel.Task, sysno uintptr, args sysabi.SyscallArguments) (int64, *kernel.SyscallControl, error) {
	code, err := kernel.WaitTid(t, int(args[0].Int()))
	if err != nil {
		return 0, nil, err
	}
	return int64(code), nil, nil
}
