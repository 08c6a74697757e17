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

package workloads

import (
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/usys"
)

func init() {
	loader.Register(loader.Image{
		Name: "deadlock",
		Doc:  "cross-order locking under deadlock detection; one lock is refused",
		Demo: true,
		Main: deadlockMain,
	})
}

func deadlockMain(t *kernel.Task, _ uint64) {
	usys.EnableDeadlockDetect(t, true)
	m0 := int(usys.MutexCreate(t, true))
	m1 := int(usys.MutexCreate(t, true))
	worker := func(first, second int) kernel.Entry {
		return func(t *kernel.Task, _ uint64) {
			usys.MutexLock(t, first)
			usys.Yield(t)
			if r := usys.MutexLock(t, second); r == kernelerr.DeadlockCode {
				usys.Print(t, "refused\n")
			} else {
				usys.MutexUnlock(t, second)
			}
			usys.MutexUnlock(t, first)
			usys.Exit(t, 0)
		}
	}
	t1 := usys.ThreadCreate(t, worker(m0, m1), 0)
	t2 := usys.ThreadCreate(t, worker(m1, m0), 0)
	usys.WaittidBlocking(t, int(t1))
	usys.WaittidBlocking(t, int(t2))
	usys.Print(t, "done\n")
	usys.Exit(t, 0)
}
