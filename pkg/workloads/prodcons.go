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
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/usys"
)

func init() {
	loader.Register(loader.Image{
		Name: "prodcons",
		Doc:  "semaphore bounded buffer between a producer and a consumer",
		Demo: true,
		Main: prodconsMain,
	})
}

func prodconsMain(t *kernel.Task, _ uint64) {
	const (
		capacity = 3
		items    = 5
	)
	var buf [capacity]int
	in, out := 0, 0

	empty := int(usys.SemaphoreCreate(t, capacity))
	full := int(usys.SemaphoreCreate(t, 0))
	mu := int(usys.MutexCreate(t, true))

	producer := func(t *kernel.Task, _ uint64) {
		for i := 1; i <= items; i++ {
			usys.SemaphoreDown(t, empty)
			usys.MutexLock(t, mu)
			buf[in%capacity] = i
			in++
			usys.MutexUnlock(t, mu)
			usys.SemaphoreUp(t, full)
		}
		usys.Exit(t, 0)
	}
	consumer := func(t *kernel.Task, _ uint64) {
		for i := 0; i < items; i++ {
			usys.SemaphoreDown(t, full)
			usys.MutexLock(t, mu)
			v := buf[out%capacity]
			out++
			usys.MutexUnlock(t, mu)
			usys.SemaphoreUp(t, empty)
			usys.Print(t, "got "+itoa(int64(v))+"\n")
		}
		usys.Exit(t, 0)
	}
	tp := usys.ThreadCreate(t, producer, 0)
	tc := usys.ThreadCreate(t, consumer, 0)
	usys.WaittidBlocking(t, int(tp))
	usys.WaittidBlocking(t, int(tc))
	usys.Print(t, "prodcons ok\n")
	usys.Exit(t, 0)
}
