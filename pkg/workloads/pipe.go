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
		Name: "pipedemo",
		Doc:  "pipe between a forked child and its parent, ending in EOF",
		Demo: true,
		Main: pipeMain,
	})
}

func pipeMain(t *kernel.Task, _ uint64) {
	r, w, ret := usys.Pipe(t)
	if ret < 0 {
		usys.Exit(t, 1)
	}
	child := func(t *kernel.Task, _ uint64) {
		usys.Close(t, w)
		b, n := usys.Read(t, r, 5)
		if n != 5 {
			usys.Exit(t, 2)
		}
		usys.Print(t, string(b)+"\n")
		if _, n := usys.Read(t, r, 5); n == 0 {
			usys.Print(t, "EOF\n")
		}
		usys.Close(t, r)
		usys.Exit(t, 0)
	}
	pid := usys.Fork(t, child, 0)
	usys.Close(t, r)
	usys.Write(t, w, []byte("hello"))
	usys.Close(t, w)
	_, code := usys.WaitpidBlocking(t, int32(pid))
	usys.Exit(t, code)
}
