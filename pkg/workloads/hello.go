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

// Package workloads holds the built-in guest programs: demos for the
// runos CLI that double as end-to-end test subjects.
package workloads

import (
	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/loader"
	"github.com/osprey-os/osprey/pkg/usys"
)

func init() {
	loader.Register(loader.Image{
		Name: "hello",
		Doc:  "print a greeting and exit",
		Demo: true,
		Main: helloMain,
	})
	loader.Register(loader.Image{
		Name: "echo",
		Doc:  "print the argument register and exit with it",
		Main: echoMain,
	})
}

func helloMain(t *kernel.Task, _ uint64) {
	usys.Print(t, "Hello, world!\n")
	usys.Exit(t, 0)
}

func echoMain(t *kernel.Task, arg uint64) {
	usys.Print(t, "echo:")
	usys.Print(t, itoa(int64(arg)))
	usys.Print(t, "\n")
	usys.Exit(t, int32(arg))
}

// itoa avoids fmt in guest code; the console is byte-oriented.
func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var b [24]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
