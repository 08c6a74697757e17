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
	"github.com/osprey-os/osprey/pkg/memarch"
	"github.com/osprey-os/osprey/pkg/usys"
)

func init() {
	loader.Register(loader.Image{
		Name: "mmapprobe",
		Doc:  "probe mmap/munmap alignment, overlap and port rules, and the sbrk round trip",
		Demo: true,
		Main: mmapMain,
	})
}

func mmapMain(t *kernel.Task, _ uint64) {
	base := memarch.VirtAddr(0x10000000)
	usys.Print(t, "mmap="+itoa(usys.Mmap(t, base, 4096, 3))+"\n")
	usys.Print(t, "remap="+itoa(usys.Mmap(t, base, 4096, 3))+"\n")
	usys.Print(t, "munmap="+itoa(usys.Munmap(t, base, 4096))+"\n")
	usys.Print(t, "reunmap="+itoa(usys.Munmap(t, base, 4096))+"\n")
	usys.Print(t, "badport="+itoa(usys.Mmap(t, base, 4096, 0))+"\n")
	usys.Print(t, "misaligned="+itoa(usys.Mmap(t, base+1, 4096, 3))+"\n")

	oldBrk := usys.Sbrk(t, 0)
	usys.Sbrk(t, 8192)
	usys.Sbrk(t, -8192)
	if usys.Sbrk(t, 0) == oldBrk {
		usys.Print(t, "sbrk-roundtrip=ok\n")
	} else {
		usys.Print(t, "sbrk-roundtrip=bad\n")
	}
	usys.Exit(t, 0)
}
