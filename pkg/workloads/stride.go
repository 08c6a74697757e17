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
		Name: "stride",
		Doc:  "two yield loops at priorities 8 and 16; print their selection counts",
		Demo: true,
		Main: strideMain,
	})
}

func strideMain(t *kernel.Task, _ uint64) {
	var aCount, bCount int
	stop := false
	runner := func(prio int64, count *int) kernel.Entry {
		return func(t *kernel.Task, _ uint64) {
			usys.SetPriority(t, prio)
			for !stop {
				*count++
				usys.Yield(t)
			}
			usys.Exit(t, 0)
		}
	}
	ta := usys.ThreadCreate(t, runner(8, &aCount), 0)
	tb := usys.ThreadCreate(t, runner(16, &bCount), 0)
	for bCount < 400 {
		usys.Yield(t)
	}
	stop = true
	usys.WaittidBlocking(t, int(ta))
	usys.WaittidBlocking(t, int(tb))
	usys.Print(t, "A="+itoa(int64(aCount))+" B="+itoa(int64(bCount))+"\n")
	usys.Exit(t, 0)
}
