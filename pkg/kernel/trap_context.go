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
	"encoding/binary"

	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/memarch"
)

// TrapContext is the register snapshot pushed on entry from user mode
// and restored on return. It lives on a dedicated page per thread, so
// duplicating an address space duplicates every thread's trap state
// with it.
type TrapContext struct {
	// X holds the general registers; X[2] is the stack pointer and
	// X[10] the first argument register.
	X [32]uint64

	// SEPC is the user program counter restored on trap return.
	SEPC uint64

	// KernelSP is the task's kernel stack top.
	KernelSP uint64
}

// Trap-page layout offsets, in bytes.
const (
	trapCxOffX        = 0
	trapCxOffSEPC     = 32*8 + 8
	trapCxOffKernelSP = 32*8 + 3*8
)

// appInitContext builds the first trap context of a thread: pc at the
// entry point, sp at the user stack top.
func appInitContext(entry, userSP, kernelSP uint64) TrapContext {
	cx := TrapContext{SEPC: entry, KernelSP: kernelSP}
	cx.X[2] = userSP
	return cx
}

// encode stores the context into its trap page.
func (cx *TrapContext) encode(ppn memarch.PhysPageNum) {
	data := mm.FrameData(ppn)
	for i, x := range cx.X {
		binary.LittleEndian.PutUint64(data[trapCxOffX+8*i:], x)
	}
	binary.LittleEndian.PutUint64(data[trapCxOffSEPC:], cx.SEPC)
	binary.LittleEndian.PutUint64(data[trapCxOffKernelSP:], cx.KernelSP)
}

// decodeTrapContext loads the context from a trap page.
func decodeTrapContext(ppn memarch.PhysPageNum) TrapContext {
	data := mm.FrameData(ppn)
	var cx TrapContext
	for i := range cx.X {
		cx.X[i] = binary.LittleEndian.Uint64(data[trapCxOffX+8*i:])
	}
	cx.SEPC = binary.LittleEndian.Uint64(data[trapCxOffSEPC:])
	cx.KernelSP = binary.LittleEndian.Uint64(data[trapCxOffKernelSP:])
	return cx
}
