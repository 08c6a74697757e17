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

package mm

import (
	"encoding/binary"

	"github.com/osprey-os/osprey/pkg/kernelerr"
	"github.com/osprey-os/osprey/pkg/memarch"
)

// TranslatedByteBuffer translates [ptr, ptr+n) in the address space
// identified by token into a gather list of physical slices. Every
// page of the range must be mapped and user-accessible.
func TranslatedByteBuffer(token *PageTable, ptr memarch.VirtAddr, n int) (*UserBuffer, error) {
	var bufs [][]byte
	va := ptr
	end := ptr + memarch.VirtAddr(n)
	for va < end {
		pte, ok := token.Translate(va.Floor())
		if !ok || !pte.Access.User {
			return nil, kernelerr.ErrBadAddress
		}
		off := va.PageOffset()
		chunk := uint64(memarch.PageSize) - off
		if rest := uint64(end - va); rest < chunk {
			chunk = rest
		}
		data := FrameData(pte.PPN)
		bufs = append(bufs, data[off:off+chunk])
		va += memarch.VirtAddr(chunk)
	}
	return NewUserBuffer(bufs), nil
}

// TranslatedStr reads a NUL-terminated string starting at ptr, one
// byte at a time through the page table.
func TranslatedStr(token *PageTable, ptr memarch.VirtAddr) (string, error) {
	var out []byte
	va := ptr
	for {
		pa, ok := VaddrToPaddr(token, va)
		if !ok {
			return "", kernelerr.ErrBadAddress
		}
		b := FrameData(pa.PPN)[pa.Off]
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
		va++
	}
}

// VaddrToPaddr resolves a single virtual address to its physical
// location. Callers translate per scalar field: a structure may
// straddle a page boundary.
func VaddrToPaddr(token *PageTable, va memarch.VirtAddr) (memarch.PhysAddr, bool) {
	pte, ok := token.Translate(va.Floor())
	if !ok || !pte.Access.User {
		return memarch.PhysAddr{}, false
	}
	return memarch.PhysAddr{PPN: pte.PPN, Off: va.PageOffset()}, true
}

// WriteScalar64 stores one 64-bit little-endian value at pa.
func WriteScalar64(pa memarch.PhysAddr, v uint64) {
	binary.LittleEndian.PutUint64(FrameData(pa.PPN)[pa.Off:], v)
}

// WriteScalar32 stores one 32-bit little-endian value at pa.
func WriteScalar32(pa memarch.PhysAddr, v uint32) {
	binary.LittleEndian.PutUint32(FrameData(pa.PPN)[pa.Off:], v)
}

// ReadScalar64 loads one 64-bit little-endian value at pa.
func ReadScalar64(pa memarch.PhysAddr) uint64 {
	return binary.LittleEndian.Uint64(FrameData(pa.PPN)[pa.Off:])
}

// CopyOutBytes writes b into user memory at va.
func CopyOutBytes(token *PageTable, va memarch.VirtAddr, b []byte) error {
	ub, err := TranslatedByteBuffer(token, va, len(b))
	if err != nil {
		return err
	}
	ub.Fill(b)
	return nil
}

// CopyInBytes reads n bytes of user memory at va.
func CopyInBytes(token *PageTable, va memarch.VirtAddr, n int) ([]byte, error) {
	ub, err := TranslatedByteBuffer(token, va, n)
	if err != nil {
		return nil, err
	}
	return ub.Bytes(), nil
}
