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

// UserBuffer is a gather list of physical slices, potentially split
// across page boundaries, that the kernel treats as one logical user
// buffer.
type UserBuffer struct {
	bufs [][]byte
}

// NewUserBuffer wraps a gather list.
func NewUserBuffer(bufs [][]byte) *UserBuffer {
	return &UserBuffer{bufs: bufs}
}

// Len returns the total byte length.
func (ub *UserBuffer) Len() int {
	n := 0
	for _, b := range ub.bufs {
		n += len(b)
	}
	return n
}

// Bytes returns a copy of the buffer contents.
func (ub *UserBuffer) Bytes() []byte {
	out := make([]byte, 0, ub.Len())
	for _, b := range ub.bufs {
		out = append(out, b...)
	}
	return out
}

// Fill copies src into the buffer, returning the count copied.
func (ub *UserBuffer) Fill(src []byte) int {
	n := 0
	for _, b := range ub.bufs {
		if n >= len(src) {
			break
		}
		n += copy(b, src[n:])
	}
	return n
}

// Iter returns a byte-at-a-time cursor over the buffer.
func (ub *UserBuffer) Iter() *UserBufferIter {
	return &UserBufferIter{ub: ub}
}

// UserBufferIter walks a UserBuffer one byte at a time.
type UserBufferIter struct {
	ub  *UserBuffer
	buf int
	off int
}

// next returns the location of the next byte, or nil at the end.
func (it *UserBufferIter) next() []byte {
	for it.buf < len(it.ub.bufs) {
		b := it.ub.bufs[it.buf]
		if it.off < len(b) {
			cur := b[it.off:]
			it.off++
			return cur
		}
		it.buf++
		it.off = 0
	}
	return nil
}

// ReadByte consumes the next byte. ok is false at the end.
func (it *UserBufferIter) ReadByte() (byte, bool) {
	b := it.next()
	if b == nil {
		return 0, false
	}
	return b[0], true
}

// WriteByte stores the next byte. ok is false at the end.
func (it *UserBufferIter) WriteByte(v byte) bool {
	b := it.next()
	if b == nil {
		return false
	}
	b[0] = v
	return true
}
