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

package vfs

import (
	stdcontext "context"
	"testing"

	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/mm"
)

type stubYielder struct {
	t *testing.T
}

func (s stubYielder) Yield() {
	s.t.Fatalf("unexpected yield")
}

func testCtx(t *testing.T) context.Context {
	return stdcontext.WithValue(stdcontext.Background(), context.CtxYielder, stubYielder{t})
}

func buf(b []byte) *mm.UserBuffer {
	return mm.NewUserBuffer([][]byte{b})
}

func TestPipeWriteRead(t *testing.T) {
	ctx := testCtx(t)
	r, w := NewPipe()
	if n := w.Write(ctx, buf([]byte("hello"))); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	out := make([]byte, 5)
	if n := r.Read(ctx, buf(out)); n != 5 {
		t.Fatalf("Read = %d, want 5", n)
	}
	if string(out) != "hello" {
		t.Errorf("read %q, want %q", out, "hello")
	}
}

func TestPipeWrapAround(t *testing.T) {
	ctx := testCtx(t)
	r, w := NewPipe()
	// Fill the ring exactly.
	full := make([]byte, ringBufferSize)
	for i := range full {
		full[i] = byte(i)
	}
	if n := w.Write(ctx, buf(full)); n != ringBufferSize {
		t.Fatalf("Write = %d, want %d", n, ringBufferSize)
	}
	// Drain ten, refill ten: tail wraps past the array end.
	out := make([]byte, 10)
	if n := r.Read(ctx, buf(out)); n != 10 {
		t.Fatalf("Read = %d, want 10", n)
	}
	if n := w.Write(ctx, buf([]byte("0123456789"))); n != 10 {
		t.Fatalf("Write = %d, want 10", n)
	}
	rest := make([]byte, ringBufferSize)
	if n := r.Read(ctx, buf(rest)); n != ringBufferSize {
		t.Fatalf("Read = %d, want %d", n, ringBufferSize)
	}
	if string(rest[ringBufferSize-10:]) != "0123456789" {
		t.Errorf("tail of ring = %q", rest[ringBufferSize-10:])
	}
}

func TestPipeEOF(t *testing.T) {
	ctx := testCtx(t)
	r, w := NewPipe()
	w.Write(ctx, buf([]byte("bye")))
	Release(File(w))
	out := make([]byte, 8)
	if n := r.Read(ctx, buf(out)); n != 3 {
		t.Fatalf("Read = %d, want short read 3", n)
	}
	if n := r.Read(ctx, buf(out)); n != 0 {
		t.Errorf("Read at EOF = %d, want 0", n)
	}
}

func TestPipeRetainKeepsStreamOpen(t *testing.T) {
	r, w := NewPipe()
	Retain(File(w)) // a forked fd table holds a second write end
	Release(File(w))
	ring := r.ring.Borrow()
	ends := ring.writeEnds
	r.ring.Release()
	if ends != 1 {
		t.Errorf("writeEnds = %d, want 1", ends)
	}
}
