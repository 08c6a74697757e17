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

package fs

import (
	"testing"

	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

func buf(b []byte) *mm.UserBuffer {
	return mm.NewUserBuffer([][]byte{b})
}

func TestOpenWriteRead(t *testing.T) {
	Init()
	ctx := context.Background()
	w, err := Open("a.txt", sysabi.OpenCREATE|sysabi.OpenWRONLY)
	if err != nil {
		t.Fatalf("Open create: %v", err)
	}
	if n := w.Write(ctx, buf([]byte("content"))); n != 7 {
		t.Fatalf("Write = %d, want 7", n)
	}
	r, err := Open("a.txt", sysabi.OpenRDONLY)
	if err != nil {
		t.Fatalf("Open read: %v", err)
	}
	out := make([]byte, 7)
	if n := r.Read(ctx, buf(out)); n != 7 || string(out) != "content" {
		t.Fatalf("Read = %d %q", n, out)
	}
	if n := r.Read(ctx, buf(out)); n != 0 {
		t.Errorf("Read at EOF = %d, want 0", n)
	}
}

func TestOpenMissingFails(t *testing.T) {
	Init()
	if _, err := Open("nope", sysabi.OpenRDONLY); err == nil {
		t.Errorf("Open of a missing file succeeded")
	}
	if _, err := Open("", sysabi.OpenCREATE); err == nil {
		t.Errorf("Open of an empty path succeeded")
	}
}

func TestLinkUnlinkNlink(t *testing.T) {
	Init()
	f, err := Open("orig", sysabi.OpenCREATE)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := Link("orig", "alias"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got := f.Stat().Nlink; got != 2 {
		t.Errorf("nlink = %d, want 2", got)
	}
	if err := Link("orig", "orig"); err == nil {
		t.Errorf("self link succeeded")
	}
	if err := Unlink("orig"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if got := f.Stat().Nlink; got != 1 {
		t.Errorf("nlink after unlink = %d, want 1", got)
	}
	if _, err := Open("alias", sysabi.OpenRDONLY); err != nil {
		t.Errorf("Open through surviving link: %v", err)
	}
	if err := Unlink("orig"); err == nil {
		t.Errorf("second unlink of the same name succeeded")
	}
}

func TestStatIdentity(t *testing.T) {
	Init()
	a, _ := Open("x", sysabi.OpenCREATE)
	b, _ := Open("y", sysabi.OpenCREATE)
	if a.Stat().Ino == b.Stat().Ino {
		t.Errorf("distinct files share ino %d", a.Stat().Ino)
	}
	if a.Stat().Mode != sysabi.StatModeFile {
		t.Errorf("mode = %#o, want regular file", a.Stat().Mode)
	}
}
