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

package memarch

import "testing"

func TestFloorCeil(t *testing.T) {
	for _, tc := range []struct {
		va          VirtAddr
		floor, ceil VirtPageNum
	}{
		{0, 0, 0},
		{1, 0, 1},
		{PageSize - 1, 0, 1},
		{PageSize, 1, 1},
		{PageSize + 1, 1, 2},
		{0x10000000, 0x10000, 0x10000},
	} {
		if got := tc.va.Floor(); got != tc.floor {
			t.Errorf("Floor(%#x) = %#x, want %#x", tc.va, got, tc.floor)
		}
		if got := tc.va.Ceil(); got != tc.ceil {
			t.Errorf("Ceil(%#x) = %#x, want %#x", tc.va, got, tc.ceil)
		}
	}
}

func TestAccessFromPort(t *testing.T) {
	for _, tc := range []struct {
		port uint64
		ok   bool
		str  string
	}{
		{0, false, ""},
		{1, true, "r--u"},
		{2, true, "-w-u"},
		{3, true, "rw-u"},
		{7, true, "rwxu"},
		{8, false, ""},
		{9, false, ""},
		{1 << 32, false, ""},
	} {
		a, ok := AccessFromPort(tc.port)
		if ok != tc.ok {
			t.Errorf("AccessFromPort(%d) ok = %v, want %v", tc.port, ok, tc.ok)
			continue
		}
		if ok && a.String() != tc.str {
			t.Errorf("AccessFromPort(%d) = %s, want %s", tc.port, a, tc.str)
		}
	}
}
