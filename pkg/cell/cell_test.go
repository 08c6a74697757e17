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

package cell

import "testing"

func TestBorrowRelease(t *testing.T) {
	c := New("test", 41)
	v := c.Borrow()
	*v++
	c.Release()
	c.With(func(v *int) {
		if *v != 42 {
			t.Errorf("got %d, want 42", *v)
		}
	})
}

func TestReentrantBorrowPanics(t *testing.T) {
	c := New("test", 0)
	c.Borrow()
	defer func() {
		if recover() == nil {
			t.Errorf("reentrant Borrow did not panic")
		}
	}()
	c.Borrow()
}

func TestReleaseWithoutBorrowPanics(t *testing.T) {
	c := New("test", 0)
	defer func() {
		if recover() == nil {
			t.Errorf("unpaired Release did not panic")
		}
	}()
	c.Release()
}
