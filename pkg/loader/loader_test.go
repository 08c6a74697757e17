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

package loader

import (
	"testing"

	"github.com/osprey-os/osprey/pkg/kernel"
)

func noopEntry(*kernel.Task, uint64) {}

func TestRegisterLookup(t *testing.T) {
	Register(Image{Name: "loader-test:a", Main: noopEntry})
	img, ok := Lookup("loader-test:a")
	if !ok || img.Name != "loader-test:a" {
		t.Fatalf("Lookup after Register failed")
	}
	if _, ok := Lookup("loader-test:missing"); ok {
		t.Errorf("Lookup of an unregistered image succeeded")
	}
}

func TestDuplicateRegisterPanics(t *testing.T) {
	Register(Image{Name: "loader-test:dup", Main: noopEntry})
	defer func() {
		if recover() == nil {
			t.Errorf("duplicate Register did not panic")
		}
	}()
	Register(Image{Name: "loader-test:dup", Main: noopEntry})
}

func TestNamesSorted(t *testing.T) {
	Register(Image{Name: "loader-test:zz", Main: noopEntry})
	Register(Image{Name: "loader-test:aa", Main: noopEntry})
	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names not sorted: %v", names)
		}
	}
}
