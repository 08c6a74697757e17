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

// Package loader is the program-image boundary. The real ELF loader
// and on-disk program store live outside the kernel; what crosses the
// boundary is a named image with an entry point, and this registry is
// the simulated store exec and spawn resolve paths against.
package loader

import (
	"fmt"
	"sort"

	"github.com/osprey-os/osprey/pkg/kernel"
	"github.com/osprey-os/osprey/pkg/memarch"
)

// Image is one loadable program.
type Image struct {
	// Name is the path user programs pass to exec and spawn.
	Name string

	// Doc is a one-line description for the image listing.
	Doc string

	// Demo marks images meant to run standalone; exec and spawn
	// targets that only make sense as children leave it unset.
	Demo bool

	// BaseSize is the end of the static image; zero means the kernel
	// default.
	BaseSize memarch.VirtAddr

	// Main is the image's entry point.
	Main kernel.Entry
}

// CreateArgs converts the image into process-creation arguments.
func (img Image) CreateArgs(arg uint64) kernel.CreateProcessArgs {
	return kernel.CreateProcessArgs{
		Name:     img.Name,
		BaseSize: img.BaseSize,
		Entry:    img.Main,
		Arg:      arg,
	}
}

var images = make(map[string]Image)

// Register adds an image to the store. Registering a duplicate name
// panics; images register from init functions and a collision is a
// build mistake.
func Register(img Image) {
	if img.Name == "" || img.Main == nil {
		panic("loader: image needs a name and an entry point")
	}
	if _, ok := images[img.Name]; ok {
		panic(fmt.Sprintf("loader: image %q registered twice", img.Name))
	}
	images[img.Name] = img
}

// Lookup resolves a path to its image.
func Lookup(name string) (Image, bool) {
	img, ok := images[name]
	return img, ok
}

// Names returns all registered image names, sorted.
func Names() []string {
	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
