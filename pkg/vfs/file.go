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

// Package vfs defines the file interface behind every descriptor slot,
// the console stdio files, and the in-kernel pipe.
package vfs

import (
	"github.com/osprey-os/osprey/pkg/context"
	"github.com/osprey-os/osprey/pkg/mm"
	"github.com/osprey-os/osprey/pkg/sysabi"
)

// File is the capability set behind a file descriptor. Read and Write
// operate on a translated user buffer and return the count actually
// transferred.
type File interface {
	Readable() bool
	Writable() bool
	Read(ctx context.Context, dst *mm.UserBuffer) int64
	Write(ctx context.Context, src *mm.UserBuffer) int64
}

// Retainer is implemented by files that count their openers. The fd
// table retains on dup and fork.
type Retainer interface {
	Retain()
}

// Releaser is implemented by files that must observe their last close.
type Releaser interface {
	Release()
}

// Stater is implemented by files that can answer fstat.
type Stater interface {
	Stat() sysabi.Stat
}

// Retain bumps the open count if the file tracks one.
func Retain(f File) {
	if r, ok := f.(Retainer); ok {
		r.Retain()
	}
}

// Release drops an open count if the file tracks one.
func Release(f File) {
	if r, ok := f.(Releaser); ok {
		r.Release()
	}
}
