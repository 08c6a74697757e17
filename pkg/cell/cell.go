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

// Package cell provides the exclusive-access cell wrapping every shared
// mutable kernel record.
//
// The kernel is single-core and cooperative: exactly one task goroutine
// holds the core at any time, so a Cell needs no atomics. What it does
// enforce is the borrow discipline: a Cell hands out one mutable
// reference at a time and panics on a reentrant borrow, which is how
// accidental nesting (and, with it, state corruption across a context
// switch) surfaces immediately instead of as a heisenbug.
//
// Contract: a borrow must never be held across a suspension point.
// Callers release before switching, blocking, or yielding.
package cell

import "fmt"

// Cell is a single-borrow container for a shared mutable value.
type Cell[T any] struct {
	name     string
	borrowed bool
	val      T
}

// New returns a Cell holding val. The name is used in panic messages.
func New[T any](name string, val T) *Cell[T] {
	return &Cell[T]{name: name, val: val}
}

// Borrow returns the single mutable reference to the contained value.
// It panics if the value is already borrowed.
func (c *Cell[T]) Borrow() *T {
	if c.borrowed {
		panic(fmt.Sprintf("cell %q already borrowed", c.name))
	}
	c.borrowed = true
	return &c.val
}

// Release returns the borrow. It panics if the value is not borrowed.
func (c *Cell[T]) Release() {
	if !c.borrowed {
		panic(fmt.Sprintf("cell %q released without a borrow", c.name))
	}
	c.borrowed = false
}

// With runs f with the borrow held and releases it when f returns.
func (c *Cell[T]) With(f func(*T)) {
	v := c.Borrow()
	defer c.Release()
	f(v)
}
