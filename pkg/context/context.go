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

// Package context defines the context type used throughout the kernel.
//
// A Context carries the identity of the task on whose behalf an
// operation executes. Lower layers (vfs, fs) retrieve the scheduling
// capabilities they need through Value lookups instead of importing the
// kernel package, which keeps the dependency graph acyclic.
package context

import "context"

type contextID int

// Keys for Context.Value lookups.
const (
	// CtxYielder resolves to a Yielder for the calling task.
	CtxYielder contextID = iota

	// CtxIdentity resolves to an Identity for the calling task.
	CtxIdentity
)

// Context represents a caller's context.
type Context interface {
	context.Context
}

// Yielder gives up the core on behalf of the calling task. A file
// implementation that must wait (a full or empty pipe, an idle console)
// calls Yield and retries; the task is rescheduled by stride order.
type Yielder interface {
	Yield()
}

// Identity names the calling task for log prefixes.
type Identity interface {
	PID() int32
	TID() int
}

// YielderFrom extracts the Yielder from ctx, or nil.
func YielderFrom(ctx Context) Yielder {
	if y, ok := ctx.Value(CtxYielder).(Yielder); ok {
		return y
	}
	return nil
}

// IdentityFrom extracts the Identity from ctx, or nil.
func IdentityFrom(ctx Context) Identity {
	if id, ok := ctx.Value(CtxIdentity).(Identity); ok {
		return id
	}
	return nil
}

// Background returns an empty context for boot-time operations that run
// before any task exists.
func Background() Context {
	return context.Background()
}
