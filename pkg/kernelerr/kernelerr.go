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

// Package kernelerr holds the error values surfaced to user code and
// the mapping from each to its syscall return value.
package kernelerr

// Error is an error with a fixed syscall return code.
type Error struct {
	msg  string
	code int64
}

// New creates a new Error.
func New(msg string, code int64) *Error {
	return &Error{msg: msg, code: code}
}

// Error implements error.Error.
func (e *Error) Error() string {
	return e.msg
}

// Code returns the value the syscall returns for this error.
func (e *Error) Code() int64 {
	return e.code
}

// DeadlockCode is returned by mutex_lock and semaphore_down when the
// availability check refuses the request.
const DeadlockCode = -0xDEAD

// The user-visible error set.
var (
	// ErrInvalid covers validation failures: bad fd, misaligned
	// address, bad port bits, empty path.
	ErrInvalid = New("invalid argument", -1)

	// ErrBadAddress indicates a user pointer that does not translate.
	ErrBadAddress = New("bad address", -1)

	// ErrNoMemory indicates frame allocator exhaustion.
	ErrNoMemory = New("out of memory", -1)

	// ErrNoSuchThread is returned by waittid for a missing thread or a
	// self-wait.
	ErrNoSuchThread = New("no such thread", -1)

	// ErrThreadRunning is returned by waittid while the target runs.
	ErrThreadRunning = New("thread still running", -2)

	// ErrNoChild is returned by waitpid with no matching child.
	ErrNoChild = New("no such child", -1)

	// ErrChildRunning is returned by waitpid while all matching
	// children run.
	ErrChildRunning = New("child still running", -2)

	// ErrDeadlock is the availability-check refusal. The pending need
	// is restored before it is returned, so a later retry may succeed.
	ErrDeadlock = New("deadlock risk detected", DeadlockCode)

	// ErrNoSys is returned for unknown syscall numbers.
	ErrNoSys = New("unknown syscall", -1)
)

// ReturnValue maps err to its syscall return value. Errors without a
// code map to -1.
func ReturnValue(err error) int64 {
	if e, ok := err.(*Error); ok {
		return e.Code()
	}
	return -1
}
