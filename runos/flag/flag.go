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

// Package flag wraps the stdlib flag package so the rest of runos has
// a single import for both the global command line and per-command
// flag sets.
package flag

import "flag"

// Aliases of the stdlib types.
type (
	FlagSet = flag.FlagSet
	Flag    = flag.Flag
	Value   = flag.Value
)

// CommandLine is the global flag set.
var CommandLine = flag.CommandLine

// Parse parses the global command line.
func Parse() {
	flag.Parse()
}

// Lookup finds a flag on the global flag set.
func Lookup(name string) *Flag {
	return flag.Lookup(name)
}

// Get unwraps a flag value.
func Get(v Value) any {
	if g, ok := v.(flag.Getter); ok {
		return g.Get()
	}
	return nil
}

// Re-exported constructors on the global flag set.
var (
	Bool   = flag.Bool
	Int    = flag.Int
	String = flag.String
)
