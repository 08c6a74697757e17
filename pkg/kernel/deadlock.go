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

package kernel

// bankerSafe runs the banker-style safety check over one resource
// kind. It reports whether some completion order exists in which every
// thread's outstanding need can be met: work starts as the available
// vector, and any thread whose whole need fits within work finishes
// and returns its allocation. The scan restarts after every finish;
// the state is safe only if all threads finish.
//
// The caller has already folded the pending request into the need
// matrix; the check itself acquires nothing.
func bankerSafe(available []int64, allocation, need [][]int64) bool {
	work := append([]int64(nil), available...)
	threads := len(allocation)
	finish := make([]bool, threads)
	done := 0
	for i := 0; i < threads; {
		if !finish[i] {
			fits := true
			for j := range work {
				if need[i][j] > 0 && work[j] < need[i][j] {
					fits = false
					break
				}
			}
			if fits {
				for j := range work {
					work[j] += allocation[i][j]
				}
				finish[i] = true
				done++
				i = 0
				continue
			}
		}
		i++
	}
	return done == threads
}
