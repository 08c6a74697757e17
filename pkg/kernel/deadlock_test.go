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

import "testing"

func TestBankerSafeTrivial(t *testing.T) {
	// No outstanding need: trivially safe.
	if !bankerSafe([]int64{1}, [][]int64{{0}, {0}}, [][]int64{{0}, {0}}) {
		t.Errorf("idle state judged unsafe")
	}
}

func TestBankerSafeSatisfiableChain(t *testing.T) {
	// T0 holds r0 and needs nothing more; T1 needs r0. T0 can finish
	// and return r0, then T1 finishes.
	available := []int64{0}
	allocation := [][]int64{{1}, {0}}
	need := [][]int64{{0}, {1}}
	if !bankerSafe(available, allocation, need) {
		t.Errorf("satisfiable chain judged unsafe")
	}
}

func TestBankerSafeCrossWait(t *testing.T) {
	// The classic cross wait over two single-unit resources: T0 holds
	// r0 and needs r1, T1 holds r1 and needs r0. Nobody can finish.
	available := []int64{0, 0}
	allocation := [][]int64{{1, 0}, {0, 1}}
	need := [][]int64{{0, 1}, {1, 0}}
	if bankerSafe(available, allocation, need) {
		t.Errorf("cross wait judged safe")
	}
}

func TestBankerSafeCountingUnits(t *testing.T) {
	// Three units total, two threads each holding one and wanting one
	// more: the spare unit lets one finish at a time.
	available := []int64{1}
	allocation := [][]int64{{1}, {1}}
	need := [][]int64{{1}, {1}}
	if !bankerSafe(available, allocation, need) {
		t.Errorf("one-spare-unit state judged unsafe")
	}
	// Without the spare unit nobody finishes.
	if bankerSafe([]int64{0}, allocation, need) {
		t.Errorf("zero-spare-unit state judged safe")
	}
}

func TestBankerSafeRestartScan(t *testing.T) {
	// The order of satisfiable threads matters: T2 can finish first,
	// releasing enough for T0, then T1. A single forward pass without
	// the restart would miss T0.
	available := []int64{0, 1}
	allocation := [][]int64{{2, 0}, {1, 1}, {0, 1}}
	need := [][]int64{{0, 2}, {2, 0}, {0, 0}}
	if !bankerSafe(available, allocation, need) {
		t.Errorf("multi-pass chain judged unsafe")
	}
}
