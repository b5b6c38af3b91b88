/*
 * Copyright 2021 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gcroot

import (
	"reflect"

	"golang.org/x/exp/maps"

	"github.com/cloudwego/lategc/ir"
)

// LiveSet is stage S3: for every safepoint, the exact set of value
// numbers that must be rooted by the time that call executes, and the
// interference graph over numbers built from co-occurrence across
// safepoints -- the input S4's coloring consumes.
//
// Grounded on pass_stack_liveness.go's SlotSet bookkeeping
// (slotset.go): a per-block reverse scan seeded from LiveOut, killing
// a number at its def and reviving it at each use, the same shape
// StackLiveness.livein/liveout uses for spill slots.
type LiveSet struct{}

func (LiveSet) Apply(s *State) bool {
	changed := false

	for _, bb := range s.Func.Blocks {
		bs := s.Blocks[bb]
		live := bs.LiveOut.Clone()

		for i := len(bb.Ins) - 1; i >= 0; i-- {
			ins := bb.Ins[i]

			if n, ok := s.Numbers[ins]; ok {
				live.Remove(n)
			}

			for _, n := range operandNumbers(s, ins) {
				live.Add(n)
			}

			// A safepoint's own operands must already be rooted by the
			// time it executes (spec.md §8 scenario 1: a store for each
			// call argument is emitted immediately above the call), so
			// the live set snapshot is taken after this instruction's
			// own uses are folded in, not before.
			if call, ok := ins.(*ir.Call); ok && call.IsSafepoint() {
				set := s.applyRefinement(live.Subtract(s.CallerRooted))

				if existing, ok := s.LiveAt[call]; !ok || !existing.Equal(set) {
					s.LiveAt[call] = set
					changed = true
				}
			}
		}
	}

	s.buildInterference()
	return changed
}

// applyRefinement drops every number in set whose load-refinement base
// (state.Refinement) is also in set: the load is reachable from the
// same root as its base, so it needs no slot of its own whenever that
// base is live alongside it.
func (s *State) applyRefinement(set NumberSet) NumberSet {
	if len(s.Refinement) == 0 {
		return set
	}

	out := set

	for n := range set {
		base, ok := s.Refinement[n]

		if !ok || !set.Has(base) {
			continue
		}

		if reflect.ValueOf(out).Pointer() == reflect.ValueOf(set).Pointer() {
			out = set.Clone()
		}

		out.Remove(n)
	}

	return out
}

// buildInterference adds an edge between every pair of numbers that
// co-occur in some safepoint's live set, plus a self-edge for every
// number that needs a color at all -- the self-neighbor convention
// the source pass's ColorRoots relies on to distinguish "needs a
// color but has no real neighbors" from "was never live anywhere".
func (s *State) buildInterference() {
	for n := range s.Interference {
		delete(s.Interference, n)
	}

	for _, live := range s.LiveAt {
		nums := live.slice()

		for _, a := range nums {
			if s.Interference[a] == nil {
				s.Interference[a] = NewNumberSet()
			}

			s.Interference[a].Add(a)

			for _, b := range nums {
				if a != b {
					s.Interference[a].Add(b)
				}
			}
		}
	}
}

// slice extracts s's members via golang.org/x/exp/maps.Keys, replacing
// the hand-rolled "range and append" loop slotset.go/pass_regalloc.go
// use inline.
func (s NumberSet) slice() []int {
	return maps.Keys(s)
}
