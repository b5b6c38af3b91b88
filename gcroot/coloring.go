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
	"github.com/oleiade/lane"
	"golang.org/x/exp/slices"
)

// Coloring is stage S4: it assigns every interfering value number a
// root slot color, minimizing the total slot count via maximum-
// cardinality-search (MCS) over the interference graph built by S3.
// The live ranges the graph encodes come from a single straight-line
// program per block, which makes the graph chordal, so an MCS-derived
// perfect elimination order lets greedy coloring hit the clique
// number exactly.
//
// Numbers live at a returns-twice call get a dedicated color each,
// never shared with any other number, because a setjmp-like return
// can resume with stale values in slots another live range started
// reusing after the call (spec §4.4's returns-twice carve-out).
//
// Grounded on dominator.go's bucket/priority style (Lengauer-Tarjan's
// semi-dominator buckets), generalized from "bucket per semidominator"
// to "bucket per MCS weight"; the per-bucket backing store reuses
// github.com/oleiade/lane's Stack exactly as blockiter.go/rename.go
// use it for worklist storage.
type Coloring struct {
	Opts *Options
}

func (c Coloring) Apply(s *State) bool {
	pinned := s.pinReturnsTwice(c.Opts.ReturnsTwiceDedicated)
	order := s.mcsOrder()
	s.colorGraph(order, pinned)
	return true
}

// numPinnedColors returns the count of distinct dedicated colors
// pinReturnsTwice handed out -- the greedy coloring pass must never
// reuse any of them, even for a number that happens not to interfere
// with the pinned one, since a dedicated slot must never be shared
// (spec.md §8 Minimality).
func numPinnedColors(pinned map[int]int) int {
	max := -1

	for _, c := range pinned {
		if c > max {
			max = c
		}
	}

	return max + 1
}

// pinReturnsTwice assigns a unique, never-shared color to every
// number live at a returns-twice safepoint.
func (s *State) pinReturnsTwice(enabled bool) map[int]int {
	pinned := make(map[int]int)

	if !enabled {
		return pinned
	}
	next := 0

	var dedicated []int
	seen := make(map[int]bool)

	for call, live := range s.LiveAt {
		if !call.ReturnsTwice {
			continue
		}

		for n := range live {
			if !seen[n] {
				seen[n] = true
				dedicated = append(dedicated, n)
			}
		}
	}

	slices.Sort(dedicated)

	for _, n := range dedicated {
		pinned[n] = next
		next++
	}

	return pinned
}

// mcsOrder computes a maximum-cardinality-search elimination order
// over the numbers that appear in the interference graph, using a
// bucket queue keyed by current back-degree, each bucket backed by a
// lane.Stack so repeated re-insertions (a vertex's weight can only
// grow, so it migrates to higher buckets) pop in O(1) with the most
// recently promoted vertex first.
func (s *State) mcsOrder() []int {
	weight := make(map[int]int, len(s.Interference))
	selected := make(map[int]bool, len(s.Interference))
	buckets := make(map[int]*lane.Stack)
	maxWeight := 0

	push := func(w, v int) {
		st, ok := buckets[w]

		if !ok {
			st = lane.NewStack()
			buckets[w] = st
		}

		st.Push(v)

		if w > maxWeight {
			maxWeight = w
		}
	}

	for v := range s.Interference {
		weight[v] = 0
		push(0, v)
	}

	order := make([]int, 0, len(s.Interference))

	for len(order) < len(s.Interference) {
		for maxWeight >= 0 {
			st, ok := buckets[maxWeight]

			if !ok || st.Empty() {
				maxWeight--
				continue
			}

			top := st.Pop().(int)

			if selected[top] {
				continue
			}

			selected[top] = true
			order = append(order, top)

			for nb := range s.Interference[top] {
				if nb == top || selected[nb] {
					continue
				}

				weight[nb]++
				push(weight[nb], nb)
			}

			break
		}

		if maxWeight < 0 {
			break
		}
	}

	return order
}

// colorGraph assigns a color per number, honoring any pre-pinned
// colors, by walking the MCS order and first-fitting around already
// colored neighbors.
func (s *State) colorGraph(order []int, pinned map[int]int) {
	colorOf := make(map[int]int, len(order))

	for n, c := range pinned {
		colorOf[n] = c
	}

	// base is the first color the shared pool may use: the dedicated
	// range [0, base) belongs exclusively to pinned numbers, so a
	// shared-pool value never lands on a pinned slot even when the two
	// never interfere.
	base := numPinnedColors(pinned)

	for _, v := range order {
		if _, done := colorOf[v]; done {
			continue
		}

		neighbors := s.Interference[v]

		if neighbors.Len() == 0 {
			continue
		}

		used := make(map[int]bool)

		for nb := range neighbors {
			if nb == v {
				continue
			}

			if c, ok := colorOf[nb]; ok {
				used[c] = true
			}
		}

		c := base

		for used[c] {
			c++
		}

		colorOf[v] = c
	}

	s.Colors = colorOf
	max := base - 1

	for v, c := range colorOf {
		if _, isPinned := pinned[v]; isPinned {
			continue
		}

		if c > max {
			max = c
		}
	}

	s.NumColors = max + 1
}
