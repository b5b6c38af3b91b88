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

// Package gcroot places GC roots over a function's SSA-form CFG: it
// numbers every tracked pointer, computes liveness across safepoints,
// colors the live ranges into a minimal set of shared root slots, and
// rewrites the CFG to push a gc-frame, store into colored slots at the
// points that change, and pop it before every return.
package gcroot

import (
	"sync"

	"github.com/cloudwego/lategc/ir"
	"github.com/cloudwego/lategc/rtsym"
)

// NumberSet is a map-backed set over value numbers, the same small-sparse-set
// idiom SlotSet uses for stack slots.
type NumberSet map[int]struct{}

func NewNumberSet() NumberSet { return make(NumberSet) }

func (s NumberSet) Add(n int)      { s[n] = struct{}{} }
func (s NumberSet) Remove(n int)   { delete(s, n) }
func (s NumberSet) Has(n int) bool { _, ok := s[n]; return ok }
func (s NumberSet) Len() int       { return len(s) }

func (s NumberSet) Clone() NumberSet {
	r := make(NumberSet, len(s))

	for k := range s {
		r[k] = struct{}{}
	}

	return r
}

func (s NumberSet) Union(o NumberSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

func (s NumberSet) Intersect(o NumberSet) NumberSet {
	r := make(NumberSet)

	for k := range s {
		if o.Has(k) {
			r[k] = struct{}{}
		}
	}

	return r
}

func (s NumberSet) Subtract(o NumberSet) NumberSet {
	r := make(NumberSet)

	for k := range s {
		if !o.Has(k) {
			r[k] = struct{}{}
		}
	}

	return r
}

func (s NumberSet) Equal(o NumberSet) bool {
	if len(s) != len(o) {
		return false
	}

	for k := range s {
		if !o.Has(k) {
			return false
		}
	}

	return true
}

func (s NumberSet) Clear() {
	for k := range s {
		delete(s, k)
	}
}

// BBState is the per-block dataflow state maintained by the dataflow
// stage (S2): the four boundary sets it computes, plus the per-block
// safepoint list the local scan (S1) records.
type BBState struct {
	LiveIn, LiveOut         NumberSet
	UnrootedIn, UnrootedOut NumberSet
	Safepoints              []*ir.Call
}

func newBBState() *BBState {
	return &BBState{
		LiveIn:      NewNumberSet(),
		LiveOut:     NewNumberSet(),
		UnrootedIn:  NewNumberSet(),
		UnrootedOut: NewNumberSet(),
	}
}

// State is the per-function working set threaded through all six
// stages. It is pooled (AcquireState/ReleaseState) the same way the
// teacher's internal/atm/frames.go pools per-function Frame buffers,
// since the driver runs this pass once per function across many
// functions in a compilation.
type State struct {
	Func *ir.Function

	// Numbers assigns a dense value number to every Tracked/Derived
	// value (and every vector lane of such a value); Bases maps each
	// number to the base-pointer number the original value was
	// recovered from (itself, for a genuine base).
	Numbers map[ir.Value]int
	Values  []ir.Value
	Bases   []int

	// baseResolved tracks which numbers have had their base pointer
	// fully computed, so findBase's memoization doesn't mistake a
	// freshly allocated (but not-yet-resolved) number's zero-value
	// Bases entry for "its base is number 0".
	baseResolved NumberSet

	// CallerRooted marks numbers refined (by TBAA-backed or
	// argument-space load refinement) to the sentinel meaning
	// "already rooted by the caller, exclude from our own frame".
	CallerRooted NumberSet

	// Refinement maps an immutable-field load's number to the number
	// of the base pointer it was loaded from. S3 drops the load from a
	// safepoint's live set whenever that base is itself live there --
	// the load is rooted for free whenever its origin is.
	Refinement map[int]int

	Blocks map[*ir.BasicBlock]*BBState

	// Allocas are entry-block Tracked allocas the rewrite stage
	// relocates into gc-frame slots.
	Allocas []*ir.Alloca

	// Safepoints lists every safepoint call the local scan found, in
	// block order and program order within a block.
	Safepoints []*ir.Call

	// LiveAt is the live-set computed per safepoint by S3: the
	// numbers that must be rooted by the time that call executes.
	LiveAt map[*ir.Call]NumberSet

	// Interference is the undirected interference graph over value
	// numbers built by S3, consumed by S4's coloring.
	Interference map[int]NumberSet

	// Colors maps a value number to its assigned root slot.
	Colors map[int]int

	// NumColors is the total number of distinct colors S4 assigned.
	NumColors int

	// FrameStackMap is the collector-facing slot bitmap S5 builds for
	// the frame it pushed, nil when no frame was needed.
	FrameStackMap *rtsym.Bitmap
}

var statePool = sync.Pool{New: func() interface{} { return &State{} }}

// AcquireState returns a State reset for reuse on f, pulling its
// backing maps/slices from a pool instead of allocating fresh ones on
// every call -- mirrors frames.Frame's sync.Pool-backed buffer reuse.
func AcquireState(f *ir.Function) *State {
	s := statePool.Get().(*State)

	s.Func = f
	s.Numbers = make(map[ir.Value]int, len(f.Blocks)*4)
	s.Values = s.Values[:0]
	s.Bases = s.Bases[:0]
	s.baseResolved = NewNumberSet()
	s.CallerRooted = NewNumberSet()
	s.Refinement = make(map[int]int)
	s.Blocks = make(map[*ir.BasicBlock]*BBState, len(f.Blocks))
	s.Allocas = s.Allocas[:0]
	s.Safepoints = s.Safepoints[:0]
	s.LiveAt = make(map[*ir.Call]NumberSet)
	s.Interference = make(map[int]NumberSet)
	s.Colors = make(map[int]int)
	s.NumColors = 0
	s.FrameStackMap = nil

	for _, bb := range f.Blocks {
		s.Blocks[bb] = newBBState()
	}

	return s
}

// ReleaseState returns s to the pool. Callers must not use s again
// after calling this.
func ReleaseState(s *State) {
	s.Func = nil
	statePool.Put(s)
}

// Number returns the dense value number assigned to v, allocating the
// next one if v hasn't been numbered yet.
func (s *State) Number(v ir.Value) int {
	if n, ok := s.Numbers[v]; ok {
		return n
	}

	n := len(s.Values)
	s.Numbers[v] = n
	s.Values = append(s.Values, v)
	s.Bases = append(s.Bases, n)
	return n
}

// SetBase records that number n's recovered base pointer is base.
func (s *State) SetBase(n, base int) {
	s.Bases[n] = base
}

// Base returns the base-pointer number n was recovered from (n itself
// for a genuine base).
func (s *State) Base(n int) int {
	return s.Bases[n]
}
