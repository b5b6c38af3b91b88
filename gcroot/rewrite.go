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
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/cloudwego/lategc/ir"
	"github.com/cloudwego/lategc/rtsym"
)

const (
	_FrameHeaderLen = 2
	_SlotWidth      = 8
)

// Rewrite is stage S5: it pushes a gc-frame sized for the colors S4
// assigned plus every relocated alloca, zeroes it, relocates tracked
// allocas into frame slots, places the minimal set of root stores
// (one per number at the point it starts being live into a safepoint
// that a predecessor path hasn't already stored), and pops the frame
// before every return.
//
// Grounded on pass_mbarrier_amd64.go's block-splitting/CFG-rewrite
// shape and on internal/atm/frames.go + internal/atm/stackmap.go for
// the frame-slot layout convention (a header followed by a flat
// pointer array).
type Rewrite struct {
	Opts *Options
}

func (r Rewrite) Apply(s *State) bool {
	if !r.Opts.Symbols.Resolved() {
		return false
	}

	total := s.NumColors + len(s.Allocas)

	if total == 0 {
		// No safepoint needs a root and no tracked alloca needs
		// relocating: emitting a frame would be pure overhead, and
		// spec.md §8's boundary behavior requires none be emitted.
		return false
	}

	if total > r.Opts.MaxInlineSlots {
		panic(fmt.Sprintf("gcroot: frame needs %d slots, exceeds MaxInlineSlots %d", total, r.Opts.MaxInlineSlots))
	}

	frameSize := _FrameHeaderLen + total
	entry := s.Func.Entry

	ts := &ir.Call{Kind: ir.CallStandard, Symbol: r.Opts.Symbols.ThreadState, Space: ir.Generic}

	// PushFrame is the fixed helper primitive spec.md §1 leaves
	// undefined: it writes the two header words (nroots<<1, saved
	// chain head) and links the frame into the thread's root chain
	// itself, so this pass never emits those stores directly -- it
	// only ever addresses slots starting at _FrameHeaderLen.
	push := &ir.Call{
		Kind:   ir.CallStandard,
		Symbol: r.Opts.Symbols.PushFrame,
		Args:   []ir.Value{ts, &ir.Const{Val: int64(frameSize)}},
		Space:  ir.Generic,
	}
	rootBase := &ir.GEP{Base: push, Offset: _FrameHeaderLen * _SlotWidth, Space: ir.Generic}
	zero := &ir.MemSet{Ptr: rootBase, Len: int64(total) * _SlotWidth, Val: 0}

	entry.InsertBefore(0, ts)
	entry.InsertBefore(1, push)
	entry.InsertBefore(2, rootBase)
	entry.InsertBefore(3, zero)

	r.relocateAllocas(s, entry, push)
	r.placeStores(s, push)
	r.placePops(s, push)

	allocaIsPointer := make([]bool, len(s.Allocas))
	for i, a := range s.Allocas {
		allocaIsPointer[i] = a.Space.IsSpecial()
	}

	layout := rtsym.FrameLayout{NumColors: s.NumColors, NumAllocas: len(s.Allocas)}
	s.FrameStackMap = rtsym.StackMap(layout, allocaIsPointer)

	return true
}

// relocateAllocas moves every entry-block tracked alloca into its own
// slot, starting right after the frame header; colored roots are
// shifted above the alloca slots (spec.md §4.5/§6).
func (r Rewrite) relocateAllocas(s *State, entry *ir.BasicBlock, push *ir.Call) {
	for i, a := range s.Allocas {
		slot := i
		gep := &ir.GEP{Base: push, Offset: int64(_FrameHeaderLen+slot) * _SlotWidth, Space: a.Space}
		a.Slot = slot

		idx := entry.IndexOf(a)

		if idx < 0 {
			panic("gcroot: alloca missing from its own entry block")
		}

		entry.InsertBefore(idx, gep)
		ir.ReplaceAllUsesWith(s.Func, a, gep)
		entry.Erase(entry.IndexOf(a))
	}
}

// placeStores emits, for every safepoint, a store for every number
// that became live since the nearest safepoint on every path reaching
// it -- a number already stored on every incoming path is not stored
// again. A path for which no prior safepoint is known yet (a loop
// back edge not yet visited) contributes nothing, which conservatively
// forces an extra store at loop headers rather than risk omitting one.
func (r Rewrite) placeStores(s *State, push *ir.Call) {
	rpo := s.Func.ReversePostOrder()
	exitLive := make(map[*ir.BasicBlock]NumberSet, len(rpo))
	insertions := make(map[*ir.BasicBlock]map[ir.Instr][]ir.Instr, len(rpo))

	for _, bb := range rpo {
		var cur NumberSet

		for i, pred := range bb.Preds {
			pl, ok := exitLive[pred]

			if !ok {
				pl = NewNumberSet()
			}

			if i == 0 {
				cur = pl.Clone()
			} else {
				cur = cur.Intersect(pl)
			}
		}

		if cur == nil {
			cur = NewNumberSet()
		}

		pre := make(map[ir.Instr][]ir.Instr)

		for _, ins := range bb.Ins {
			call, ok := ins.(*ir.Call)

			if !ok || !call.IsSafepoint() {
				continue
			}

			live, ok := s.LiveAt[call]

			if !ok {
				continue
			}

			delta := live.Subtract(cur)

			for _, n := range sortedNumbers(delta) {
				// Colored roots sit above the alloca slots: allocas
				// occupy slots 2..1+|Allocas| (spec.md §6), so every
				// color index is shifted up by len(s.Allocas).
				slot := len(s.Allocas) + s.Colors[n]
				gep := &ir.GEP{Base: push, Offset: int64(_FrameHeaderLen+slot) * _SlotWidth, Space: ir.Tracked}
				val := s.Values[n]
				extra := []ir.Instr{gep}

				// A UnionRep base (spec.md §3) has no bare pointer of
				// its own: extract-first-field is synthesized lazily,
				// right here at the one place that actually needs the
				// pointer out of the aggregate, rather than eagerly at
				// every use.
				if call, ok := val.(*ir.Call); ok && call.ResultKind == ir.UnionRep {
					first := &ir.ExtractFirstField{Agg: call}
					extra = append(extra, first)
					val = first
				}

				st := &ir.Store{Ptr: gep, Val: val}
				pre[ins] = append(pre[ins], append(extra, st)...)
			}

			cur = live.Clone()
		}

		if len(pre) > 0 {
			insertions[bb] = pre
		}

		exitLive[bb] = cur
	}

	for bb, pre := range insertions {
		bb.SpliceAround(pre, nil)
	}
}

// placePops inserts a frame pop immediately before every return.
func (r Rewrite) placePops(s *State, push *ir.Call) {
	for _, bb := range s.Func.Blocks {
		term := bb.Term()

		ret, ok := term.(*ir.Return)

		if !ok {
			continue
		}

		idx := bb.IndexOf(ret)
		pop := &ir.Call{Kind: ir.CallStandard, Symbol: r.Opts.Symbols.PopFrame, Args: []ir.Value{push}, Space: ir.Generic}
		bb.InsertBefore(idx, pop)
	}
}

func sortedNumbers(s NumberSet) []int {
	out := s.slice()
	slices.Sort(out)
	return out
}
