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

import "github.com/cloudwego/lategc/ir"

// poolSizeClasses mirrors a runtime pool allocator's fixed size-class
// table: the allocator only ever hands out objects rounded up to one
// of these sizes. A request bigger than the largest class goes through
// the big-object path instead. Grounded on the source pass's
// allocation-size classification in CleanupIR's placeholder-intrinsic
// lowering, simplified to a representative class table since the
// collector's real table is runtime-owned (SPEC_FULL.md non-goals).
var poolSizeClasses = []int64{16, 32, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024, 1536, 2048, 3072, 4096, 6144, 8192}

// classifyPool reports the pool-table offset and rounded object size
// for a compile-time-constant allocation request, or ok=false when the
// request is bigger than every pool class and must go through the
// big-object allocator instead.
func classifyPool(size int64) (offs, osize int64, ok bool) {
	for i, class := range poolSizeClasses {
		if size <= class {
			return int64(i) * _SlotWidth, class, true
		}
	}

	return 0, 0, false
}

// _TagOffset is the byte offset (relative to the returned object) at
// which the allocation's type tag is stored, per spec.md §8 scenario 6.
const _TagOffset = -_SlotWidth

// Cleanup is stage S6: it lowers every placeholder intrinsic the
// earlier stages left untouched -- flush markers, allocation markers,
// and non-standard-calling-convention calls whose extra arguments are
// marshalled through a shared scratch array -- and strips the
// deopt-state operand bundle every safepoint call carried while the
// earlier stages needed to recognize it as a safepoint.
//
// Grounded on internal/atm/gcwb_amd64.go (allocation-path lowering)
// and internal/atm/pgen_abi_amd64.go's scratch-array marshalling for
// the non-standard calling convention.
type Cleanup struct {
	Opts *Options
}

func (c Cleanup) Apply(s *State) bool {
	changed := false
	maxExtra := 0

	for _, bb := range s.Func.Blocks {
		for _, ins := range bb.Ins {
			call, ok := ins.(*ir.Call)

			if !ok {
				continue
			}

			if (call.Kind == ir.CallJL || call.Kind == ir.CallJLWithReceiver) && len(call.Extra) > maxExtra {
				maxExtra = len(call.Extra)
			}
		}
	}

	var scratch *ir.Alloca

	if maxExtra > 0 {
		scratch = &ir.Alloca{Space: ir.Generic, Name: "jlscratch", Slot: -1}
		s.Func.Entry.InsertBefore(0, scratch)
	}

	var ptls *ir.Call

	for _, bb := range s.Func.Blocks {
		pre := make(map[ir.Instr][]ir.Instr)
		post := make(map[ir.Instr][]ir.Instr)
		var drop []ir.Instr

		for _, ins := range bb.Ins {
			call, ok := ins.(*ir.Call)

			if !ok {
				continue
			}

			switch call.Kind {
			case ir.CallGCRootFlush:
				drop = append(drop, ins)
				changed = true

			case ir.CallGCAllocObj:
				if ptls == nil {
					ptls = c.ptlsFor(s)
				}

				post[ins] = c.lowerAlloc(ptls, call)
				changed = true

			case ir.CallJL, ir.CallJLWithReceiver:
				pre[ins] = append(pre[ins], c.marshalScratch(scratch, call)...)
				changed = true
			}

			if call.HasBundle {
				call.HasBundle = false
				changed = true
			}
		}

		bb.SpliceAround(pre, post)

		for _, d := range drop {
			bb.Erase(bb.IndexOf(d))
		}
	}

	return changed
}

// ptlsFor returns the function's thread-state pointer, reusing the
// call Rewrite (S5) already placed at the top of the entry block when
// a frame was pushed, or synthesizing a fresh one when no frame was
// needed (e.g. a function whose only safepoint is the allocation
// itself, with nothing else live to root).
func (c Cleanup) ptlsFor(s *State) *ir.Call {
	entry := s.Func.Entry

	for _, ins := range entry.Ins {
		if call, ok := ins.(*ir.Call); ok && call.Kind == ir.CallStandard &&
			call.Symbol == c.Opts.Symbols.ThreadState && len(call.Args) == 0 {
			return call
		}
	}

	ts := &ir.Call{Kind: ir.CallStandard, Symbol: c.Opts.Symbols.ThreadState, Space: ir.Generic}
	entry.InsertBefore(0, ts)
	return ts
}

// lowerAlloc classifies a CallGCAllocObj by requested size into the
// pooled or big-object allocator, per spec.md §4.6/§6: a constant size
// that fits a pool class calls pool-alloc(ptls, pool-offs, pool-osize);
// anything else calls big-alloc(ptls, size). It returns the
// instructions to splice in immediately after call to store the type
// tag at offset -8 from the returned object.
func (c Cleanup) lowerAlloc(ptls *ir.Call, call *ir.Call) []ir.Instr {
	size, tag := call.Size, call.Tag
	var args []ir.Value

	if n, ok := size.(*ir.Const); ok {
		if v, ok := n.Val.(int64); ok {
			if offs, osize, ok := classifyPool(v); ok {
				call.Symbol = c.Opts.Symbols.AllocPool
				args = []ir.Value{ptls, &ir.Const{Val: offs}, &ir.Const{Val: osize}}
			}
		}
	}

	if args == nil {
		call.Symbol = c.Opts.Symbols.AllocBig
		args = []ir.Value{ptls, size}
	}

	call.Kind = ir.CallStandard
	call.Args = args
	call.Size = nil
	call.Tag = nil

	tagSlot := &ir.GEP{Base: call, Offset: _TagOffset, Space: ir.Generic}
	store := &ir.Store{Ptr: tagSlot, Val: tag}
	return []ir.Instr{tagSlot, store}
}

// marshalScratch stores a CallJL/CallJLWithReceiver's extra arguments
// into the shared scratch array and replaces them with the array
// pointer, returning the instructions to insert before the call.
func (c Cleanup) marshalScratch(scratch *ir.Alloca, call *ir.Call) []ir.Instr {
	var out []ir.Instr

	for i, arg := range call.Extra {
		slot := &ir.GEP{Base: scratch, Offset: int64(i) * _SlotWidth, Space: ir.Generic}
		out = append(out, slot, &ir.Store{Ptr: slot, Val: arg})
	}

	call.Extra = nil
	call.Args = append(call.Args, scratch)
	return out
}
