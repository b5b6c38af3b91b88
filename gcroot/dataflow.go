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

// Dataflow is stage S2: a backward liveness fixed point over tracked
// value numbers, plus a forward "unrootedness" pass tracking which
// live numbers were defined on the current path without yet crossing
// a safepoint (used by debug dumps only, not by S3's
// correctness-critical live-set gating, which uses LiveIn/LiveOut
// directly).
//
// Grounded on pass_regalloc.go's livein/liveout fixed-point shape: a
// worklist-free repeat-to-fixpoint that walks the reverse post order
// list backwards (i.e. in post order), using cached per-block sets
// exactly the way RegAlloc.livein/liveout do.
type Dataflow struct{}

func (Dataflow) Apply(s *State) bool {
	rpo := s.Func.ReversePostOrder()
	changed := false

	for {
		iterChanged := false

		for i := len(rpo) - 1; i >= 0; i-- {
			bb := rpo[i]
			bs := s.Blocks[bb]

			newOut := NewNumberSet()

			for _, succ := range bb.Succs {
				newOut.Union(s.liveInForSucc(bb, succ))
			}

			if !newOut.Equal(bs.LiveOut) {
				bs.LiveOut = newOut
				iterChanged = true
			}

			newIn := s.upExposedUses(bb)
			newIn.Union(bs.LiveOut.Subtract(s.localDefs(bb)))

			if !newIn.Equal(bs.LiveIn) {
				bs.LiveIn = newIn
				iterChanged = true
			}
		}

		if !iterChanged {
			break
		}

		changed = true
	}

	for _, bb := range rpo {
		s.propagateUnrooted(bb)
	}

	return changed
}

// liveInForSucc returns succ's LiveIn with the number of every phi in
// succ replaced by the base number of the value that phi takes along
// the bb->succ edge -- the standard phi-aware adjustment to backward
// liveness.
func (s *State) liveInForSucc(bb, succ *ir.BasicBlock) NumberSet {
	out := s.Blocks[succ].LiveIn.Clone()

	for _, ins := range succ.Ins {
		phi, ok := ins.(*ir.Phi)

		if !ok {
			continue
		}

		phiNum, numbered := s.Numbers[phi]

		if !numbered {
			continue
		}

		in, has := phi.Incoming[bb]

		if !has {
			continue
		}

		out.Remove(phiNum)

		if n, ok := s.baseNumber(in); ok {
			out.Add(n)
		}
	}

	return out
}

// baseNumber resolves v's recovered base number -- the quantity that
// actually needs a root slot, per spec.md §3: "all derived views share
// their base's number." v must already have been walked by findBase
// during S1 for this to succeed.
func (s *State) baseNumber(v ir.Value) (int, bool) {
	n, ok := s.Numbers[v]

	if !ok {
		return 0, false
	}

	return s.Base(n), true
}

// localDefs returns the numbers defined within bb.
func (s *State) localDefs(bb *ir.BasicBlock) NumberSet {
	defs := NewNumberSet()

	for _, ins := range bb.Ins {
		if n, ok := s.Numbers[ins]; ok {
			defs.Add(n)
		}
	}

	return defs
}

// upExposedUses returns the numbers used in bb before any local
// redefinition -- the set that must already be live on entry to bb.
func (s *State) upExposedUses(bb *ir.BasicBlock) NumberSet {
	uses := NewNumberSet()
	defined := NewNumberSet()

	for _, ins := range bb.Ins {
		for _, op := range operandNumbers(s, ins) {
			if !defined.Has(op) {
				uses.Add(op)
			}
		}

		if n, ok := s.Numbers[ins]; ok {
			defined.Add(n)
		}
	}

	return uses
}

func operandNumbers(s *State, ins ir.Instr) []int {
	var nums []int

	if op, ok := ins.(ir.Operandser); ok {
		for _, slot := range op.Operands() {
			if n, ok := s.baseNumber(*slot); ok {
				nums = append(nums, n)
			}
		}
	}

	if phi, ok := ins.(*ir.Phi); ok {
		for _, in := range phi.OrderedIncoming() {
			if n, ok := s.baseNumber(in); ok {
				nums = append(nums, n)
			}
		}
	}

	return nums
}

// propagateUnrooted computes the forward "freshly defined, no
// safepoint crossed yet" set for diagnostics.
func (s *State) propagateUnrooted(bb *ir.BasicBlock) {
	bs := s.Blocks[bb]

	in := NewNumberSet()

	for _, pred := range bb.Preds {
		in.Union(s.Blocks[pred].UnrootedOut)
	}

	bs.UnrootedIn = in

	cur := in.Clone()

	for _, ins := range bb.Ins {
		if n, ok := s.Numbers[ins]; ok {
			cur.Add(n)
		}

		if call, ok := ins.(*ir.Call); ok && call.IsSafepoint() {
			cur.Clear()
		}
	}

	bs.UnrootedOut = cur
}
