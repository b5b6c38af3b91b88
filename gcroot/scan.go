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

// LocalScan is stage S1: it numbers every tracked/derived value
// (recovering base pointers as it goes), collects the function's
// safepoints and entry-block allocas, and applies load-refinement so
// an already-rooted load doesn't get a redundant slot of its own.
//
// Grounded on the source pass's runOnFunction local scan loop plus
// LocalScan/NoteUse/NoteDef/NoteSafepoint, and on
// pass_stack_liveness.go for the "walk every instruction once,
// dispatch on concrete type" shape.
type LocalScan struct{}

func (LocalScan) Apply(s *State) bool {
	changed := false

	for _, a := range s.Func.Entry.Ins {
		if alloca, ok := a.(*ir.Alloca); ok && alloca.Space.IsSpecial() {
			s.Allocas = append(s.Allocas, alloca)
		}
	}

	for _, bb := range s.Func.Blocks {
		// numberInstr can walk into findBase/liftJoin, which inserts a
		// GCLift into this same block ahead of a later instruction.
		// Ranging over a snapshot keeps that insert from shifting an
		// unvisited instruction -- e.g. a safepoint call after two
		// base-divergent joins -- out of the iteration window.
		snapshot := append([]ir.Instr(nil), bb.Ins...)

		for _, ins := range snapshot {
			if s.numberInstr(ins) {
				changed = true
			}

			if call, ok := ins.(*ir.Call); ok && call.IsSafepoint() {
				s.Safepoints = append(s.Safepoints, call)
				s.Blocks[bb].Safepoints = append(s.Blocks[bb].Safepoints, call)
			}
		}
	}

	return changed
}

// numberInstr numbers ins's result if it produces a tracked/derived
// value (or a vector of them), applying load refinement along the
// way. It returns true if numbering or refinement touched state.
func (s *State) numberInstr(ins ir.Instr) bool {
	touched := false

	switch x := ins.(type) {
	case *ir.VectorValue:
		if !x.Space.IsSpecial() {
			return false
		}

		for _, lane := range x.Lanes {
			s.findBase(lane)
			touched = true
		}

		return touched

	case *ir.Load:
		if !x.Space.IsSpecial() {
			return false
		}

		n := s.findBase(x)

		if s.refinesToCallerRooted(x) {
			s.CallerRooted.Add(n)
		} else if base, ok := s.refinesToBase(x); ok {
			s.Refinement[n] = base
		}

		return true

	default:
		sp, ok := spaceOf(ins)

		if !ok || !sp.IsSpecial() {
			return false
		}

		s.findBase(ins)
		return true
	}
}

// refinesToCallerRooted reports whether a load's pointer operand is
// itself a function argument or an alloca outside tracked/derived
// space with an immutable TBAA tag -- the conservative argument-space
// refinement decided in SPEC_FULL.md's supplemented features, mirroring
// the source pass's isSpecialPtr + "loaded from a provably immutable,
// caller-owned location" check.
func (s *State) refinesToCallerRooted(l *ir.Load) bool {
	if !l.TBAA.Immutable {
		return false
	}

	switch p := l.Ptr.(type) {
	case *ir.Arg:
		return !p.Space.IsSpecial()
	case *ir.Alloca:
		return !p.Space.IsSpecial()
	default:
		return false
	}
}

// refinesToBase reports whether l is an immutable-field load whose
// pointer operand is itself a Tracked/Derived value, returning that
// value's base number -- the load is live-rooted for free whenever its
// origin object is, per spec.md §4.1's load-refinement rule (scenario
// 4: `x = load-immut p.f; call g(x, p)` needs no slot for x when p is
// live at the call).
func (s *State) refinesToBase(l *ir.Load) (int, bool) {
	if !l.TBAA.Immutable {
		return 0, false
	}

	sp, ok := spaceOf(l.Ptr)

	if !ok || !sp.IsSpecial() {
		return 0, false
	}

	return s.findBase(l.Ptr), true
}

// spaceOf extracts the result address space of an instruction that
// produces a first-class pointer value, if any.
func spaceOf(ins ir.Instr) (ir.AddressSpace, bool) {
	switch x := ins.(type) {
	case *ir.Arg:
		return x.Space, true
	case *ir.Const:
		return x.Space, true
	case *ir.Load:
		return x.Space, true
	case *ir.GEP:
		return x.Space, true
	case *ir.BitCast:
		return x.Space, true
	case *ir.AddrSpaceCast:
		return x.To, true
	case *ir.ExtractValue:
		return x.Space, true
	case *ir.Phi:
		return x.Space, true
	case *ir.Select:
		return x.Space, true
	case *ir.GCLift:
		return x.Space, true
	case *ir.Call:
		return x.Space, true
	default:
		return ir.Generic, false
	}
}

// kindOf extracts the result Kind (Scalar/Vector/UnionRep) of a value,
// defaulting to Scalar for any instruction shape that never carries a
// UnionRep result -- only a value-returning Call can (spec.md §3).
func kindOf(v ir.Value) ir.Kind {
	if call, ok := v.(*ir.Call); ok {
		return call.ResultKind
	}

	return ir.Scalar
}
