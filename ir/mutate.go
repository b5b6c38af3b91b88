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

package ir

// ReplaceAllUsesWith rewrites every operand across f that points at
// old to point at newVal instead. This is a linear scan rather than a
// use-list, deliberately: building and maintaining a use-list is
// exactly the kind of general IR-construction machinery out of scope
// here, and a function's instruction count is small enough that a
// full scan per replacement is unremarkable.
func ReplaceAllUsesWith(f *Function, old, newVal Value) {
	for _, bb := range f.Blocks {
		for _, ins := range bb.Ins {
			replaceIn(ins, old, newVal)
		}
	}
}

func replaceIn(ins Instr, old, newVal Value) {
	switch v := ins.(type) {
	case Operandser:
		for _, slot := range v.Operands() {
			if *slot == old {
				*slot = newVal
			}
		}
	}

	// Phi.Operands() is always nil; patch the Incoming map directly.
	if p, ok := ins.(*Phi); ok {
		for bb, val := range p.Incoming {
			if val == old {
				p.Incoming[bb] = newVal
			}
		}
	}

	if s, ok := ins.(*Select); ok {
		if s.Cond == old {
			s.Cond = newVal
		}

		if s.True == old {
			s.True = newVal
		}

		if s.False == old {
			s.False = newVal
		}
	}

	if b, ok := ins.(*Branch); ok && b.Cond == old {
		b.Cond = newVal
	}

	if r, ok := ins.(*Return); ok && r.Val == old {
		r.Val = newVal
	}
}

// Erase removes ins from its owning block. It panics if ins is a
// Terminator, since deleting a block's terminator without relinking
// the CFG is always a bug in the caller.
func Erase(ins Instr) {
	if _, ok := ins.(Terminator); ok {
		panic("ir: cannot erase a terminator with Erase")
	}

	bb := ins.Block()

	if bb == nil {
		return
	}

	if i := bb.IndexOf(ins); i >= 0 {
		bb.Erase(i)
	}
}
