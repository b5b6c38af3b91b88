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

	"github.com/cloudwego/lategc/ir"
)

// findBase recovers the base pointer a (possibly derived) tracked
// value was computed from, inserting a GCLift instruction at a
// select/phi join whose incoming bases disagree. It numbers every
// value it walks through along the way.
//
// Grounded on the source pass's FindBaseValue: a memoized recursive
// walk over a closed set of instruction shapes, terminating fatally
// on any shape it doesn't recognize -- base-pointer recovery is not a
// best-effort heuristic, it is a completeness property of the pass.
func (s *State) findBase(v ir.Value) int {
	if n, ok := s.Numbers[v]; ok {
		if s.baseResolved.Has(n) {
			return s.Base(n)
		}
	}

	n := s.Number(v)

	base := s.computeBase(v, n)
	s.SetBase(n, base)
	s.baseResolved.Add(n)
	return base
}

func (s *State) computeBase(v ir.Value, n int) int {
	switch x := v.(type) {
	case *ir.Const:
		// A constant pointer (including null) never needs a root:
		// it is never relocated by the collector.
		s.CallerRooted.Add(n)
		return n

	case *ir.Arg:
		// An incoming argument pointer is its own base. Whether it
		// is caller-rooted is decided by load-refinement rules, not
		// here: the argument itself is always a legitimate base.
		return n

	case *ir.Load:
		return n

	case *ir.Call:
		return n

	case *ir.ExtractValue:
		// A field pulled out of a UnionRep aggregate (spec.md §3's
		// union-representation struct) is not a fresh base: the
		// aggregate itself was already numbered as the single
		// tracked base, and every extracted field shares that number,
		// the same way a GEP off a tracked base does. Extracting a
		// field from anything else is a genuine new base.
		if kindOf(x.Agg) == ir.UnionRep {
			return s.findBase(x.Agg)
		}

		return n

	case *ir.ExtractFirstField:
		return n

	case *ir.GEP:
		return s.findBase(x.Base)

	case *ir.BitCast:
		return s.findBase(x.Val)

	case *ir.AddrSpaceCast:
		// Crossing address spaces produces a genuinely new base: the
		// result is no longer transparently the same object for
		// rooting purposes.
		return n

	case *ir.Select:
		tb := s.findBase(x.True)
		fb := s.findBase(x.False)

		if tb == fb {
			return tb
		}

		return s.liftJoin(x, n, []ir.Value{x.True, x.False})

	case *ir.Phi:
		// Pre-install n as this phi's own tentative base before
		// recursing into its incoming edges: a loop-carried phi may
		// reach itself again through a back edge, and the cache
		// lookup above must see a resolved (if tentative) base
		// rather than recursing forever.
		s.SetBase(n, n)
		s.baseResolved.Add(n)

		bases := make(map[int]bool)
		var inputs []ir.Value

		for _, in := range x.OrderedIncoming() {
			b := s.findBase(in)
			bases[b] = true
			inputs = append(inputs, in)
		}

		if len(bases) == 1 {
			for b := range bases {
				return b
			}
		}

		return s.liftJoin(x, n, inputs)

	case *ir.GCLift:
		// Already lifted by an earlier pass invocation on this
		// function (shouldn't normally recur, but is its own base).
		return n

	default:
		panic(fmt.Sprintf("gcroot: base-pointer walk hit unrecognized instruction %T", x))
	}
}

// liftJoin inserts a GCLift instruction immediately before of (the
// original Select/Phi) that re-joins the recovered bases of inputs,
// and returns its number as the new base for of's result.
//
// Grounded on LiftSelect/LiftPhi in the original pass: when a join's
// inputs recover to different bases, the join itself must be lifted
// to operate on bases, since no single base dominates the join.
func (s *State) liftJoin(of ir.Instr, ofNum int, inputs []ir.Value) int {
	lifted := make([]ir.Value, len(inputs))

	for i, in := range inputs {
		b := s.findBase(in)
		lifted[i] = s.Values[b]
	}

	g := &ir.GCLift{Of: of, Inputs: lifted}
	bb := of.Block()
	pos := bb.IndexOf(of)

	if pos < 0 {
		panic("gcroot: lift target is not in its own block")
	}

	bb.InsertBefore(pos, g)

	gn := s.Number(g)
	s.SetBase(gn, gn)
	s.baseResolved.Add(gn)
	s.SetBase(ofNum, gn)
	return gn
}

