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

import (
	"fmt"
	"sort"
)

// Phi joins values along incoming CFG edges. Incoming maps predecessor
// block to the value flowing in along that edge; orderedPreds sorts by
// block Id so OrderedIncoming has a stable order across calls.
type Phi struct {
	base
	Space    AddressSpace
	Incoming map[*BasicBlock]Value
}

func (p *Phi) irnode()            {}
func (p *Phi) setBlock(b *BasicBlock) { p.blk = b }

// Operands always returns nil: a map value isn't addressable, so
// there is no real *Value slot to hand back for an incoming edge.
// Callers that need to read or rewrite incoming values go through
// OrderedIncoming and SetIncoming instead.
func (p *Phi) Operands() []*Value { return nil }

// OrderedIncoming returns the incoming values in a stable (predecessor
// block Id) order, for callers that need to walk them deterministically.
func (p *Phi) OrderedIncoming() []Value {
	preds := p.orderedPreds()
	out := make([]Value, len(preds))

	for i, bb := range preds {
		out[i] = p.Incoming[bb]
	}

	return out
}

func (p *Phi) orderedPreds() []*BasicBlock {
	preds := make([]*BasicBlock, 0, len(p.Incoming))

	for bb := range p.Incoming {
		preds = append(preds, bb)
	}

	sort.Slice(preds, func(i, j int) bool { return preds[i].Id < preds[j].Id })
	return preds
}

// SetIncoming rebinds the value flowing in from pred, creating the
// Incoming map if it is nil.
func (p *Phi) SetIncoming(pred *BasicBlock, v Value) {
	if p.Incoming == nil {
		p.Incoming = make(map[*BasicBlock]Value)
	}

	p.Incoming[pred] = v
}

func (p *Phi) String() string {
	return fmt.Sprintf("phi %s [%d incoming]", p.Space, len(p.Incoming))
}

// Select picks True or False based on Cond.
type Select struct {
	base
	Cond        Value
	True, False Value
	Space       AddressSpace
}

func (s *Select) irnode()            {}
func (s *Select) setBlock(b *BasicBlock) { s.blk = b }
func (s *Select) Operands() []*Value { return []*Value{&s.Cond, &s.True, &s.False} }

func (s *Select) String() string {
	return fmt.Sprintf("select %s ? %s : %s", s.Cond, s.True, s.False)
}

// GCLift is a synthetic instruction scan.go inserts at a select or phi
// join whose inputs have different recovered base pointers: it lifts
// the join to operate on base pointers rather than derived ones, so
// the joined value itself becomes numberable as a base.
type GCLift struct {
	base
	Space  AddressSpace
	Of     Instr // the original Select or Phi this lifts
	Inputs []Value
}

func (g *GCLift) irnode()            {}
func (g *GCLift) setBlock(b *BasicBlock) { g.blk = b }

func (g *GCLift) Operands() []*Value {
	out := make([]*Value, len(g.Inputs))

	for i := range g.Inputs {
		out[i] = &g.Inputs[i]
	}

	return out
}

func (g *GCLift) String() string {
	return fmt.Sprintf("gclift %s of %s", g.Space, g.Of)
}

// Branch is a conditional (Cond != nil) or unconditional terminator.
type Branch struct {
	base
	Cond        Value
	True, False *BasicBlock
}

func (b *Branch) irnode()            {}
func (b *Branch) setBlock(bb *BasicBlock) { b.blk = bb }

func (b *Branch) Operands() []*Value {
	if b.Cond == nil {
		return nil
	}

	return []*Value{&b.Cond}
}

func (b *Branch) Successors() []*BasicBlock {
	if b.Cond == nil {
		return []*BasicBlock{b.True}
	}

	return []*BasicBlock{b.True, b.False}
}

func (b *Branch) String() string {
	if b.Cond == nil {
		return fmt.Sprintf("br bb.%d", b.True.Id)
	}

	return fmt.Sprintf("br %s, bb.%d, bb.%d", b.Cond, b.True.Id, b.False.Id)
}

// Return is the function-exit terminator. rewrite.go inserts a
// gc-frame pop immediately before every Return.
type Return struct {
	base
	Val Value // nil for a void return
}

func (r *Return) irnode()            {}
func (r *Return) setBlock(b *BasicBlock) { r.blk = b }

func (r *Return) Operands() []*Value {
	if r.Val == nil {
		return nil
	}

	return []*Value{&r.Val}
}

func (r *Return) Successors() []*BasicBlock { return nil }

func (r *Return) String() string {
	if r.Val == nil {
		return "ret"
	}

	return fmt.Sprintf("ret %s", r.Val)
}
