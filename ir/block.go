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

import "strings"

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one Terminator (Branch or Return).
type BasicBlock struct {
	Id    int
	Ins   []Instr
	Preds []*BasicBlock
	Succs []*BasicBlock
	Func  *Function
}

func (b *BasicBlock) String() string {
	var sb strings.Builder
	sb.WriteString("bb.")
	sb.WriteString(itoa(b.Id))
	sb.WriteString(":\n")

	for _, ins := range b.Ins {
		sb.WriteString("    ")
		sb.WriteString(ins.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Term returns the block's terminating instruction, panicking if the
// block has not been terminated yet -- a malformed block is a fatal
// invariant violation, not a recoverable condition.
func (b *BasicBlock) Term() Terminator {
	if len(b.Ins) == 0 {
		panic("ir: basic block has no instructions")
	}

	t, ok := b.Ins[len(b.Ins)-1].(Terminator)

	if !ok {
		panic("ir: basic block does not end in a terminator")
	}

	return t
}

// Append adds ins to the end of the block and sets its owning block.
func (b *BasicBlock) Append(ins Instr) {
	if bb, ok := ins.(interface{ setBlock(*BasicBlock) }); ok {
		bb.setBlock(b)
	}

	b.Ins = append(b.Ins, ins)
}

// InsertBefore inserts ins immediately before the instruction at index
// pos in the block's instruction list.
func (b *BasicBlock) InsertBefore(pos int, ins Instr) {
	if bb, ok := ins.(interface{ setBlock(*BasicBlock) }); ok {
		bb.setBlock(b)
	}

	b.Ins = append(b.Ins, nil)
	copy(b.Ins[pos+1:], b.Ins[pos:])
	b.Ins[pos] = ins
}

// Erase removes the instruction at index pos from the block.
func (b *BasicBlock) Erase(pos int) {
	b.Ins = append(b.Ins[:pos], b.Ins[pos+1:]...)
}

// SpliceAround inserts pre[ins] immediately before ins and post[ins]
// immediately after, for every instruction named in either map,
// rebuilding the block's instruction list in a single pass rather than
// repeatedly mutating it while iterating. Spliced instructions have
// their owning block set exactly as InsertBefore/Append would.
func (b *BasicBlock) SpliceAround(pre, post map[Instr][]Instr) {
	if len(pre) == 0 && len(post) == 0 {
		return
	}

	out := make([]Instr, 0, len(b.Ins)+2*(len(pre)+len(post)))

	for _, ins := range b.Ins {
		for _, extra := range pre[ins] {
			out = append(out, b.adopt(extra))
		}

		out = append(out, ins)

		for _, extra := range post[ins] {
			out = append(out, b.adopt(extra))
		}
	}

	b.Ins = out
}

func (b *BasicBlock) adopt(ins Instr) Instr {
	if s, ok := ins.(interface{ setBlock(*BasicBlock) }); ok {
		s.setBlock(b)
	}

	return ins
}

// IndexOf returns the position of ins within the block, or -1.
func (b *BasicBlock) IndexOf(ins Instr) int {
	for i, v := range b.Ins {
		if v == ins {
			return i
		}
	}

	return -1
}

// Function is the unit the pass operates on: one CFG, its Args, and
// the Allocas declared in its entry block.
type Function struct {
	Name    string
	Args    []*Arg
	Entry   *BasicBlock
	Blocks  []*BasicBlock
	nextVal int
}

// NewFunction creates an empty function with a single entry block.
func NewFunction(name string, argSpaces []AddressSpace) *Function {
	f := &Function{Name: name}

	for i, sp := range argSpaces {
		f.Args = append(f.Args, &Arg{Index: i, Space: sp})
	}

	f.Entry = f.NewBlock()
	return f
}

// NewBlock allocates a fresh, empty basic block owned by f.
func (f *Function) NewBlock() *BasicBlock {
	bb := &BasicBlock{Id: len(f.Blocks), Func: f}
	f.Blocks = append(f.Blocks, bb)
	return bb
}

// Link records a CFG edge from -> to.
func (f *Function) Link(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// PostOrder returns the function's blocks in post-order starting from
// the entry block.
func (f *Function) PostOrder() []*BasicBlock {
	var order []*BasicBlock
	seen := make(map[*BasicBlock]bool, len(f.Blocks))

	var walk func(bb *BasicBlock)
	walk = func(bb *BasicBlock) {
		if seen[bb] {
			return
		}

		seen[bb] = true

		for _, s := range bb.Succs {
			walk(s)
		}

		order = append(order, bb)
	}

	walk(f.Entry)
	return order
}

// ReversePostOrder returns the function's blocks in reverse post-order.
// The dataflow stage walks this list backwards to a fixed point.
func (f *Function) ReversePostOrder() []*BasicBlock {
	po := f.PostOrder()
	rpo := make([]*BasicBlock, len(po))

	for i, bb := range po {
		rpo[len(po)-1-i] = bb
	}

	return rpo
}

// AllInstrs iterates every instruction in the function, block by block
// in Blocks order.
func (f *Function) AllInstrs() []Instr {
	var out []Instr

	for _, bb := range f.Blocks {
		out = append(out, bb.Ins...)
	}

	return out
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	neg := i < 0

	if neg {
		i = -i
	}

	var buf [20]byte
	p := len(buf)

	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}

	if neg {
		p--
		buf[p] = '-'
	}

	return string(buf[p:])
}
