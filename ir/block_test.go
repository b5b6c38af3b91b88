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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicBlockAppendSetsOwner(t *testing.T) {
	f := NewFunction("f", nil)
	a := &Alloca{Space: Tracked, Slot: -1}

	f.Entry.Append(a)

	require.Equal(t, f.Entry, a.Block())
	require.Equal(t, a, f.Entry.Ins[0])
}

func TestBasicBlockInsertBefore(t *testing.T) {
	f := NewFunction("f", nil)
	ret := &Return{}
	f.Entry.Append(ret)

	mid := &Alloca{Space: Generic, Slot: -1}
	f.Entry.InsertBefore(0, mid)

	require.Equal(t, []Instr{mid, ret}, f.Entry.Ins)
	require.Equal(t, f.Entry, mid.Block())
}

func TestBasicBlockEraseRemovesInstruction(t *testing.T) {
	f := NewFunction("f", nil)
	a := &Alloca{Space: Generic, Slot: -1}
	ret := &Return{}
	f.Entry.Append(a)
	f.Entry.Append(ret)

	f.Entry.Erase(0)

	require.Equal(t, []Instr{ret}, f.Entry.Ins)
}

func TestBasicBlockSpliceAroundOrdersAndAdopts(t *testing.T) {
	f := NewFunction("f", nil)
	call := &Call{Kind: CallStandard, Symbol: "g"}
	ret := &Return{}
	f.Entry.Append(call)
	f.Entry.Append(ret)

	before := &Alloca{Space: Generic, Name: "pre", Slot: -1}
	after := &Alloca{Space: Generic, Name: "post", Slot: -1}

	f.Entry.SpliceAround(
		map[Instr][]Instr{call: {before}},
		map[Instr][]Instr{call: {after}},
	)

	require.Equal(t, []Instr{before, call, after, ret}, f.Entry.Ins)
	require.Equal(t, f.Entry, before.Block())
	require.Equal(t, f.Entry, after.Block())
}

func TestBasicBlockSpliceAroundNoOpWhenEmpty(t *testing.T) {
	f := NewFunction("f", nil)
	ret := &Return{}
	f.Entry.Append(ret)
	orig := f.Entry.Ins

	f.Entry.SpliceAround(nil, nil)

	require.Equal(t, orig, f.Entry.Ins)
}

func TestBasicBlockTermPanicsWithoutTerminator(t *testing.T) {
	f := NewFunction("f", nil)
	f.Entry.Append(&Alloca{Space: Generic, Slot: -1})

	require.Panics(t, func() { f.Entry.Term() })
}

func TestFunctionReversePostOrder(t *testing.T) {
	f := NewFunction("f", []AddressSpace{Generic})
	b1 := f.NewBlock()
	b2 := f.NewBlock()

	f.Link(f.Entry, b1)
	f.Link(b1, b2)

	f.Entry.Append(&Branch{True: b1})
	b1.Append(&Branch{True: b2})
	b2.Append(&Return{})

	rpo := f.ReversePostOrder()

	require.Equal(t, []*BasicBlock{f.Entry, b1, b2}, rpo)
}

func TestFunctionAllInstrs(t *testing.T) {
	f := NewFunction("f", nil)
	a := &Alloca{Space: Generic, Slot: -1}
	ret := &Return{}
	f.Entry.Append(a)
	f.Entry.Append(ret)

	require.Equal(t, []Instr{a, ret}, f.AllInstrs())
}
