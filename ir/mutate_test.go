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

func TestReplaceAllUsesWithRewritesOperand(t *testing.T) {
	f := NewFunction("f", nil)
	old := &Alloca{Space: Tracked, Name: "old", Slot: -1}
	gep := &GEP{Base: old, Offset: 8, Space: Derived}
	f.Entry.Append(old)
	f.Entry.Append(gep)
	f.Entry.Append(&Return{})

	repl := &Alloca{Space: Tracked, Name: "new", Slot: -1}

	ReplaceAllUsesWith(f, old, repl)

	require.Equal(t, Value(repl), gep.Base)
}

func TestReplaceAllUsesWithPatchesPhiIncoming(t *testing.T) {
	f := NewFunction("f", nil)
	b1 := f.NewBlock()
	b2 := f.NewBlock()
	join := f.NewBlock()

	f.Link(f.Entry, b1)
	f.Link(f.Entry, b2)
	f.Link(b1, join)
	f.Link(b2, join)

	old := &Alloca{Space: Tracked, Slot: -1}
	f.Entry.Append(old)
	f.Entry.Append(&Branch{True: b1, False: b2})
	b1.Append(&Branch{True: join})
	b2.Append(&Branch{True: join})

	phi := &Phi{Space: Tracked, Incoming: map[*BasicBlock]Value{b1: old, b2: old}}
	join.Append(phi)
	join.Append(&Return{})

	repl := &Alloca{Space: Tracked, Slot: -1}
	ReplaceAllUsesWith(f, old, repl)

	require.Equal(t, Value(repl), phi.Incoming[b1])
	require.Equal(t, Value(repl), phi.Incoming[b2])
}

func TestReplaceAllUsesWithPatchesSelectAndReturn(t *testing.T) {
	f := NewFunction("f", nil)
	old := &Alloca{Space: Tracked, Slot: -1}
	sel := &Select{Cond: &Const{Val: true}, True: old, False: old, Space: Tracked}
	f.Entry.Append(old)
	f.Entry.Append(sel)
	ret := &Return{Val: old}
	f.Entry.Append(ret)

	repl := &Alloca{Space: Tracked, Slot: -1}
	ReplaceAllUsesWith(f, old, repl)

	require.Equal(t, Value(repl), sel.True)
	require.Equal(t, Value(repl), sel.False)
	require.Equal(t, Value(repl), ret.Val)
}

func TestEraseRemovesFromOwningBlock(t *testing.T) {
	f := NewFunction("f", nil)
	a := &Alloca{Space: Generic, Slot: -1}
	f.Entry.Append(a)
	f.Entry.Append(&Return{})

	Erase(a)

	require.Equal(t, -1, f.Entry.IndexOf(a))
}

func TestEraseTerminatorPanics(t *testing.T) {
	f := NewFunction("f", nil)
	ret := &Return{}
	f.Entry.Append(ret)

	require.Panics(t, func() { Erase(ret) })
}
