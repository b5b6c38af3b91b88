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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/lategc/ir"
)

// Scenario 6: a constant-size allocation request that fits a pool
// class is classified into the pool allocator, its symbol rewritten,
// its args replaced with [ptls, offs, osize], and a tag store for
// offset -8 spliced in immediately after.
func TestCleanupLowersPoolAllocation(t *testing.T) {
	f := ir.NewFunction("f", nil)

	tag := &ir.Const{Val: "mytype"}
	alloc := &ir.Call{
		Kind:  ir.CallGCAllocObj,
		Space: ir.Tracked,
		Size:  &ir.Const{Val: int64(32)},
		Tag:   tag,
	}

	f.Entry.Append(alloc)
	f.Entry.Append(&ir.Return{Val: alloc})

	s := AcquireState(f)
	LocalScan{}.Apply(s)
	Dataflow{}.Apply(s)
	LiveSet{}.Apply(s)

	opts := testOptions()
	changed := Cleanup{Opts: opts}.Apply(s)
	require.True(t, changed)

	require.Equal(t, ir.CallStandard, alloc.Kind)
	require.Equal(t, opts.Symbols.AllocPool, alloc.Symbol)
	require.Len(t, alloc.Args, 3)

	ptls, ok := alloc.Args[0].(*ir.Call)
	require.True(t, ok)
	require.Equal(t, opts.Symbols.ThreadState, ptls.Symbol)

	offs, ok := alloc.Args[1].(*ir.Const)
	require.True(t, ok)
	require.Equal(t, int64(8), offs.Val)

	osize, ok := alloc.Args[2].(*ir.Const)
	require.True(t, ok)
	require.Equal(t, int64(32), osize.Val)

	require.Nil(t, alloc.Size)
	require.Nil(t, alloc.Tag)

	idx := f.Entry.IndexOf(alloc)
	gep, ok := f.Entry.Ins[idx+1].(*ir.GEP)
	require.True(t, ok)
	require.Equal(t, int64(-8), gep.Offset)
	require.Equal(t, ir.Value(alloc), gep.Base)

	store, ok := f.Entry.Ins[idx+2].(*ir.Store)
	require.True(t, ok)
	require.Equal(t, ir.Value(gep), store.Ptr)
	require.Equal(t, ir.Value(tag), store.Val)
}

// A request too big for every pool class goes through the big-object
// allocator with the original size operand, untouched.
func TestCleanupLowersBigAllocation(t *testing.T) {
	f := ir.NewFunction("f", nil)

	size := &ir.Const{Val: int64(1 << 20)}
	alloc := &ir.Call{Kind: ir.CallGCAllocObj, Space: ir.Tracked, Size: size, Tag: &ir.Const{Val: "big"}}

	f.Entry.Append(alloc)
	f.Entry.Append(&ir.Return{Val: alloc})

	s := AcquireState(f)
	LocalScan{}.Apply(s)
	Dataflow{}.Apply(s)
	LiveSet{}.Apply(s)

	opts := testOptions()
	Cleanup{Opts: opts}.Apply(s)

	require.Equal(t, opts.Symbols.AllocBig, alloc.Symbol)
	require.Len(t, alloc.Args, 2)
	require.Equal(t, ir.Value(size), alloc.Args[1])
}

// ptlsFor reuses the thread-state call Rewrite already placed at the
// top of the entry block when a frame was pushed, rather than
// synthesizing a second one.
func TestCleanupReusesExistingThreadState(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic})
	p := f.Args[0]

	x := &ir.Load{Ptr: p, Space: ir.Tracked}
	call := &ir.Call{Kind: ir.CallStandard, Symbol: "foo", Args: []ir.Value{x}, Space: ir.Generic}
	alloc := &ir.Call{Kind: ir.CallGCAllocObj, Space: ir.Tracked, Size: &ir.Const{Val: int64(16)}, Tag: &ir.Const{Val: "t"}}

	f.Entry.Append(x)
	f.Entry.Append(call)
	f.Entry.Append(alloc)
	f.Entry.Append(&ir.Return{Val: alloc})

	runFullPipeline(f, nil)

	var threadStateCalls []*ir.Call
	for _, ins := range f.Entry.Ins {
		if c, ok := ins.(*ir.Call); ok && c.Symbol == DefaultSymbols().ThreadState {
			threadStateCalls = append(threadStateCalls, c)
		}
	}

	require.Len(t, threadStateCalls, 1)
}

// A flush marker is deleted outright with no replacement.
func TestCleanupDropsFlushMarker(t *testing.T) {
	f := ir.NewFunction("f", nil)
	flush := &ir.Call{Kind: ir.CallGCRootFlush, Space: ir.Generic}

	f.Entry.Append(flush)
	f.Entry.Append(&ir.Return{})

	s := AcquireState(f)
	LocalScan{}.Apply(s)
	Dataflow{}.Apply(s)
	LiveSet{}.Apply(s)

	Cleanup{Opts: testOptions()}.Apply(s)

	require.Equal(t, -1, f.Entry.IndexOf(flush))
	require.Len(t, f.Entry.Ins, 1)
}

// CallJL's extra arguments are marshalled through a shared scratch
// array and replaced with a single pointer argument.
func TestCleanupMarshalsJLScratch(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic, ir.Generic})
	e1, e2 := f.Args[0], f.Args[1]

	call := &ir.Call{Kind: ir.CallJL, Symbol: "jlcallee", Extra: []ir.Value{e1, e2}, Space: ir.Generic}
	f.Entry.Append(call)
	f.Entry.Append(&ir.Return{})

	s := AcquireState(f)
	LocalScan{}.Apply(s)
	Dataflow{}.Apply(s)
	LiveSet{}.Apply(s)

	Cleanup{Opts: testOptions()}.Apply(s)

	require.Empty(t, call.Extra)
	require.Len(t, call.Args, 1)

	scratch, ok := call.Args[0].(*ir.Alloca)
	require.True(t, ok)
	require.Equal(t, "jlscratch", scratch.Name)

	idx := f.Entry.IndexOf(call)
	require.GreaterOrEqual(t, idx, 4)
}
