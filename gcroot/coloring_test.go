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

// Scenario 1: x and y are both live at the single call foo(x, y), so
// they interfere and must land on two distinct colors.
func TestColoringStraightLineCallNeedsTwoColors(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic, ir.Generic})
	p, q := f.Args[0], f.Args[1]

	x := &ir.Load{Ptr: p, Space: ir.Tracked}
	y := &ir.Load{Ptr: q, Space: ir.Tracked}
	call := &ir.Call{Kind: ir.CallStandard, Symbol: "foo", Args: []ir.Value{x, y}, Space: ir.Generic}

	f.Entry.Append(x)
	f.Entry.Append(y)
	f.Entry.Append(call)
	f.Entry.Append(&ir.Return{})

	s := AcquireState(f)
	for _, stage := range []Stage{LocalScan{}, Dataflow{}, LiveSet{}, Coloring{Opts: testOptions()}} {
		stage.Apply(s)
	}

	require.Equal(t, 2, s.NumColors)
	require.NotEqual(t, s.Colors[s.Numbers[x]], s.Colors[s.Numbers[y]])
}

// Scenario 2: two calls whose live ranges never overlap (x dies before
// y is born) may share a single color.
func TestColoringDisjointIntervalsShareColor(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic, ir.Generic})
	p, q := f.Args[0], f.Args[1]

	x := &ir.Load{Ptr: p, Space: ir.Tracked}
	call1 := &ir.Call{Kind: ir.CallStandard, Symbol: "foo", Args: []ir.Value{x}, Space: ir.Generic}
	y := &ir.Load{Ptr: q, Space: ir.Tracked}
	call2 := &ir.Call{Kind: ir.CallStandard, Symbol: "bar", Args: []ir.Value{y}, Space: ir.Generic}

	f.Entry.Append(x)
	f.Entry.Append(call1)
	f.Entry.Append(y)
	f.Entry.Append(call2)
	f.Entry.Append(&ir.Return{})

	s := AcquireState(f)
	for _, stage := range []Stage{LocalScan{}, Dataflow{}, LiveSet{}, Coloring{Opts: testOptions()}} {
		stage.Apply(s)
	}

	require.Equal(t, 1, s.NumColors)
	require.Equal(t, s.Colors[s.Numbers[x]], s.Colors[s.Numbers[y]])
}

// Scenario 5: a, b live at a returns-twice call each get an exclusive
// color never shared with c, which is live only at an ordinary call
// elsewhere and never interferes with a or b.
func TestColoringReturnsTwiceGetsDedicatedColors(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic, ir.Generic, ir.Generic})
	pa, pb, pc := f.Args[0], f.Args[1], f.Args[2]

	a := &ir.Load{Ptr: pa, Space: ir.Tracked}
	b := &ir.Load{Ptr: pb, Space: ir.Tracked}
	rt := &ir.Call{Kind: ir.CallStandard, Symbol: "setjmplike", ReturnsTwice: true, Args: []ir.Value{a, b}, Space: ir.Generic}

	c := &ir.Load{Ptr: pc, Space: ir.Tracked}
	ordinary := &ir.Call{Kind: ir.CallStandard, Symbol: "plain", Args: []ir.Value{c}, Space: ir.Generic}

	f.Entry.Append(a)
	f.Entry.Append(b)
	f.Entry.Append(rt)
	f.Entry.Append(c)
	f.Entry.Append(ordinary)
	f.Entry.Append(&ir.Return{})

	s := AcquireState(f)
	for _, stage := range []Stage{LocalScan{}, Dataflow{}, LiveSet{}, Coloring{Opts: testOptions()}} {
		stage.Apply(s)
	}

	na, nb, nc := s.Numbers[a], s.Numbers[b], s.Numbers[c]
	ca, cb, cc := s.Colors[na], s.Colors[nb], s.Colors[nc]

	require.NotEqual(t, ca, cb)
	require.NotEqual(t, ca, cc)
	require.NotEqual(t, cb, cc)
}

// Disabling the returns-twice carve-out lets a dedicated-looking color
// be reused once the call is no longer pinned, isolating that the
// pinning -- not mere non-interference -- is what forces scenario 5's
// distinct colors.
func TestColoringReturnsTwiceDedicationIsOptional(t *testing.T) {
	f := ir.NewFunction("f", []ir.AddressSpace{ir.Generic, ir.Generic})
	pa, pb := f.Args[0], f.Args[1]

	a := &ir.Load{Ptr: pa, Space: ir.Tracked}
	call1 := &ir.Call{Kind: ir.CallStandard, Symbol: "setjmplike", ReturnsTwice: true, Args: []ir.Value{a}, Space: ir.Generic}
	b := &ir.Load{Ptr: pb, Space: ir.Tracked}
	call2 := &ir.Call{Kind: ir.CallStandard, Symbol: "plain", Args: []ir.Value{b}, Space: ir.Generic}

	f.Entry.Append(a)
	f.Entry.Append(call1)
	f.Entry.Append(b)
	f.Entry.Append(call2)
	f.Entry.Append(&ir.Return{})

	opts := newDefaultOptions()
	WithReturnsTwiceDedicated(false)(opts)

	s := AcquireState(f)
	for _, stage := range []Stage{LocalScan{}, Dataflow{}, LiveSet{}, Coloring{Opts: opts}} {
		stage.Apply(s)
	}

	require.Equal(t, 1, s.NumColors)
	require.Equal(t, s.Colors[s.Numbers[a]], s.Colors[s.Numbers[b]])
}
