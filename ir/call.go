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

import "fmt"

// CallKind distinguishes the handful of call shapes the pass treats
// specially, beyond an ordinary safepoint-bearing call.
type CallKind uint8

const (
	// CallStandard is an ordinary call: a safepoint unless its
	// symbol is on the non-safepoint whitelist (see NonSafepoint).
	CallStandard CallKind = iota

	// CallGCRootFlush is the placeholder intrinsic the front-end
	// emits to mark "nothing more is rooted from here"; cleanup.go
	// lowers it by deleting it outright, with no replacement.
	CallGCRootFlush

	// CallGCAllocObj is the placeholder allocation intrinsic;
	// cleanup.go classifies it by size into a pool-alloc or
	// big-alloc runtime call and stores the type tag.
	CallGCAllocObj

	// CallJL is a non-standard-calling-convention call whose extra
	// arguments (beyond the first, fixed ones) are marshalled
	// through a shared scratch array rather than passed directly.
	CallJL

	// CallJLWithReceiver is CallJL, except the first scratch-array
	// argument is a receiver object passed directly (not through the
	// array).
	CallJLWithReceiver
)

func (k CallKind) String() string {
	switch k {
	case CallStandard:
		return "standard"
	case CallGCRootFlush:
		return "gcroot.flush"
	case CallGCAllocObj:
		return "gcroot.alloc"
	case CallJL:
		return "jlcall"
	case CallJLWithReceiver:
		return "jlcall.f"
	default:
		return fmt.Sprintf("ir.CallKind(%d)", int(k))
	}
}

// NonSafepoint is the whitelist of callee symbols known not to allocate
// or trigger GC, so a call to them needn't be treated as a safepoint.
// Grounded in the source pass's isLoadFromConstGV/NoteUse safepoint
// exemption for a fixed set of runtime helpers.
var NonSafepoint = map[string]bool{
	"memcmp":              true,
	"memcpy":              true,
	"memmove":              true,
	"pointer_from_objref": true,
}

// Call is a function call. For CallGCAllocObj, Size and Tag carry the
// requested allocation size and type tag operand. For CallJL and
// CallJLWithReceiver, Extra holds the arguments marshalled through the
// shared scratch array rather than passed directly. ResultKind flags a
// value-returning call whose result is a UnionRep (tracked-pointer,
// tag-selector) aggregate rather than a bare pointer; Scalar otherwise.
type Call struct {
	base
	Kind         CallKind
	Symbol       string
	Callee       Value
	Args         []Value
	Extra        []Value
	Size         Value
	Tag          Value
	Space        AddressSpace
	ResultKind   Kind
	ReturnsTwice bool
	HasBundle    bool
}

func (c *Call) irnode()            {}
func (c *Call) setBlock(b *BasicBlock) { c.blk = b }

func (c *Call) Operands() []*Value {
	out := make([]*Value, 0, len(c.Args)+len(c.Extra)+2)

	if c.Callee != nil {
		out = append(out, &c.Callee)
	}

	for i := range c.Args {
		out = append(out, &c.Args[i])
	}

	for i := range c.Extra {
		out = append(out, &c.Extra[i])
	}

	if c.Size != nil {
		out = append(out, &c.Size)
	}

	if c.Tag != nil {
		out = append(out, &c.Tag)
	}

	return out
}

// IsSafepoint reports whether this call must be treated as a point
// where any live Tracked/Derived value needs a materialized root.
func (c *Call) IsSafepoint() bool {
	if c.Kind == CallGCRootFlush {
		return false
	}

	return !NonSafepoint[c.Symbol]
}

func (c *Call) String() string {
	name := c.Symbol

	if name == "" {
		name = fmt.Sprintf("%s", c.Callee)
	}

	return fmt.Sprintf("call[%s] %s(%d args)", c.Kind, name, len(c.Args)+len(c.Extra))
}

// VectorValue groups Lanes scalar Values as the elements of a single
// SSA vector value. Each lane is numbered independently by scan.go,
// exactly as the source pass assigns one value number per vector lane.
type VectorValue struct {
	base
	Space AddressSpace
	Lanes []Value
}

func (v *VectorValue) irnode()            {}
func (v *VectorValue) setBlock(b *BasicBlock) { v.blk = b }

func (v *VectorValue) Operands() []*Value {
	out := make([]*Value, len(v.Lanes))

	for i := range v.Lanes {
		out[i] = &v.Lanes[i]
	}

	return out
}

func (v *VectorValue) String() string {
	return fmt.Sprintf("vector %s, %d lanes", v.Space, len(v.Lanes))
}
