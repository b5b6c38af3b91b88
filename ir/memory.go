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

// Load reads memory through Ptr. TBAA carries the load-refinement hint
// scan.go consults to recognize an immutable field load.
type Load struct {
	base
	Ptr   Value
	Space AddressSpace
	TBAA  TBAA
}

func (l *Load) irnode()            {}
func (l *Load) setBlock(b *BasicBlock) { l.blk = b }
func (l *Load) Operands() []*Value { return []*Value{&l.Ptr} }

func (l *Load) String() string {
	return fmt.Sprintf("load %s from %s", l.Space, l.Ptr)
}

// Store writes Val through Ptr.
type Store struct {
	base
	Ptr Value
	Val Value
}

func (s *Store) irnode()            {}
func (s *Store) setBlock(b *BasicBlock) { s.blk = b }
func (s *Store) Operands() []*Value { return []*Value{&s.Ptr, &s.Val} }

func (s *Store) String() string {
	return fmt.Sprintf("store %s to %s", s.Val, s.Ptr)
}

// GEP computes a pointer Offset bytes into Base. A GEP off a Tracked
// base produces a Derived pointer; the base-pointer walk recurses
// through it transparently.
type GEP struct {
	base
	Base   Value
	Offset int64
	Space  AddressSpace
}

func (g *GEP) irnode()            {}
func (g *GEP) setBlock(b *BasicBlock) { g.blk = b }
func (g *GEP) Operands() []*Value { return []*Value{&g.Base} }

func (g *GEP) String() string {
	return fmt.Sprintf("gep %s, %d", g.Base, g.Offset)
}

// BitCast changes the static type of Val without changing bits; the
// base-pointer walk always passes transparently through one to Val.
type BitCast struct {
	base
	Val   Value
	Space AddressSpace
}

func (c *BitCast) irnode()            {}
func (c *BitCast) setBlock(b *BasicBlock) { c.blk = b }
func (c *BitCast) Operands() []*Value { return []*Value{&c.Val} }

func (c *BitCast) String() string {
	return fmt.Sprintf("bitcast %s to %s", c.Val, c.Space)
}

// AddrSpaceCast moves Val between address spaces (e.g. Tracked to
// Generic at an FFI boundary). Unlike BitCast, this is a genuine base
// in the base-pointer walk: the result is not transparently the same
// object for rooting purposes once it leaves Tracked/Derived space.
type AddrSpaceCast struct {
	base
	Val  Value
	From AddressSpace
	To   AddressSpace
}

func (c *AddrSpaceCast) irnode()            {}
func (c *AddrSpaceCast) setBlock(b *BasicBlock) { c.blk = b }
func (c *AddrSpaceCast) Operands() []*Value { return []*Value{&c.Val} }

func (c *AddrSpaceCast) String() string {
	return fmt.Sprintf("addrspacecast %s from %s to %s", c.Val, c.From, c.To)
}

// ExtractValue pulls field Index out of an aggregate Agg.
type ExtractValue struct {
	base
	Agg   Value
	Index int
	Space AddressSpace
}

func (e *ExtractValue) irnode()            {}
func (e *ExtractValue) setBlock(b *BasicBlock) { e.blk = b }
func (e *ExtractValue) Operands() []*Value { return []*Value{&e.Agg} }

func (e *ExtractValue) String() string {
	return fmt.Sprintf("extractvalue %s, %d", e.Agg, e.Index)
}

// ExtractFirstField pulls the pointer field out of a UnionRep-kinded
// aggregate. rewrite.go synthesizes this lazily, only at a store site
// that needs the bare pointer out of a union representation.
type ExtractFirstField struct {
	base
	Agg Value
}

func (e *ExtractFirstField) irnode()            {}
func (e *ExtractFirstField) setBlock(b *BasicBlock) { e.blk = b }
func (e *ExtractFirstField) Operands() []*Value { return []*Value{&e.Agg} }

func (e *ExtractFirstField) String() string {
	return fmt.Sprintf("extractfirstfield %s", e.Agg)
}

// MemSet zeroes (or fills) Len bytes starting at Ptr. Used by rewrite.go
// to zero-initialize a freshly pushed gc-frame.
type MemSet struct {
	base
	Ptr Value
	Len int64
	Val byte
}

func (m *MemSet) irnode()            {}
func (m *MemSet) setBlock(b *BasicBlock) { m.blk = b }
func (m *MemSet) Operands() []*Value { return []*Value{&m.Ptr} }

func (m *MemSet) String() string {
	return fmt.Sprintf("memset %s, %d, %d", m.Ptr, m.Val, m.Len)
}
