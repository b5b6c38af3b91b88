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

// Package rtsym is the small runtime-facing surface the gcroot pass
// calls into: stack-map construction for a colored gc-frame, and the
// symbol names of the fixed push/pop/alloc helpers. It does not
// implement a collector, an allocator, or the thread root chain
// itself -- those are non-goals (SPEC_FULL.md) -- it only describes
// the shape the pass's output assumes.
package rtsym

// Bitmap is a growable bit vector, one bit per frame slot, set when
// that slot holds a pointer the collector must trace.
//
// Grounded on internal/atm/stackmap.go's Bitmap: same grow-by-byte,
// mark-in-place shape.
type Bitmap struct {
	N int
	B []byte
}

func (b *Bitmap) grow() {
	if b.N >= len(b.B)*8 {
		b.B = append(b.B, 0)
	}
}

func (b *Bitmap) mark(i int, v bool) {
	if v {
		b.B[i/8] |= 1 << (i % 8)
	} else {
		b.B[i/8] &^= 1 << (i % 8)
	}
}

// Set marks bit i, growing the bitmap if needed.
func (b *Bitmap) Set(i int, v bool) {
	for i >= b.N {
		b.Append(false)
	}

	b.mark(i, v)
}

// Append adds one more bit to the end of the bitmap.
func (b *Bitmap) Append(v bool) {
	b.grow()
	b.mark(b.N, v)
	b.N++
}

// Get reports whether bit i is set.
func (b *Bitmap) Get(i int) bool {
	if i >= b.N {
		return false
	}

	return b.B[i/8]&(1<<(i%8)) != 0
}

// FrameLayout describes a colored gc-frame's slot layout: a fixed
// two-word header (root count, saved chain link) followed by one slot per
// relocated alloca and then NumColors colored root slots.
type FrameLayout struct {
	NumColors int
	NumAllocas int
}

const HeaderSlots = 2

// Size returns the total slot count of a frame with this layout.
func (f FrameLayout) Size() int {
	return HeaderSlots + f.NumColors + f.NumAllocas
}

// StackMap builds the Bitmap describing which slots of a FrameLayout
// hold tracked pointers: the header slots never do, an alloca slot
// does iff the alloca it was relocated from held a tracked pointer
// type, and every colored root slot -- which sits above the alloca
// slots -- always does.
//
// Grounded on internal/atm/stackmap.go's StackMapBuilder.AddField
// run-length encoding, adapted from "n consecutive non-pointer fields
// then one pointer field" to "frame slots in fixed layout order".
func StackMap(layout FrameLayout, allocaIsPointer []bool) *Bitmap {
	bm := &Bitmap{}

	for i := 0; i < HeaderSlots; i++ {
		bm.Append(false)
	}

	for i := 0; i < layout.NumAllocas; i++ {
		ptr := i < len(allocaIsPointer) && allocaIsPointer[i]
		bm.Append(ptr)
	}

	for i := 0; i < layout.NumColors; i++ {
		bm.Append(true)
	}

	return bm
}
