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

package rtsym

// Symbols names the well-known runtime helpers the rewrite/cleanup
// stages call by name. The functions themselves are never defined by
// this module -- they belong to the collector/runtime, which is out
// of scope -- this just gives the gcroot package one place to agree
// on their names with whatever runtime actually links them in.
//
// Grounded on internal/atm/gcwb_amd64.go's write-barrier symbol
// resolution (wbStoreNull/wbStorePointer call into runtime-provided
// write-barrier entry points by fixed name) and on
// internal/atm/stackmap.go's own //go:linkname mallocgc pattern for
// reaching into the runtime without defining it locally.
type Symbols struct {
	// ThreadState returns the calling goroutine's thread-local state,
	// the handle PushFrame/PopFrame use to splice into the root chain.
	ThreadState string

	// PushFrame(threadState, nslots) pushes a new, zeroed gc-frame of
	// nslots pointer-sized slots, the two header words included, onto
	// the thread's root chain and returns a pointer to it.
	PushFrame string

	// PopFrame(frame) unlinks frame from the thread's root chain.
	PopFrame string

	// AllocPool(threadState, poolOffset, objectSize) allocates a small,
	// pool-backed object.
	AllocPool string

	// AllocBig(threadState, size) allocates a large object directly.
	AllocBig string
}

// Default returns the symbol names a normal build provides.
func Default() Symbols {
	return Symbols{
		ThreadState: "runtime.lategc_threadstate",
		PushFrame:   "runtime.lategc_pushframe",
		PopFrame:    "runtime.lategc_popframe",
		AllocPool:   "runtime.lategc_allocpool",
		AllocBig:    "runtime.lategc_allocbig",
	}
}

// Resolved reports whether every symbol needed to place roots is
// present. When the thread-state getter is missing, the pass degrades
// to cleanup-only -- it still lowers placeholder intrinsics, but
// performs no frame push/pop or store placement -- mirroring the
// source pass's doInitialization fallback when ptls_getter can't be
// resolved.
func (s Symbols) Resolved() bool {
	return s.ThreadState != "" && s.PushFrame != "" && s.PopFrame != ""
}
