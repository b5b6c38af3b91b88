/*
 * Copyright 2022 CloudWeGo Authors
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

// Package lategc places GC roots over a single function's SSA-form
// CFG: it numbers every tracked pointer, computes liveness across
// safepoints, colors the live ranges into a minimal set of shared
// root slots, and rewrites the CFG to push a gc-frame, store into
// colored slots where they change, and pop it before every return.
package lategc

import (
	"github.com/cloudwego/lategc/gcroot"
	"github.com/cloudwego/lategc/ir"
)

// Run places roots over f and reports whether the function's CFG was
// changed. A nil error means every root was placed; ErrDegraded means
// the configured symbol table is missing a helper the rewrite stage
// needs, so only placeholder-intrinsic cleanup ran.
func Run(f *ir.Function, opts ...Option) (bool, error) {
	return gcroot.Run(f, opts...)
}

// Option configures a Run call. See WithSymbolResolver,
// WithReturnsTwiceDedicated, and WithMaxInlineSlots.
type Option = gcroot.Option

// WithSymbolResolver overrides the well-known runtime symbol names
// the rewrite and cleanup stages call into.
func WithSymbolResolver(t gcroot.SymbolTable) Option {
	return gcroot.WithSymbolResolver(t)
}

// WithReturnsTwiceDedicated toggles whether numbers live at a
// returns-twice call get a dedicated, never-shared color.
func WithReturnsTwiceDedicated(v bool) Option {
	return gcroot.WithReturnsTwiceDedicated(v)
}

// WithMaxInlineSlots caps the number of root slots a single gc-frame
// may inline before Run panics rather than emitting a pathologically
// large frame.
func WithMaxInlineSlots(n int) Option {
	return gcroot.WithMaxInlineSlots(n)
}

// ErrDegraded is gcroot.ErrDegraded, re-exported so callers need not
// import the gcroot package just to check it.
var ErrDegraded = gcroot.ErrDegraded
