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

package gcroot

import "fmt"

// Options controls how the pass runs. It is built up with Option
// functions over newDefaultOptions, the same functional-options shape
// options.go/internal/opts use elsewhere.
type Options struct {
	Symbols               SymbolTable
	ReturnsTwiceDedicated bool
	MaxInlineSlots        int
}

func newDefaultOptions() *Options {
	return &Options{
		Symbols:               DefaultSymbols(),
		ReturnsTwiceDedicated: true,
		MaxInlineSlots:        256,
	}
}

// Option is the property setter function for Options.
type Option func(*Options)

// WithSymbolResolver overrides the well-known runtime symbol names the
// rewrite and cleanup stages call into. Passing a SymbolTable missing
// ThreadState/PushFrame/PopFrame degrades the pass to cleanup-only.
func WithSymbolResolver(t SymbolTable) Option {
	return func(o *Options) { o.Symbols = t }
}

// WithReturnsTwiceDedicated toggles whether numbers live at a
// returns-twice call get a dedicated, never-shared color. Disabling
// this is unsound in the presence of a real setjmp-like call and
// exists only for constructing test fixtures that don't have one.
func WithReturnsTwiceDedicated(v bool) Option {
	return func(o *Options) { o.ReturnsTwiceDedicated = v }
}

// WithMaxInlineSlots caps the number of root slots a single gc-frame
// may inline before the pass panics rather than emitting a
// pathologically large frame.
func WithMaxInlineSlots(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("gcroot: invalid max inline slots: %d", n))
	}

	return func(o *Options) { o.MaxInlineSlots = n }
}
