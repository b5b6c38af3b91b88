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

import "github.com/cloudwego/lategc/rtsym"

// SymbolTable names the fixed runtime helper symbols the rewrite and
// cleanup stages call into: the frame/thread-chain representation
// itself is out of scope (SPEC_FULL.md non-goals), so this pass only
// ever calls these by name, never defines them. It is a type alias
// for rtsym.Symbols so gcroot's public Option surface doesn't force
// callers who only want to override a symbol name to also import
// rtsym directly.
type SymbolTable = rtsym.Symbols

// DefaultSymbols returns the well-known symbol names a normal build
// provides, delegating to rtsym.Default so the pass and its runtime
// surface agree on one source of truth for the names.
func DefaultSymbols() SymbolTable {
	return rtsym.Default()
}
