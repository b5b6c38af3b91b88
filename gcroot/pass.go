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
	"fmt"
	"os"

	"github.com/cloudwego/lategc/debug"
	"github.com/cloudwego/lategc/ir"
)

// Stage is one step of the pass pipeline, mirroring the
// Apply(*CFG)-shaped Pass interface in optimize.go, generalized to
// operate over the pass's own State alongside the CFG.
type Stage interface {
	Apply(s *State) bool
}

// Run executes the full S1-S6 pipeline over f and reports whether any
// stage changed the function. If the configured symbols can't place
// roots, S5 emits no frame, S6's allocation/JL lowering still runs,
// and Run returns ErrDegraded alongside whatever change was made.
func Run(f *ir.Function, opts ...Option) (bool, error) {
	o := newDefaultOptions()

	for _, opt := range opts {
		opt(o)
	}

	s := AcquireState(f)
	defer ReleaseState(s)

	changed := false

	for _, stage := range []Stage{
		LocalScan{},
		Dataflow{},
		LiveSet{},
		Coloring{Opts: o},
		Rewrite{Opts: o},
		Cleanup{Opts: o},
	} {
		if stage.Apply(s) {
			changed = true
		}
	}

	if dump := debug.DumpState(s); dump != "" {
		fmt.Fprintf(os.Stderr, "gcroot: %s: %s\n", f.Name, dump)
	}

	if !o.Symbols.Resolved() {
		pe := &PassError{Stage: "rewrite", Func: f.Name, Err: ErrDegraded}

		if dump := debug.DumpState(pe); dump != "" {
			fmt.Fprint(os.Stderr, dump)
		}

		return changed, ErrDegraded
	}

	return changed, nil
}
