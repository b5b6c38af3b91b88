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

import "github.com/cloudwego/lategc/ir"

// testOptions returns an Options value identical to what Run would
// build by default, for tests that drive individual stages directly
// instead of going through Run/pass.go.
func testOptions() *Options {
	return newDefaultOptions()
}

// runThroughLiveSet runs S1-S3 (local scan, dataflow, live-set
// assembly) over f and returns the resulting State, for tests that
// only care about numbering, refinement, and live-set contents.
func runThroughLiveSet(f *ir.Function) *State {
	s := AcquireState(f)

	for _, stage := range []Stage{LocalScan{}, Dataflow{}, LiveSet{}} {
		stage.Apply(s)
	}

	return s
}

// runFullPipeline runs every stage (S1-S6) over f with o (or the
// default Options if o is nil) and returns the resulting State. The
// state is intentionally not released, so callers may inspect it.
func runFullPipeline(f *ir.Function, o *Options) *State {
	if o == nil {
		o = testOptions()
	}

	s := AcquireState(f)

	for _, stage := range []Stage{
		LocalScan{},
		Dataflow{},
		LiveSet{},
		Coloring{Opts: o},
		Rewrite{Opts: o},
		Cleanup{Opts: o},
	} {
		stage.Apply(s)
	}

	return s
}

// callsTo returns every *ir.Call in f whose Symbol matches sym, in
// program order across all blocks.
func callsTo(f *ir.Function, sym string) []*ir.Call {
	var out []*ir.Call

	for _, bb := range f.Blocks {
		for _, ins := range bb.Ins {
			if call, ok := ins.(*ir.Call); ok && call.Symbol == sym {
				out = append(out, call)
			}
		}
	}

	return out
}

// storesIn returns every *ir.Store in bb, in program order.
func storesIn(bb *ir.BasicBlock) []*ir.Store {
	var out []*ir.Store

	for _, ins := range bb.Ins {
		if st, ok := ins.(*ir.Store); ok {
			out = append(out, st)
		}
	}

	return out
}
