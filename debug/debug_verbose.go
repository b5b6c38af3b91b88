//go:build lategc_debug

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

package debug

import "github.com/davecgh/go-spew/spew"

// DumpState renders v (a *gcroot.State, a NumberSet, or an
// interference graph) as a struct dump, the same way pass_regalloc.go
// calls spew.Dump(regs) to inspect register-allocation state.
func DumpState(v interface{}) string {
	return spew.Sdump(v)
}
