//go:build !lategc_debug

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

// Package debug exposes textual dumps of the pass's intermediate
// state for diagnosing a specific function's root placement. Without
// the lategc_debug build tag, DumpState is a silent no-op, keeping a
// diagnostic surface out of the default build.
package debug

// DumpState is a no-op without the lategc_debug build tag.
func DumpState(v interface{}) string {
	return ""
}
