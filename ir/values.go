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

// Arg is a function argument. It has no owning block: arguments are
// live from function entry.
type Arg struct {
	Index int
	Space AddressSpace
	Name  string
}

func (a *Arg) irnode()          {}
func (a *Arg) Block() *BasicBlock { return nil }

func (a *Arg) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%%arg.%s", a.Name)
	}

	return fmt.Sprintf("%%arg%d", a.Index)
}

// Const is a compile-time constant, including the null pointer
// constant (Space == Generic, IsNull == true) which the base-pointer
// walk treats as its own base.
type Const struct {
	Space  AddressSpace
	IsNull bool
	Val    interface{}
}

func (c *Const) irnode()          {}
func (c *Const) Block() *BasicBlock { return nil }

func (c *Const) String() string {
	if c.IsNull {
		return "null"
	}

	return fmt.Sprintf("const(%v)", c.Val)
}

// Alloca reserves a stack slot. The rewrite stage relocates Allocas of
// Tracked pointers into gc-frame slots and leaves the rest untouched.
type Alloca struct {
	base
	Space AddressSpace
	Name  string

	// Slot is set by rewrite.go once this alloca has been relocated
	// into the gc-frame; -1 until then.
	Slot int
}

func (a *Alloca) irnode() {}

func (a *Alloca) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%%%s = alloca %s", a.Name, a.Space)
	}

	return fmt.Sprintf("%%alloca = alloca %s", a.Space)
}

func (a *Alloca) setBlock(b *BasicBlock) { a.blk = b }

// NewAlloca appends a new Alloca instruction to the entry block of f.
func NewAlloca(f *Function, space AddressSpace, name string) *Alloca {
	a := &Alloca{Space: space, Name: name, Slot: -1}
	f.Entry.Append(a)
	return a
}
