// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"fmt"
	"slices"
	"strings"
)

// Argument is a single QEMU command line argument with or without a value.
//
// Arguments like -kernel may appear only once in a command line, while
// arguments like -device may be repeated. Unique arguments collide by
// name, repeatable arguments only by name and value.
type Argument struct {
	name       string
	value      string
	repeatable bool
}

// UniqueArg returns a new [Argument] that may appear only once in a
// command line. Multiple values are joined with commas, the way QEMU
// option lists are written.
func UniqueArg(name string, value ...string) Argument {
	return Argument{
		name:  name,
		value: strings.Join(value, ","),
	}
}

// RepeatableArg returns a new [Argument] that may appear multiple times
// in a command line as long as the values differ.
func RepeatableArg(name string, value ...string) Argument {
	return Argument{
		name:       name,
		value:      strings.Join(value, ","),
		repeatable: true,
	}
}

// Name returns the name of the argument, without the leading dash.
func (a Argument) Name() string {
	return a.name
}

// Value returns the value of the argument.
func (a Argument) Value() string {
	return a.value
}

// String implements [fmt.Stringer].
func (a Argument) String() string {
	s := "-" + a.name
	if a.value != "" {
		s += " " + a.value
	}

	return s
}

// collides reports whether two arguments cannot both be part of the same
// command line.
func (a Argument) collides(other Argument) bool {
	if a.name != other.name {
		return false
	}

	if a.repeatable && other.repeatable {
		return a.value == other.value
	}

	return true
}

// BuildArgumentStrings compiles the [Argument]s into an argv slice for use
// with [os/exec.Command].
//
// It returns [ErrArgumentCollision] if an argument violates the uniqueness
// constraints of an earlier one.
func BuildArgumentStrings(args []Argument) ([]string, error) {
	argv := make([]string, 0, len(args)*2)

	for idx, arg := range args {
		if i := slices.IndexFunc(args[:idx], arg.collides); i != -1 {
			return nil, fmt.Errorf(
				"%w: %s, %s",
				ErrArgumentCollision,
				arg.String(),
				args[i].String(),
			)
		}

		argv = append(argv, "-"+arg.name)

		if arg.value != "" {
			argv = append(argv, arg.value)
		}
	}

	return argv, nil
}
