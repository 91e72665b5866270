// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	boldGreen  = color.New(color.FgGreen, color.Bold)
	boldRed    = color.New(color.FgRed, color.Bold)
	boldYellow = color.New(color.FgYellow, color.Bold)
)

// Status messages stand apart from the guest console output with a blank
// line before them.

func printGreen(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w)
	boldGreen.Fprintf(w, format+"\n", a...)
}

func printRed(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w)
	boldRed.Fprintf(w, format+"\n", a...)
}

func printYellow(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w)
	boldYellow.Fprintf(w, format+"\n", a...)
}

// printLabel prints a colored label followed by a plain value.
func printLabel(w io.Writer, label, value string) {
	fmt.Fprintln(w)
	boldGreen.Fprintf(w, "%s: ", label)
	fmt.Fprintln(w, value)
}

// printCommand pretty-prints an executed command the way "set -x" does in
// a shell.
func printCommand(w io.Writer, cmd fmt.Stringer) {
	fmt.Fprintf(w, "\n$ %s\n", cmd)
}
