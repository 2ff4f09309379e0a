package logging

import (
	"fmt"
	"io"
	"os"
)

// Status lines for people rather than log processors. They ignore the
// verbosity level.
var (
	// Stdout receives info and success lines.
	Stdout io.Writer = os.Stdout
	// Stderr receives warnings.
	Stderr io.Writer = os.Stderr
)

func say(w io.Writer, mark, format string, args []any) {
	fmt.Fprintf(w, mark+" "+format+"\n", args...)
}

// UserInfo prints an info line to Stdout.
func UserInfo(format string, args ...any) { say(Stdout, "ℹ", format, args) }

// UserSuccess prints a success line to Stdout.
func UserSuccess(format string, args ...any) { say(Stdout, "✓", format, args) }

// UserWarning prints a warning line to Stderr.
func UserWarning(format string, args ...any) { say(Stderr, "⚠", format, args) }
