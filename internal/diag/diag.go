// Package diag formats compiler errors for terminal output, attaching the
// compiler stage that produced each reported failure. It adds no source
// location of its own; a position appears only where the wrapped error's
// message already carries one.
package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Stage identifies which compiler phase produced an error.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageType
	StageIR
	StageVM
	StageCodegen
)

var stageNames = [...]string{
	StageLex: "lex", StageParse: "parse", StageType: "type",
	StageIR: "ir", StageVM: "vm", StageCodegen: "codegen",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Error wraps an underlying error with the stage that produced it.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ---------------------
// ----- functions -----
// ---------------------

// Wrap tags err with the stage that produced it. Wrap returns nil if err is
// nil, so call sites can wrap unconditionally.
func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Stage: stage, Err: err}
}

// Report prints err to w behind a bold red prefix naming its stage
// ("[error]" when err is not a *Error).
func Report(w io.Writer, err error) {
	bold := color.New(color.FgRed, color.Bold)
	var de *Error
	if e, ok := err.(*Error); ok {
		de = e
	}
	if de != nil {
		_, _ = bold.Fprintf(w, "[%s] ", de.Stage)
		_, _ = fmt.Fprintln(w, de.Err)
		return
	}
	_, _ = bold.Fprint(w, "[error] ")
	_, _ = fmt.Fprintln(w, err)
}

// Warn prints a non-fatal warning to w.
func Warn(w io.Writer, format string, args ...any) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprint(w, "[warning] ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
