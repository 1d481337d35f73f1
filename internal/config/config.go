// Package config parses command-line options the same hand-rolled way the
// original compiler does: a plain switch over os.Args, no flag-parsing
// library, with a tabwriter-formatted -help screen.
package config

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds every flag this compiler accepts.
type Options struct {
	Src     string // Path to source file.
	Out     string // Path to output file (object file when LLVM is set).
	Verbose bool   // Print syntax tree and IR dumps.
	Tokens  bool   // Print the token stream and exit.
	LLVM    bool   // Use the LLVM backend and emit an object file instead of interpreting.
	Repl    bool   // Start an interactive read-eval-print loop instead of compiling a file.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "otusc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses os.Args[1:] into an Options value.
func ParseArgs() (Options, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (Options, error) {
	opt := Options{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-h", "--h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-v", "--v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		case "-ll":
			opt.LLVM = true
		case "-vm":
			opt.LLVM = false
		case "-vb":
			opt.Verbose = true
		case "-ts":
			opt.Tokens = true
		case "-repl":
			opt.Repl = true
		case "-o":
			if i+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i])
			}
			if strings.HasPrefix(args[i+1], "-") {
				return opt, fmt.Errorf("expected path to output file, got new flag %s", args[i+1])
			}
			i++
			opt.Out = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i])
			}
			opt.Src = args[i]
		}
	}
	return opt, nil
}

// printHelp prints a usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints the application version and exits.")
	_, _ = fmt.Fprintln(w, "-ll\tUse the LLVM backend and emit an object file instead of interpreting.")
	_, _ = fmt.Fprintln(w, "-vm\tInterpret the program on the VM (the default).")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output object file (requires -ll).")
	_, _ = fmt.Fprintln(w, "-ts\tPrint the token stream and exit.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: print the syntax tree and IR dump to stdout.")
	_, _ = fmt.Fprintln(w, "-repl\tStart an interactive read-eval-print loop.")
	_ = w.Flush()
}
