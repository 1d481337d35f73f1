// Package repl implements an interactive read-eval-print loop over the
// tree-walking interpreter: each line is lexed, parsed, type-checked,
// lowered and run together with the let-fun/let-extern declarations of
// earlier lines, so let-bound functions persist across lines.
package repl

import (
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"otusc/internal/ast"
	"otusc/internal/ir"
	"otusc/internal/lexer"
	"otusc/internal/parser"
	"otusc/internal/types"
	"otusc/internal/vm"
)

// ---------------------
// ----- Constants -----
// ---------------------

const prompt = "otus> "

var (
	errColor    = color.New(color.FgRed, color.Bold)
	resultColor = color.New(color.FgYellow)
	bannerColor = color.New(color.FgGreen)
)

// ---------------------
// ----- functions -----
// ---------------------

// Run starts the loop, reading lines from stdin and writing results/errors
// to w, until the user exits (.exit, Ctrl+D).
func Run(w io.Writer) error {
	bannerColor.Fprintln(w, "otusc interactive mode -- type .exit to quit")

	rl, err := readline.New(prompt)
	if err != nil {
		return err
	}
	defer rl.Close()

	var nodes []*ast.Node

	for {
		line, err := rl.Readline()
		if err != nil {
			w.Write([]byte("\n"))
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			return nil
		}
		rl.SaveHistory(line)

		result, err := evalLine(line, &nodes)
		if err != nil {
			errColor.Fprintf(w, "error: %v\n", err)
			continue
		}
		if result != nil {
			resultColor.Fprintln(w, result.String())
		}
	}
}

// evalLine lexes, parses, infers and runs a single line, appending its
// declarations to the accumulated program so later lines can reference
// earlier let-fun/let-extern bindings.
func evalLine(line string, nodes *[]*ast.Node) (*ir.Obj, error) {
	toks, err := lexer.Tokenize(line)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.ParseAll(toks)
	if err != nil {
		return nil, err
	}

	candidate := append(append([]*ast.Node{}, *nodes...), parsed...)
	typed, err := types.Infer(candidate)
	if err != nil {
		return nil, err
	}
	var decls []*ast.Node
	for _, n := range typed {
		if n.Kind == ast.LetFun || n.Kind == ast.LetExtern {
			decls = append(decls, n)
		}
	}
	*nodes = decls

	prog := ir.Build(typed)
	return vm.RunMain(prog)
}
