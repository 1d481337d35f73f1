// Command otusc compiles or interprets a single source file: lex, parse,
// infer, lower to IR, then either run it on the tree-walking VM or emit an
// LLVM object file.
package main

import (
	"fmt"
	"os"

	"otusc/internal/codegen"
	"otusc/internal/config"
	"otusc/internal/diag"
	"otusc/internal/ir"
	"otusc/internal/lexer"
	"otusc/internal/parser"
	"otusc/internal/repl"
	"otusc/internal/types"
	"otusc/internal/vm"
)

func main() {
	opt, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opt.Repl {
		if err := repl.Run(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(opt); err != nil {
		diag.Report(os.Stderr, err)
		os.Exit(1)
	}
}

// run drives the full pipeline for one source file: read, lex, (optionally
// dump tokens and stop), parse, infer, (optionally dump the tree), lower to
// IR, then dispatch to the LLVM backend or the VM.
func run(opt config.Options) error {
	if opt.Src == "" {
		return fmt.Errorf("no source file given")
	}

	src, err := os.ReadFile(opt.Src)
	if err != nil {
		return diag.Wrap(diag.StageLex, err)
	}

	toks, err := lexer.Tokenize(string(src))
	if err != nil {
		return diag.Wrap(diag.StageLex, err)
	}

	if opt.Tokens {
		for _, t := range toks {
			fmt.Println(t)
		}
		return nil
	}

	nodes, err := parser.ParseAll(toks)
	if err != nil {
		return diag.Wrap(diag.StageParse, err)
	}

	nodes, err = types.Infer(nodes)
	if err != nil {
		return diag.Wrap(diag.StageType, err)
	}

	if opt.Verbose {
		for _, n := range nodes {
			fmt.Println(n.String())
		}
	}

	prog := ir.Build(nodes)

	if opt.Verbose {
		fmt.Println(prog.String())
	}

	if opt.LLVM {
		return emitObject(prog, opt)
	}
	return interpret(prog)
}

// interpret runs prog's main entry point on the tree-walking VM and prints
// its result, mirroring a script's exit value.
func interpret(prog *ir.Program) error {
	result, err := vm.RunMain(prog)
	if err != nil {
		return diag.Wrap(diag.StageVM, err)
	}
	fmt.Println(result.String())
	return nil
}

// emitObject lowers prog through the LLVM backend and writes an object
// file to opt.Out (or a.o if unset).
func emitObject(prog *ir.Program, opt config.Options) error {
	out := opt.Out
	if out == "" {
		out = "a.o"
	}

	cg := codegen.New(prog, opt.Src)
	defer cg.Dispose()

	if err := cg.Generate(); err != nil {
		return diag.Wrap(diag.StageCodegen, err)
	}
	if opt.Verbose {
		fmt.Println(cg.Dump())
	}
	if err := cg.EmitObjectFile(out); err != nil {
		return diag.Wrap(diag.StageCodegen, err)
	}
	return nil
}
