package ir

import (
	"testing"

	"otusc/internal/lexer"
	"otusc/internal/parser"
	"otusc/internal/types"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	nodes, err := parser.ParseAll(toks)
	if err != nil {
		t.Fatalf("ParseAll(%q): %v", src, err)
	}
	nodes, err = types.Infer(nodes)
	if err != nil {
		t.Fatalf("Infer(%q): %v", src, err)
	}
	return Build(nodes)
}

func TestBuildSynthesizesMain(t *testing.T) {
	prog := build(t, "1 + 2")
	main, ok := prog.Funcs["main"]
	if !ok {
		t.Fatal("expected a synthesized main function")
	}
	last := main.Code[len(main.Code)-1]
	if last.Kind != Ret {
		t.Errorf("main's last instruction = %v, want RET", last.Kind)
	}
}

func TestBuildLetFunRegistersFunc(t *testing.T) {
	prog := build(t, "let f x = x + 1\nf(41)")
	f, ok := prog.Funcs["f"]
	if !ok {
		t.Fatal("expected function f in program")
	}
	if f.IsExtern {
		t.Error("f should not be extern")
	}
	if len(f.Code) == 0 || f.Code[len(f.Code)-1].Kind != Ret {
		t.Error("function body should end in RET")
	}
}

func TestBuildLetExternNoCode(t *testing.T) {
	prog := build(t, "let extern println (s: string): void\n0")
	f, ok := prog.Funcs["println"]
	if !ok {
		t.Fatal("expected extern println in program")
	}
	if !f.IsExtern {
		t.Error("println should be marked extern")
	}
	if len(f.Code) != 0 {
		t.Errorf("extern function should carry no code, got %d instructions", len(f.Code))
	}
}

func TestBuildIfEmitsBranchWithInlineCode(t *testing.T) {
	prog := build(t, "if 1 < 2 then 10 else 20")
	main := prog.Funcs["main"]
	var found bool
	for _, instr := range main.Code {
		if instr.Kind == Br {
			found = true
		}
	}
	if !found {
		t.Error("expected a BR instruction lowered from if")
	}
}

func TestBuildSequenceDropsLhsValue(t *testing.T) {
	prog := build(t, "1; 2")
	main := prog.Funcs["main"]
	var pops int
	for _, instr := range main.Code {
		if instr.Kind == Pop {
			pops++
		}
	}
	if pops == 0 {
		t.Error("expected a POP discarding the sequence's left operand")
	}
}

func TestBuildPointerOpsLowerToPtrInstructions(t *testing.T) {
	prog := build(t, "let p = new int in { p := 5; #p }")
	main := prog.Funcs["main"]
	var sawAlloc, sawStorePtr, sawLoadPtr bool
	for _, instr := range main.Code {
		switch instr.Kind {
		case Alloc:
			sawAlloc = true
		case StorePtr:
			sawStorePtr = true
		case LoadPtr:
			sawLoadPtr = true
		}
	}
	if !sawAlloc || !sawStorePtr || !sawLoadPtr {
		t.Errorf("missing pointer instructions: alloc=%v store=%v load=%v", sawAlloc, sawStorePtr, sawLoadPtr)
	}
}

func TestBuildCallArityMatchesArgCount(t *testing.T) {
	prog := build(t, "let f x y = x + y\nf(1, 2)")
	main := prog.Funcs["main"]
	var callArity int = -1
	for _, instr := range main.Code {
		if instr.Kind == Call {
			callArity = instr.Operand.Arity
		}
	}
	if callArity != 2 {
		t.Errorf("call arity = %d, want 2", callArity)
	}
}
