package parser

import (
	"testing"

	"otusc/internal/ast"
	"otusc/internal/lexer"
)

func parseOne(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	nodes, err := ParseAll(toks)
	if err != nil {
		t.Fatalf("ParseAll(%q): %v", src, err)
	}
	if len(nodes) != 1 {
		t.Fatalf("ParseAll(%q) = %d nodes, want 1", src, len(nodes))
	}
	return nodes[0]
}

func TestParsePrecedence(t *testing.T) {
	cases := []struct{ src, want string }{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 < 2 == true", "((1 < 2) == true)"},
		{"1 & 2 | 3", "((1 & 2) | 3)"},
		{"1 | 2 ^ 3", "(1 | (2 ^ 3))"},
		{"true && false || true", "((true && false) || true)"},
		{"a := b", "(a := b)"},
		{"!true", "!true"},
		{"#p", "#p"},
	}
	for _, c := range cases {
		got := parseOne(t, c.src).String()
		if got != c.want {
			t.Errorf("parse(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestParseIf(t *testing.T) {
	n := parseOne(t, "if 1 < 2 then 10 else 20")
	if n.Kind != ast.If {
		t.Fatalf("got kind %v, want If", n.Kind)
	}
	if got, want := n.String(), "(if (1 < 2) then 10 else 20)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseLetIn(t *testing.T) {
	n := parseOne(t, "let x = 1 in x + 1")
	if n.Kind != ast.LetIn || n.Name != "x" {
		t.Fatalf("got %+v", n)
	}
}

func TestParseLetFun(t *testing.T) {
	n := parseOne(t, "let f x y = x + y")
	if n.Kind != ast.LetFun {
		t.Fatalf("got kind %v, want LetFun", n.Kind)
	}
	if len(n.Params) != 2 || n.Params[0] != "x" || n.Params[1] != "y" {
		t.Errorf("got params %v", n.Params)
	}
}

func TestParseLetFunTypedParams(t *testing.T) {
	n := parseOne(t, "let f (x: int) (y: float) = x")
	if len(n.ParamTypes) != 2 {
		t.Fatalf("got %d param types, want 2", len(n.ParamTypes))
	}
	if n.ParamTypes[0].Kind != ast.TyInt {
		t.Errorf("got param 0 kind %v, want TyInt", n.ParamTypes[0].Kind)
	}
	if n.ParamTypes[1].Kind != ast.TyFloat {
		t.Errorf("got param 1 kind %v, want TyFloat", n.ParamTypes[1].Kind)
	}
}

func TestParseLetExtern(t *testing.T) {
	n := parseOne(t, "let extern puts (s: string): int")
	if n.Kind != ast.LetExtern || n.Name != "puts" {
		t.Fatalf("got %+v", n)
	}
	if n.RetType.Kind != ast.TyInt {
		t.Errorf("got ret kind %v, want TyInt", n.RetType.Kind)
	}
}

func TestParseApp(t *testing.T) {
	n := parseOne(t, "f(1, 2, 3)")
	if n.Kind != ast.App || n.Callee != "f" || len(n.Args) != 3 {
		t.Fatalf("got %+v", n)
	}
}

func TestParseCompound(t *testing.T) {
	n := parseOne(t, "{ 1; 2; 3 }")
	if n.Kind != ast.Compound || len(n.Exprs) != 3 {
		t.Fatalf("got %+v", n)
	}
}

func TestParseNew(t *testing.T) {
	n := parseOne(t, "new int")
	if n.Kind != ast.New {
		t.Fatalf("got kind %v, want New", n.Kind)
	}
	if n.PtrType.Kind != ast.TyPtr || n.PtrType.Elem.Kind != ast.TyInt {
		t.Errorf("got %+v", n.PtrType)
	}
}

func TestParseToplevelSequencing(t *testing.T) {
	toks, err := lexer.Tokenize("1; 2; 3")
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := ParseAll(toks)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d top-level nodes, want 1", len(nodes))
	}
	if got, want := nodes[0].String(), "((1 ; 2) ; 3)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseSyntaxError(t *testing.T) {
	toks, err := lexer.Tokenize("let x = ")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAll(toks); err == nil {
		t.Fatal("expected syntax error for truncated let")
	}
}

func TestParseMultipleToplevel(t *testing.T) {
	toks, err := lexer.Tokenize("let x = 1 in x\nlet y = 2 in y")
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := ParseAll(toks)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
}
