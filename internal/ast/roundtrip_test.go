package ast_test

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"otusc/internal/lexer"
	"otusc/internal/parser"
)

// dump re-parses src, pretty-prints every top-level node and re-parses
// that printed form, asserting the two trees' String() renderings match --
// the round-trip property of spec.md §8 property 1.
func dump(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	nodes, err := parser.ParseAll(toks)
	if err != nil {
		t.Fatalf("ParseAll(%q): %v", src, err)
	}

	var printed string
	for i, n := range nodes {
		if i > 0 {
			printed += "\n"
		}
		printed += n.String()
	}

	toks2, err := lexer.Tokenize(printed)
	if err != nil {
		t.Fatalf("Tokenize(printed %q): %v", printed, err)
	}
	nodes2, err := parser.ParseAll(toks2)
	if err != nil {
		t.Fatalf("ParseAll(printed %q): %v", printed, err)
	}
	if len(nodes2) != len(nodes) {
		t.Fatalf("round-trip node count = %d, want %d", len(nodes2), len(nodes))
	}
	for i := range nodes {
		if nodes2[i].String() != nodes[i].String() {
			t.Errorf("round-trip mismatch at node %d: %q != %q", i, nodes2[i].String(), nodes[i].String())
		}
	}
	return printed
}

func TestRoundTripPrettyPrint(t *testing.T) {
	cases := []string{
		"1 + 2 * 3",
		"if 1 < 2 then 10 else 20",
		"let x = 1 in x + 1",
		"let f x y = x + y",
		"f(1, 2, 3)",
		"{ 1; 2; 3 }",
		"let p = new int in { p := 5; #p }",
		"true && false || !true",
	}
	for _, src := range cases {
		snaps.MatchSnapshot(t, dump(t, src))
	}
}
