package lexer

import (
	"testing"

	"otusc/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestTokenizeOperators(t *testing.T) {
	cases := []struct {
		src  string
		want []token.Kind
	}{
		{"+", []token.Kind{token.PLUS, token.EOF}},
		{"+.", []token.Kind{token.PLUSF, token.EOF}},
		{"- -. * *. / /. % %.", []token.Kind{
			token.MINUS, token.MINUSF, token.STAR, token.STARF,
			token.SLASH, token.SLASHF, token.PERCENT, token.PERCENTF, token.EOF,
		}},
		{"== = != ! >= > <= <", []token.Kind{
			token.EQ, token.ASSIGN, token.NE, token.NOT,
			token.GE, token.GT, token.LE, token.LT, token.EOF,
		}},
		{"&& & || | ^", []token.Kind{
			token.LOGAND, token.BITAND, token.LOGOR, token.BITOR, token.BITXOR, token.EOF,
		}},
		{":= : ; ( ) { } #", []token.Kind{
			token.PTRASSIGN, token.COLON, token.SEMICOLON,
			token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SHARP, token.EOF,
		}},
	}
	for _, c := range cases {
		toks, err := Tokenize(c.src)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", c.src, err)
		}
		got := kinds(toks)
		if len(got) != len(c.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", c.src, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %v, want %v", c.src, i, got[i], c.want[i])
			}
		}
	}
}

func TestTokenizeKeywordsAndIdents(t *testing.T) {
	toks, err := Tokenize("let x = if true then 1 else 2 in x")
	if err != nil {
		t.Fatal(err)
	}
	want := []token.Kind{
		token.LET, token.IDENT, token.ASSIGN, token.IF, token.TRUE, token.THEN,
		token.INT, token.ELSE, token.INT, token.IN, token.IDENT, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := Tokenize("42 3.14")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.INT || toks[0].Text != "42" {
		t.Errorf("got %v, want INT 42", toks[0])
	}
	if toks[1].Kind != token.FLOAT || toks[1].Text != "3.14" {
		t.Errorf("got %v, want FLOAT 3.14", toks[1])
	}
}

func TestTokenizeMalformedFloat(t *testing.T) {
	if _, err := Tokenize("1.2.3"); err == nil {
		t.Fatal("expected error for malformed float")
	}
}

func TestTokenizeString(t *testing.T) {
	toks, err := Tokenize(`"hello world"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != token.STRING || toks[0].Text != "hello world" {
		t.Errorf("got %v, want STRING hello world", toks[0])
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	if _, err := Tokenize(`"hello`); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestTokenizeUnknownChar(t *testing.T) {
	if _, err := Tokenize("@"); err == nil {
		t.Fatal("expected error for unknown character")
	}
}

func TestTokenizeEmpty(t *testing.T) {
	toks, err := Tokenize("")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Kind != token.EOF {
		t.Errorf("got %v, want single EOF", toks)
	}
}

func TestTokenizeTracksLineAndCol(t *testing.T) {
	toks, err := Tokenize("let\nx")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Line != 1 {
		t.Errorf("let: got line %d, want 1", toks[0].Line)
	}
	if toks[1].Line != 2 {
		t.Errorf("x: got line %d, want 2", toks[1].Line)
	}
}
