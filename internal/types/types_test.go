package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otusc/internal/ast"
	"otusc/internal/lexer"
	"otusc/internal/parser"
)

func parseAndInfer(t *testing.T, src string) []*ast.Node {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	typed, err := Infer(nodes)
	require.NoError(t, err)
	return typed
}

func TestInferLiteralTypes(t *testing.T) {
	nodes := parseAndInfer(t, "1")
	assert.Equal(t, ast.TyInt, nodes[0].Typ.Kind)

	nodes = parseAndInfer(t, "1.5")
	assert.Equal(t, ast.TyFloat, nodes[0].Typ.Kind)

	nodes = parseAndInfer(t, `"hi"`)
	assert.Equal(t, ast.TyString, nodes[0].Typ.Kind)

	nodes = parseAndInfer(t, "true")
	assert.Equal(t, ast.TyBool, nodes[0].Typ.Kind)
}

func TestInferIdentityFunctionPinnedByCallSite(t *testing.T) {
	nodes := parseAndInfer(t, "let id x = x\nid(41)")
	require.Len(t, nodes, 2)
	app := nodes[1]
	require.Equal(t, ast.App, app.Kind)
	assert.Equal(t, ast.TyInt, app.Typ.Kind)
}

func TestInferIfBranchesMustAgree(t *testing.T) {
	nodes := parseAndInfer(t, "if true then 1 else 2")
	assert.Equal(t, ast.TyInt, nodes[0].Typ.Kind)
}

func TestInferIfBranchMismatchFails(t *testing.T) {
	toks, err := lexer.Tokenize(`if true then 1 else "no"`)
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	_, err = Infer(nodes)
	require.Error(t, err)
	var unifyErr *UnifyError
	assert.ErrorAs(t, err, &unifyErr)
}

func TestInferLetInScopeDoesNotLeak(t *testing.T) {
	// The let-bound name must not be visible outside its body: referencing
	// it afterward is a separate, undeclared variable.
	toks, err := lexer.Tokenize("(let x = 1 in x)\nx")
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	_, err = Infer(nodes)
	require.Error(t, err)
	var notFound *VarNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestInferUndeclaredFunctionCallFails(t *testing.T) {
	toks, err := lexer.Tokenize("f(1)")
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	_, err = Infer(nodes)
	require.Error(t, err)
	var notFound *FuncNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestInferArithmeticRequiresInt(t *testing.T) {
	toks, err := lexer.Tokenize(`1 + "x"`)
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	_, err = Infer(nodes)
	require.Error(t, err)
}

func TestInferPointerRoundtrip(t *testing.T) {
	nodes := parseAndInfer(t, "let p = new int in { p := 5; #p }")
	letIn := nodes[0]
	require.Equal(t, ast.LetIn, letIn.Kind)
	assert.Equal(t, ast.TyInt, letIn.Typ.Kind)
}

func TestOccursCheckRejectsSelfReferentialFunctionType(t *testing.T) {
	// Unifying a type variable v with Fun([...], v) must fail: the
	// reference implementation's occurs_check misses exactly this case
	// because it never walks a function's return type.
	v := ast.NewVar("t0")
	fn := ast.NewFun(nil, v)
	subst := Substitution{}
	assert.True(t, occursCheck(v, fn, subst))
	err := unify(v, fn, subst)
	require.Error(t, err)
}

func TestSequenceTypeIsTrailingExpressionType(t *testing.T) {
	nodes := parseAndInfer(t, `1; "tail"`)
	assert.Equal(t, ast.TyString, nodes[0].Typ.Kind)
}

func TestInferIfVoidArmIsTypeError(t *testing.T) {
	// spec.md §9's fourth open question: an if arm ending in a void call.
	// otusc resolves this as a type error, since if is itself a
	// value-producing expression.
	toks, err := lexer.Tokenize("let extern println (s: string): void\nif true then println(\"a\") else println(\"b\")")
	require.NoError(t, err)
	nodes, err := parser.ParseAll(toks)
	require.NoError(t, err)
	_, err = Infer(nodes)
	require.Error(t, err)
	var voidArm *VoidIfArmError
	assert.ErrorAs(t, err, &voidArm)
}
