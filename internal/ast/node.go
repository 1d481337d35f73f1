package ast

import (
	"strconv"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// NodeKind tags the variant held by a Node value.
type NodeKind int

const (
	Number NodeKind = iota
	Float
	String
	Bool
	Var
	Binary
	Unary
	If
	LetIn
	LetFun
	LetExtern
	App
	Compound
	New
)

// Op enumerates both the binary and unary operators of the language. Binary
// and unary nodes each use the subset relevant to them.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpModF
	OpGt
	OpLt
	OpGe
	OpLe
	OpEq
	OpNe
	OpLogAnd
	OpLogOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpPtrAssign
	OpSeq
	OpDeref
	OpNot
)

// Node is the tagged expression tree produced by the parser. Every Node
// carries a Typ slot, Unknown until the type inferencer resolves it; the
// remaining fields are populated according to Kind, the same way the
// original source's anonymous union is populated according to NodeType.
type Node struct {
	Kind NodeKind
	Typ  *Type

	// Number / Float / String / Bool literals.
	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool

	// Var.
	Ident string

	// Binary / Unary.
	BinOp Op
	Lhs   *Node
	Rhs   *Node
	UnOp  Op
	Expr  *Node

	// If.
	Cond *Node
	Then *Node
	Else *Node

	// LetIn: `let Name = Value in Body`.
	Name  string
	Value *Node
	Body  *Node

	// LetFun / LetExtern.
	Params     []string
	ParamTypes []*Type
	RetType    *Type // LetExtern only; LetFun's return type lives in Typ.Ret after inference.
	FunBody    *Node // LetFun only.

	// App.
	Callee string
	Args   []*Node

	// Compound.
	Exprs []*Node

	// New: yields a Ptr(PtrType) value.
	PtrType *Type
}

// ---------------------
// ----- functions -----
// ---------------------

func newNode(kind NodeKind) *Node {
	return &Node{Kind: kind, Typ: NewPrimitive(TyUnknown)}
}

// NewNumber returns an integer literal node.
func NewNumber(v int64) *Node { n := newNode(Number); n.IntVal = v; return n }

// NewFloat returns a float literal node.
func NewFloat(v float64) *Node { n := newNode(Float); n.FloatVal = v; return n }

// NewString returns a string literal node.
func NewString(v string) *Node { n := newNode(String); n.StrVal = v; return n }

// NewBool returns a boolean literal node.
func NewBool(v bool) *Node { n := newNode(Bool); n.BoolVal = v; return n }

// NewVarNode returns a variable reference node.
func NewVarNode(ident string) *Node { n := newNode(Var); n.Ident = ident; return n }

// NewBinary returns a binary operator node.
func NewBinary(op Op, lhs, rhs *Node) *Node {
	n := newNode(Binary)
	n.BinOp, n.Lhs, n.Rhs = op, lhs, rhs
	return n
}

// NewUnary returns a unary operator node.
func NewUnary(op Op, expr *Node) *Node {
	n := newNode(Unary)
	n.UnOp, n.Expr = op, expr
	return n
}

// NewIf returns a conditional expression node.
func NewIf(cond, then, els *Node) *Node {
	n := newNode(If)
	n.Cond, n.Then, n.Else = cond, then, els
	return n
}

// NewLetIn returns a `let name = value in body` node.
func NewLetIn(name string, value, body *Node) *Node {
	n := newNode(LetIn)
	n.Name, n.Value, n.Body = name, value, body
	return n
}

// NewLetFun returns a top-level function definition node.
func NewLetFun(name string, params []string, paramTypes []*Type, body *Node) *Node {
	n := newNode(LetFun)
	n.Name, n.Params, n.ParamTypes, n.FunBody = name, params, paramTypes, body
	return n
}

// NewLetExtern returns a top-level extern declaration node.
func NewLetExtern(name string, params []string, paramTypes []*Type, retType *Type) *Node {
	n := newNode(LetExtern)
	n.Name, n.Params, n.ParamTypes, n.RetType = name, params, paramTypes, retType
	return n
}

// NewApp returns a named function application node.
func NewApp(callee string, args []*Node) *Node {
	n := newNode(App)
	n.Callee, n.Args = callee, args
	return n
}

// NewCompound returns a brace-delimited block node.
func NewCompound(exprs []*Node) *Node {
	n := newNode(Compound)
	n.Exprs = exprs
	return n
}

// NewNew returns a heap allocation node yielding Ptr(ptrType).
func NewNew(ptrType *Type) *Node {
	n := newNode(New)
	n.PtrType = ptrType
	return n
}

// binOpText and unOpText render operators the way the source language
// spells them, used by String for pretty-printing and round-trip tests.
var binOpText = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpAddF: "+.", OpSubF: "-.", OpMulF: "*.", OpDivF: "/.", OpModF: "%.",
	OpGt: ">", OpLt: "<", OpGe: ">=", OpLe: "<=", OpEq: "==", OpNe: "!=",
	OpLogAnd: "&&", OpLogOr: "||", OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
	OpPtrAssign: ":=", OpSeq: ";",
}

var unOpText = map[Op]string{OpDeref: "#", OpNot: "!"}

// String renders n as the language's own surface syntax, the same shape as
// the original source's Node::print_node, and used both for -vb dumps and
// the parse(print(ast)) == ast round-trip property.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case Number:
		return strconv.FormatInt(n.IntVal, 10)
	case Float:
		s := strconv.FormatFloat(n.FloatVal, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case String:
		return "\"" + n.StrVal + "\""
	case Bool:
		if n.BoolVal {
			return "true"
		}
		return "false"
	case Var:
		return n.Ident
	case Binary:
		return "(" + n.Lhs.String() + " " + binOpText[n.BinOp] + " " + n.Rhs.String() + ")"
	case Unary:
		return unOpText[n.UnOp] + n.Expr.String()
	case If:
		return "(if " + n.Cond.String() + " then " + n.Then.String() + " else " + n.Else.String() + ")"
	case LetIn:
		return "(let " + n.Name + " = " + n.Value.String() + " in " + n.Body.String() + ")"
	case LetFun:
		s := "(let " + n.Name
		for _, p := range n.Params {
			s += " " + p
		}
		s += " = " + n.FunBody.String() + ")"
		return s
	case LetExtern:
		s := "(let extern " + n.Name
		for i, p := range n.Params {
			s += " (" + p + ": " + n.ParamTypes[i].String() + ")"
		}
		return s + " : " + n.RetType.String() + ")"
	case App:
		s := n.Callee + "("
		for i, a := range n.Args {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		return s + ")"
	case Compound:
		s := "{"
		for _, e := range n.Exprs {
			s += e.String() + "; "
		}
		return s + "}"
	case New:
		return "(new " + n.PtrType.Elem.String() + ")"
	default:
		return "<unknown node>"
	}
}
