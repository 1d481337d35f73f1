// Package ir lowers a type-checked *ast.Node forest into a stack-based
// linear instruction set: the common representation consumed by both the
// tree-walking interpreter in internal/vm and the LLVM emitter in
// internal/codegen.
package ir

import (
	"fmt"
	"strings"

	"otusc/internal/ast"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// InstrKind identifies a single stack-machine opcode.
type InstrKind int

const (
	Add InstrKind = iota
	Sub
	Mul
	Div
	Mod
	AddF
	SubF
	MulF
	DivF
	ModF
	BitAnd
	BitOr
	BitXor
	LogAnd
	LogOr
	Not
	Push
	Pop
	Store
	Load
	StorePtr
	LoadPtr
	Alloc
	Call
	Br
	Eq
	NotEq
	Greater
	Less
	GreaterEq
	LessEq
	Ret
)

var instrNames = [...]string{
	Add: "ADD", Sub: "SUB", Mul: "MUL", Div: "DIV", Mod: "MOD",
	AddF: "ADDF", SubF: "SUBF", MulF: "MULF", DivF: "DIVF", ModF: "MODF",
	BitAnd: "BITAND", BitOr: "BITOR", BitXor: "BITXOR",
	LogAnd: "LOGAND", LogOr: "LOGOR", Not: "NOT",
	Push: "PUSH", Pop: "POP", Store: "STORE", Load: "LOAD",
	StorePtr: "STORE_PTR", LoadPtr: "LOAD_PTR", Alloc: "ALLOC", Call: "CALL",
	Br: "BR", Eq: "EQ", NotEq: "NOT_EQ", Greater: "GREATER", Less: "LESS",
	GreaterEq: "GREATER_EQ", LessEq: "LESS_EQ", Ret: "RET",
}

func (k InstrKind) String() string {
	if int(k) >= 0 && int(k) < len(instrNames) {
		return instrNames[k]
	}
	return "UNKNOWN"
}

// ObjKind tags the variant held by an Obj, the payload instructions carry
// as their operand.
type ObjKind int

const (
	ObjInt ObjKind = iota
	ObjFloat
	ObjBool
	ObjName
	ObjCode
	ObjString
	ObjType
	// ObjPtr is a runtime-only kind never produced by Build: the VM
	// (internal/vm) stamps it onto the result of an Alloc instruction,
	// with Number holding the heap slot index.
	ObjPtr
)

// Obj is an instruction operand: an immediate literal, a name reference
// (variable/function/call target), an inline code block (an if arm), or a
// type tag (an ALLOC's element type).
type Obj struct {
	Kind   ObjKind
	Number int64
	Float  float64
	Bool   bool
	Name   string
	Code   []Instr
	Str    string
	Ty     *ast.Type
	Arity  int // set on Call's Name object: argument count.
}

// Instr is one stack-machine instruction: an opcode plus its operand,
// which is nil for opcodes that only touch the stack.
type Instr struct {
	Kind    InstrKind
	Operand *Obj
}

// Func is one compiled function body: its parameter names/types, return
// type, and code. IsExtern functions carry no Code of their own -- the
// callee is resolved externally at link/codegen time.
type Func struct {
	Name     string
	Args     []string
	ArgTypes []*ast.Type
	RetType  *ast.Type
	Code     []Instr
	IsExtern bool
}

// Program is the complete lowering output: every user-defined and extern
// function, plus the synthesized "main" entry point, in declaration order.
type Program struct {
	Funcs map[string]*Func
	Order []string
}

// ---------------------
// ----- functions -----
// ---------------------

// Build lowers nodes -- top-level let-fun/let-extern declarations and bare
// top-level expressions alike -- into a Program. Bare top-level
// expressions are collected into a synthesized "main" function whose
// result is the last such expression's value (spec.md §8's VM scenarios
// all read main's result back), falling back to a plain 0 only when the
// program has no value-producing top-level expression at all.
func Build(nodes []*ast.Node) *Program {
	p := &Program{Funcs: make(map[string]*Func)}

	var exprs []*ast.Node
	for _, n := range nodes {
		switch n.Kind {
		case ast.LetFun:
			genLetFun(n, p)
		case ast.LetExtern:
			genLetExtern(n, p)
		default:
			exprs = append(exprs, n)
		}
	}

	var mainCode []Instr
	for i, n := range exprs {
		gen(n, &mainCode)
		if i != len(exprs)-1 {
			mainCode = append(mainCode, Instr{Kind: Pop})
		}
	}
	if len(exprs) == 0 {
		mainCode = append(mainCode, Instr{Kind: Push, Operand: &Obj{Kind: ObjInt, Number: 0}})
	}
	mainCode = append(mainCode, Instr{Kind: Ret})
	p.define(&Func{Name: "main", RetType: ast.NewPrimitive(ast.TyInt), Code: mainCode})

	return p
}

func (p *Program) define(f *Func) {
	if _, exists := p.Funcs[f.Name]; !exists {
		p.Order = append(p.Order, f.Name)
	}
	p.Funcs[f.Name] = f
}

// genLetFun registers a top-level function definition as a Func.
func genLetFun(n *ast.Node, p *Program) {
	var code []Instr
	gen(n.FunBody, &code)
	code = append(code, Instr{Kind: Ret})
	p.define(&Func{
		Name: n.Name, Args: n.Params,
		ArgTypes: n.Typ.Args, RetType: n.Typ.Ret, Code: code,
	})
}

// genLetExtern registers a top-level extern declaration as a Func with no
// code of its own.
func genLetExtern(n *ast.Node, p *Program) {
	p.define(&Func{
		Name: n.Name, Args: n.Params,
		ArgTypes: n.Typ.Args, RetType: n.Typ.Ret, IsExtern: true,
	})
}

// gen appends the instructions for n's value to code. Every case leaves
// exactly one value on the stack (Void-typed extern calls are the
// exception the VM and codegen both handle specially), matching the
// reference lowering's invariant.
func gen(n *ast.Node, code *[]Instr) {
	switch n.Kind {
	case ast.Number:
		*code = append(*code, Instr{Kind: Push, Operand: &Obj{Kind: ObjInt, Number: n.IntVal}})

	case ast.Float:
		*code = append(*code, Instr{Kind: Push, Operand: &Obj{Kind: ObjFloat, Float: n.FloatVal}})

	case ast.String:
		*code = append(*code, Instr{Kind: Push, Operand: &Obj{Kind: ObjString, Str: n.StrVal}})

	case ast.Bool:
		// Supplements the reference lowering, which never produces code
		// for boolean literals at all.
		*code = append(*code, Instr{Kind: Push, Operand: &Obj{Kind: ObjBool, Bool: n.BoolVal}})

	case ast.Var:
		*code = append(*code, Instr{Kind: Load, Operand: &Obj{Kind: ObjName, Name: n.Ident}})

	case ast.Binary:
		genBinary(n, code)

	case ast.Unary:
		gen(n.Expr, code)
		switch n.UnOp {
		case ast.OpDeref:
			*code = append(*code, Instr{Kind: LoadPtr})
		case ast.OpNot:
			*code = append(*code, Instr{Kind: Not})
		}

	case ast.If:
		gen(n.Cond, code)
		var thenCode, elseCode []Instr
		gen(n.Then, &thenCode)
		gen(n.Else, &elseCode)
		*code = append(*code,
			Instr{Kind: Push, Operand: &Obj{Kind: ObjCode, Code: thenCode}},
			Instr{Kind: Push, Operand: &Obj{Kind: ObjCode, Code: elseCode}},
			Instr{Kind: Br},
		)

	case ast.LetIn:
		gen(n.Value, code)
		*code = append(*code, Instr{Kind: Store, Operand: &Obj{Kind: ObjName, Name: n.Name}})
		gen(n.Body, code)

	case ast.App:
		for _, a := range n.Args {
			gen(a, code)
		}
		*code = append(*code, Instr{Kind: Call, Operand: &Obj{Kind: ObjName, Name: n.Callee, Arity: len(n.Args)}})

	case ast.Compound:
		for i, expr := range n.Exprs {
			gen(expr, code)
			if i != len(n.Exprs)-1 {
				*code = append(*code, Instr{Kind: Pop})
			}
		}

	case ast.New:
		*code = append(*code, Instr{Kind: Alloc, Operand: &Obj{Kind: ObjType, Ty: n.PtrType.Elem}})
	}
}

func genBinary(n *ast.Node, code *[]Instr) {
	switch n.BinOp {
	case ast.OpSeq:
		// Supplements the reference lowering, which has no case for `;`
		// at all: evaluate and discard lhs, then evaluate rhs.
		gen(n.Lhs, code)
		*code = append(*code, Instr{Kind: Pop})
		gen(n.Rhs, code)
		return
	case ast.OpPtrAssign:
		gen(n.Lhs, code)
		gen(n.Rhs, code)
		*code = append(*code, Instr{Kind: StorePtr})
		return
	}

	gen(n.Lhs, code)
	gen(n.Rhs, code)
	kind, ok := binInstr[n.BinOp]
	if !ok {
		panic(fmt.Sprintf("unknown binary operator: %v", n.BinOp))
	}
	*code = append(*code, Instr{Kind: kind})
}

var binInstr = map[ast.Op]InstrKind{
	ast.OpAdd: Add, ast.OpSub: Sub, ast.OpMul: Mul, ast.OpDiv: Div, ast.OpMod: Mod,
	ast.OpAddF: AddF, ast.OpSubF: SubF, ast.OpMulF: MulF, ast.OpDivF: DivF, ast.OpModF: ModF,
	ast.OpGt: Greater, ast.OpLt: Less, ast.OpGe: GreaterEq, ast.OpLe: LessEq,
	ast.OpEq: Eq, ast.OpNe: NotEq,
	ast.OpBitAnd: BitAnd, ast.OpBitOr: BitOr, ast.OpBitXor: BitXor,
	ast.OpLogAnd: LogAnd, ast.OpLogOr: LogOr,
}

// String renders o the way the reference implementation's print_obj does,
// used by Func.String for -vb IR dumps.
func (o *Obj) String() string {
	switch o.Kind {
	case ObjInt:
		return fmt.Sprintf("%d", o.Number)
	case ObjFloat:
		return fmt.Sprintf("%g", o.Float)
	case ObjBool:
		return fmt.Sprintf("%t", o.Bool)
	case ObjName:
		return o.Name
	case ObjString:
		return fmt.Sprintf("%q", o.Str)
	case ObjType:
		return o.Ty.String()
	case ObjCode:
		var sb strings.Builder
		sb.WriteString("code:\n")
		for _, instr := range o.Code {
			sb.WriteString("    ")
			sb.WriteString(instr.String())
			sb.WriteByte('\n')
		}
		return sb.String()
	default:
		return "<unknown obj>"
	}
}

// String renders one instruction on a single line.
func (i Instr) String() string {
	if i.Operand == nil {
		return i.Kind.String()
	}
	return i.Kind.String() + " " + i.Operand.String()
}

// String renders f as a labeled instruction listing.
func (f *Func) String() string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	for _, a := range f.Args {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	sb.WriteString(":\n")
	for _, instr := range f.Code {
		sb.WriteString("  ")
		sb.WriteString(instr.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String renders every function in the program, in declaration order.
func (p *Program) String() string {
	var sb strings.Builder
	for _, name := range p.Order {
		sb.WriteString(p.Funcs[name].String())
	}
	return sb.String()
}
