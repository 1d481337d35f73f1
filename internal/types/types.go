// Package types implements Hindley-Milner type inference over an
// *ast.Node forest: a first pass that annotates every node with a fresh
// type variable, a second pass that collects unification equations from
// the annotated tree, and a third pass that unifies those equations into
// a substitution and back-patches every node's final, resolved type.
package types

import (
	"fmt"

	"otusc/internal/ast"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Env is a chained lexical scope mapping identifiers to their Type,
// used during both the annotate and equate passes to resolve variable
// and function references.
type Env struct {
	vars   map[string]*ast.Type
	parent *Env
}

// Equation records that Lhs and Rhs must unify to the same type, for the
// reason attributable to Node (used only for error messages).
type Equation struct {
	Lhs, Rhs *ast.Type
	Node     *ast.Node
}

// Substitution maps a type variable's name to the type it has been bound
// to during unification.
type Substitution map[string]*ast.Type

// Inferer drives the three-pass inference algorithm over a fixed set of
// top-level nodes.
type Inferer struct {
	nodes     []*ast.Node
	equations []Equation
	typevarI  int
}

// VarNotFoundError reports a reference to an undeclared variable or
// function.
type VarNotFoundError struct{ Name string }

func (e *VarNotFoundError) Error() string { return "variable or function not found: " + e.Name }

// FuncNotFoundError reports a call to an undeclared function.
type FuncNotFoundError struct{ Name string }

func (e *FuncNotFoundError) Error() string { return "function not found: " + e.Name }

// UnifyError reports that two types could not be made equal.
type UnifyError struct{ Lhs, Rhs *ast.Type }

func (e *UnifyError) Error() string {
	return fmt.Sprintf("type mismatch: %s != %s", e.Lhs.String(), e.Rhs.String())
}

// VoidIfArmError reports an `if` expression whose then/else arm resolved
// to Void. spec.md §9 leaves this case's meaning explicitly undefined in
// the reference implementation; otusc resolves it as a type error, since
// an `if` is itself an expression required to produce a value.
type VoidIfArmError struct{}

func (e *VoidIfArmError) Error() string {
	return "if/then/else arm must not be void: if is an expression and must produce a value"
}

// ---------------------
// ----- Constants -----
// ---------------------

var (
	intType    = ast.NewPrimitive(ast.TyInt)
	floatType  = ast.NewPrimitive(ast.TyFloat)
	boolType   = ast.NewPrimitive(ast.TyBool)
	stringType = ast.NewPrimitive(ast.TyString)
)

// ---------------------
// ----- functions -----
// ---------------------

// NewEnv returns a scope chained to parent (nil for a root scope).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]*ast.Type), parent: parent}
}

// Get resolves name through the scope chain.
func (e *Env) Get(name string) (*ast.Type, bool) {
	for s := e; s != nil; s = s.parent {
		if t, ok := s.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Set binds name to t in this scope only.
func (e *Env) Set(name string, t *ast.Type) {
	e.vars[name] = t
}

// Infer runs all three inference passes over nodes and returns the same
// slice with every node's Typ field resolved to its final type.
func Infer(nodes []*ast.Node) ([]*ast.Node, error) {
	inf := &Inferer{nodes: nodes}

	annotateEnv := NewEnv(nil)
	for _, n := range nodes {
		if err := inf.annotate(n, annotateEnv); err != nil {
			return nil, err
		}
	}

	equateEnv := NewEnv(nil)
	for _, n := range nodes {
		if err := inf.equate(n, equateEnv); err != nil {
			return nil, err
		}
	}

	subst := Substitution{}
	for _, eq := range inf.equations {
		if err := unify(eq.Lhs, eq.Rhs, subst); err != nil {
			return nil, err
		}
	}

	for _, n := range nodes {
		setType(subst, n)
	}

	for _, n := range nodes {
		if err := checkNoVoidIfArms(n); err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

// checkNoVoidIfArms walks the fully resolved tree rejecting any `if` whose
// then/else arm is Void (spec.md §9's fourth open question: otusc resolves
// an if-arm ending in a void call as a type error rather than an allowed
// value, since both arms must "produce values of the same type" per
// spec.md §3).
func checkNoVoidIfArms(n *ast.Node) error {
	switch n.Kind {
	case ast.If:
		if n.Then.Typ.Kind == ast.TyVoid || n.Else.Typ.Kind == ast.TyVoid {
			return &VoidIfArmError{}
		}
		if err := checkNoVoidIfArms(n.Cond); err != nil {
			return err
		}
		if err := checkNoVoidIfArms(n.Then); err != nil {
			return err
		}
		return checkNoVoidIfArms(n.Else)
	case ast.Binary:
		if err := checkNoVoidIfArms(n.Lhs); err != nil {
			return err
		}
		return checkNoVoidIfArms(n.Rhs)
	case ast.Unary:
		return checkNoVoidIfArms(n.Expr)
	case ast.LetIn:
		if err := checkNoVoidIfArms(n.Value); err != nil {
			return err
		}
		return checkNoVoidIfArms(n.Body)
	case ast.LetFun:
		return checkNoVoidIfArms(n.FunBody)
	case ast.App:
		for _, a := range n.Args {
			if err := checkNoVoidIfArms(a); err != nil {
				return err
			}
		}
		return nil
	case ast.Compound:
		for _, expr := range n.Exprs {
			if err := checkNoVoidIfArms(expr); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (inf *Inferer) newTypeVar() *ast.Type {
	name := fmt.Sprintf("t%d", inf.typevarI)
	inf.typevarI++
	return ast.NewVar(name)
}

// annotate assigns every node a type: a concrete primitive for literals, a
// looked-up type for variables, and a fresh type variable everywhere the
// eventual type depends on unification (binary/unary ops, if, application,
// let-bound functions).
func (inf *Inferer) annotate(n *ast.Node, e *Env) error {
	switch n.Kind {
	case ast.Number:
		n.Typ = ast.NewPrimitive(ast.TyInt)
	case ast.Float:
		n.Typ = ast.NewPrimitive(ast.TyFloat)
	case ast.String:
		n.Typ = ast.NewPrimitive(ast.TyString)
	case ast.Bool:
		n.Typ = ast.NewPrimitive(ast.TyBool)

	case ast.Var:
		ty, ok := e.Get(n.Ident)
		if !ok {
			return &VarNotFoundError{Name: n.Ident}
		}
		n.Typ = ty

	case ast.Binary:
		if err := inf.annotate(n.Lhs, e); err != nil {
			return err
		}
		if err := inf.annotate(n.Rhs, e); err != nil {
			return err
		}
		n.Typ = inf.newTypeVar()

	case ast.Unary:
		if err := inf.annotate(n.Expr, e); err != nil {
			return err
		}
		n.Typ = inf.newTypeVar()

	case ast.If:
		if err := inf.annotate(n.Cond, e); err != nil {
			return err
		}
		if err := inf.annotate(n.Then, e); err != nil {
			return err
		}
		if err := inf.annotate(n.Else, e); err != nil {
			return err
		}
		n.Typ = inf.newTypeVar()

	case ast.LetIn:
		// Unlike the reference implementation this binds Name in a child
		// scope, so it cannot leak into siblings of the enclosing let.
		if err := inf.annotate(n.Value, e); err != nil {
			return err
		}
		inner := NewEnv(e)
		inner.Set(n.Name, n.Value.Typ)
		if err := inf.annotate(n.Body, inner); err != nil {
			return err
		}
		n.Typ = n.Body.Typ

	case ast.LetFun:
		fnEnv := NewEnv(nil)
		argTypes := make([]*ast.Type, len(n.Params))
		for i, p := range n.Params {
			tv := inf.newTypeVar()
			argTypes[i] = tv
			fnEnv.Set(p, tv)
		}
		n.Typ = inf.newTypeVar()
		n.ParamTypes = argTypes
		if err := inf.annotate(n.FunBody, fnEnv); err != nil {
			return err
		}

	case ast.LetExtern:
		// The declared parameter types are kept as they are: an extern's
		// signature is fully concrete from its declaration.
		n.Typ = inf.newTypeVar()

	case ast.App:
		for _, a := range n.Args {
			if err := inf.annotate(a, e); err != nil {
				return err
			}
		}
		n.Typ = inf.newTypeVar()

	case ast.Compound:
		inner := NewEnv(e)
		for _, expr := range n.Exprs {
			if err := inf.annotate(expr, inner); err != nil {
				return err
			}
		}
		n.Typ = n.Exprs[len(n.Exprs)-1].Typ

	case ast.New:
		n.Typ = n.PtrType

	default:
		return fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	return nil
}

// equate walks the annotated tree and records the equations that unify
// must solve. e carries function signatures bound by LetFun/LetExtern, so
// App can look up the callee's declared type.
func (inf *Inferer) equate(n *ast.Node, e *Env) error {
	switch n.Kind {
	case ast.Number:
		inf.equations = append(inf.equations, Equation{n.Typ, intType, n})

	case ast.String:
		inf.equations = append(inf.equations, Equation{n.Typ, stringType, n})

	case ast.Float, ast.Bool, ast.Var, ast.New:
		// Already fully determined by annotate; no further constraint.

	case ast.Binary:
		if err := inf.equate(n.Lhs, e); err != nil {
			return err
		}
		if err := inf.equate(n.Rhs, e); err != nil {
			return err
		}

		switch n.BinOp {
		case ast.OpEq, ast.OpNe, ast.OpGt, ast.OpGe, ast.OpLt, ast.OpLe:
			inf.equations = append(inf.equations,
				Equation{n.Typ, boolType, n},
				Equation{n.Lhs.Typ, n.Rhs.Typ, n})

		case ast.OpPtrAssign:
			elem := inf.newTypeVar()
			ptrTy := ast.NewPtr(elem)
			inf.equations = append(inf.equations,
				Equation{n.Lhs.Typ, ptrTy, n.Lhs},
				Equation{n.Rhs.Typ, elem, n.Rhs},
				Equation{n.Typ, n.Rhs.Typ, n})

		case ast.OpSeq:
			// Fixes a gap in the reference implementation, where a `;`
			// node's type was left completely unconstrained: tie the
			// sequence's type to its trailing expression.
			inf.equations = append(inf.equations, Equation{n.Typ, n.Rhs.Typ, n})

		case ast.OpAddF, ast.OpSubF, ast.OpMulF, ast.OpDivF, ast.OpModF:
			inf.equations = append(inf.equations,
				Equation{n.Typ, floatType, n},
				Equation{n.Lhs.Typ, floatType, n.Lhs},
				Equation{n.Rhs.Typ, floatType, n.Rhs})

		case ast.OpLogAnd, ast.OpLogOr:
			inf.equations = append(inf.equations,
				Equation{n.Typ, boolType, n},
				Equation{n.Lhs.Typ, boolType, n.Lhs},
				Equation{n.Rhs.Typ, boolType, n.Rhs})

		default: // OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBitAnd, OpBitOr, OpBitXor
			inf.equations = append(inf.equations,
				Equation{n.Typ, intType, n},
				Equation{n.Lhs.Typ, intType, n.Lhs},
				Equation{n.Rhs.Typ, intType, n.Rhs})
		}

	case ast.Unary:
		if err := inf.equate(n.Expr, e); err != nil {
			return err
		}
		switch n.UnOp {
		case ast.OpDeref:
			elem := inf.newTypeVar()
			ptrTy := ast.NewPtr(elem)
			inf.equations = append(inf.equations,
				Equation{n.Expr.Typ, ptrTy, n.Expr},
				Equation{n.Typ, elem, n})
		case ast.OpNot:
			inf.equations = append(inf.equations,
				Equation{n.Expr.Typ, boolType, n.Expr},
				Equation{n.Typ, boolType, n})
		default:
			return fmt.Errorf("unknown unary operator: %v", n.UnOp)
		}

	case ast.If:
		if err := inf.equate(n.Cond, e); err != nil {
			return err
		}
		if err := inf.equate(n.Then, e); err != nil {
			return err
		}
		if err := inf.equate(n.Else, e); err != nil {
			return err
		}
		inf.equations = append(inf.equations,
			Equation{n.Cond.Typ, boolType, n.Cond},
			Equation{n.Then.Typ, n.Else.Typ, n},
			Equation{n.Typ, n.Then.Typ, n})

	case ast.App:
		argTypes := make([]*ast.Type, len(n.Args))
		for i, a := range n.Args {
			if err := inf.equate(a, e); err != nil {
				return err
			}
			argTypes[i] = a.Typ
		}
		funTy, ok := e.Get(n.Callee)
		if !ok {
			return &FuncNotFoundError{Name: n.Callee}
		}
		appTy := ast.NewFun(argTypes, n.Typ)
		inf.equations = append(inf.equations, Equation{funTy, appTy, n})

	case ast.LetIn:
		if err := inf.equate(n.Value, e); err != nil {
			return err
		}
		inner := NewEnv(e)
		inner.Set(n.Name, n.Value.Typ)
		if err := inf.equate(n.Body, inner); err != nil {
			return err
		}

	case ast.LetFun:
		funTy := ast.NewFun(n.ParamTypes, n.FunBody.Typ)
		inf.equations = append(inf.equations, Equation{n.Typ, funTy, n})

		e.Set(n.Name, funTy)
		inner := NewEnv(e)
		for i, p := range n.Params {
			inner.Set(p, n.ParamTypes[i])
		}
		if err := inf.equate(n.FunBody, inner); err != nil {
			return err
		}

	case ast.LetExtern:
		funTy := ast.NewFun(n.ParamTypes, n.RetType)
		e.Set(n.Name, funTy)
		inf.equations = append(inf.equations, Equation{n.Typ, funTy, n})

	case ast.Compound:
		inner := NewEnv(e)
		for _, expr := range n.Exprs {
			if err := inf.equate(expr, inner); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	return nil
}

// unify solves x == y in place against subst, or reports an UnifyError.
func unify(x, y *ast.Type, subst Substitution) error {
	if x.Kind != ast.TyVar && x.Kind != ast.TyFun && x.Kind != ast.TyPtr && x.Kind == y.Kind {
		return nil
	}
	if x.Kind == ast.TyVar && y.Kind == ast.TyVar && x.Var == y.Var {
		return nil
	}
	if x.Kind == ast.TyVar {
		return unifyVariable(x, y, subst)
	}
	if y.Kind == ast.TyVar {
		return unifyVariable(y, x, subst)
	}
	if x.Kind == ast.TyFun && y.Kind == ast.TyFun {
		if len(x.Args) != len(y.Args) {
			return &UnifyError{x, y}
		}
		if err := unify(x.Ret, y.Ret, subst); err != nil {
			return err
		}
		for i := range x.Args {
			if err := unify(x.Args[i], y.Args[i], subst); err != nil {
				return err
			}
		}
		return nil
	}
	if x.Kind == ast.TyPtr && y.Kind == ast.TyPtr {
		// Reached only because the fast path above excludes TyPtr: two
		// pointers are equal iff their pointees unify, never merely
		// because both are Ptr(...). The reference implementation
		// unifies the pointee here but falls through to its failure
		// branch regardless; returning the recursive result is the fix.
		return unify(x.Elem, y.Elem, subst)
	}

	return &UnifyError{x, y}
}

func unifyVariable(v, x *ast.Type, subst Substitution) error {
	if bound, ok := subst[v.Var]; ok {
		return unify(bound, x, subst)
	}
	if x.Kind == ast.TyVar {
		if bound, ok := subst[x.Var]; ok {
			return unify(v, bound, subst)
		}
	}
	if occursCheck(v, x, subst) {
		return &UnifyError{v, x}
	}
	subst[v.Var] = x
	return nil
}

// occursCheck reports whether v occurs free within t, following subst and
// descending into both function argument AND return types, and into
// pointer elements -- the reference implementation's occurs_check omits
// the return-type branch, which would wrongly accept unifying a variable
// with a function type that returns that very variable.
func occursCheck(v, t *ast.Type, subst Substitution) bool {
	switch {
	case t.Kind == ast.TyVar && v.Var == t.Var:
		return true
	case t.Kind == ast.TyVar:
		if bound, ok := subst[t.Var]; ok {
			return occursCheck(v, bound, subst)
		}
		return false
	case t.Kind == ast.TyFun:
		for _, a := range t.Args {
			if occursCheck(v, a, subst) {
				return true
			}
		}
		return occursCheck(v, t.Ret, subst)
	case t.Kind == ast.TyPtr:
		return occursCheck(v, t.Elem, subst)
	default:
		return false
	}
}

// resolve follows subst through every type variable in t until it reaches
// a concrete type, recursing into function and pointer structure.
func resolve(t *ast.Type, subst Substitution) *ast.Type {
	switch t.Kind {
	case ast.TyFun:
		args := make([]*ast.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = resolve(a, subst)
		}
		return ast.NewFun(args, resolve(t.Ret, subst))
	case ast.TyPtr:
		return ast.NewPtr(resolve(t.Elem, subst))
	case ast.TyVar:
		bound, ok := subst[t.Var]
		if !ok {
			return t
		}
		return resolve(bound, subst)
	default:
		return t
	}
}

// setType back-patches n and every descendant's Typ field to its fully
// resolved type.
func setType(subst Substitution, n *ast.Node) {
	n.Typ = resolve(n.Typ, subst)

	switch n.Kind {
	case ast.Binary:
		setType(subst, n.Lhs)
		setType(subst, n.Rhs)
	case ast.Unary:
		setType(subst, n.Expr)
	case ast.If:
		setType(subst, n.Cond)
		setType(subst, n.Then)
		setType(subst, n.Else)
	case ast.LetIn:
		setType(subst, n.Value)
		setType(subst, n.Body)
	case ast.LetFun:
		setType(subst, n.FunBody)
	case ast.App:
		for _, a := range n.Args {
			setType(subst, a)
		}
	case ast.Compound:
		for _, e := range n.Exprs {
			setType(subst, e)
		}
	}
}
