// Package ast defines the syntax tree produced by the parser: Type, the
// tagged type representation shared by inference and lowering, and Node,
// the expression tree itself.
package ast

import "strings"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TypeKind tags the variant held by a Type value.
type TypeKind int

const (
	TyUnknown TypeKind = iota
	TyInt
	TyFloat
	TyBool
	TyString
	TyVoid
	TyPtr
	TyFun
	TyVar
)

// Type is a tagged union over the type language described in spec §3: a
// primitive, a pointer, a function signature, a free type variable, or
// Unknown (the placeholder every node starts with before inference).
type Type struct {
	Kind TypeKind
	Var  string  // set when Kind == TyVar: the variable's unique name (t0, t1, ...).
	Elem *Type   // set when Kind == TyPtr: the pointee type.
	Args []*Type // set when Kind == TyFun: parameter types.
	Ret  *Type   // set when Kind == TyFun: return type.
}

// ---------------------
// ----- functions -----
// ---------------------

// NewPrimitive returns a fresh Type of the given non-compound kind.
func NewPrimitive(kind TypeKind) *Type {
	return &Type{Kind: kind}
}

// NewVar returns a fresh type variable Type named name.
func NewVar(name string) *Type {
	return &Type{Kind: TyVar, Var: name}
}

// NewPtr returns Ptr(elem).
func NewPtr(elem *Type) *Type {
	return &Type{Kind: TyPtr, Elem: elem}
}

// NewFun returns Fun(args...) -> ret.
func NewFun(args []*Type, ret *Type) *Type {
	return &Type{Kind: TyFun, Args: args, Ret: ret}
}

// FromName resolves a syntactic type annotation identifier ("int", "string",
// "bool", "float", "void") to its Type, or reports an error for anything
// else -- annotations never spell out pointer, function, or variable types.
func FromName(name string) (*Type, error) {
	switch name {
	case "int":
		return NewPrimitive(TyInt), nil
	case "string":
		return NewPrimitive(TyString), nil
	case "bool":
		return NewPrimitive(TyBool), nil
	case "float":
		return NewPrimitive(TyFloat), nil
	case "void":
		return NewPrimitive(TyVoid), nil
	default:
		return nil, &UnknownTypeError{Name: name}
	}
}

// UnknownTypeError reports a type annotation that is not one of the
// language's built-in primitive names.
type UnknownTypeError struct{ Name string }

func (e *UnknownTypeError) Error() string {
	return "unknown type: " + e.Name
}

// String renders t the way the language would print it back (used for
// verbose dumps and round-trip testing), mirroring the original source's
// Type::print_type.
func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	switch t.Kind {
	case TyVar:
		return t.Var
	case TyUnknown:
		return "unknown"
	case TyInt:
		return "int"
	case TyFloat:
		return "float"
	case TyBool:
		return "bool"
	case TyString:
		return "string"
	case TyVoid:
		return "void"
	case TyPtr:
		return t.Elem.String() + "*"
	case TyFun:
		var sb strings.Builder
		sb.WriteByte('(')
		for _, a := range t.Args {
			sb.WriteString(a.String())
			sb.WriteString(" -> ")
		}
		sb.WriteString(t.Ret.String())
		sb.WriteByte(')')
		return sb.String()
	default:
		return "<invalid type>"
	}
}

// Equal reports whether t and other are structurally identical types. It
// does not resolve type variables through a substitution; callers that need
// that should resolve both sides first.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TyVar:
		return t.Var == other.Var
	case TyPtr:
		return t.Elem.Equal(other.Elem)
	case TyFun:
		if len(t.Args) != len(other.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(other.Args[i]) {
				return false
			}
		}
		return t.Ret.Equal(other.Ret)
	default:
		return true
	}
}
