// Package codegen translates a lowered ir.Program into LLVM IR and emits a
// target object file, using the shadow-stack GC-root convention and the
// basic-block/phi-node structure of the language's original LLVM backend.
package codegen

import (
	"fmt"
	"os"

	"tinygo.org/x/go-llvm"

	"otusc/internal/ast"
	"otusc/internal/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Env is a chained scope mapping a bound name to the llvm.Value currently
// representing it -- parameters and let-bindings alike, since this
// backend binds parameters directly as SSA values rather than through an
// alloca/store pair.
type Env struct {
	vars   map[string]llvm.Value
	parent *Env
}

// Codegen holds the LLVM context/builder/module for one compilation and
// the two parallel stacks genInstr drives: a value stack for computed
// llvm.Values, and a code stack for the inline then/else blocks an IF
// pushes ahead of a Br instruction.
type Codegen struct {
	ctx     llvm.Context
	builder llvm.Builder
	module  llvm.Module
	prog    *ir.Program

	values []llvm.Value
	codes  [][]ir.Instr
}

// CodegenError reports a codegen-time failure -- in particular the
// reference implementation's unchecked call to a callee that does not
// exist in the module, which this port rejects up front instead of
// dereferencing a null function value.
type CodegenError struct{ Msg string }

func (e *CodegenError) Error() string { return e.Msg }

// ---------------------
// ----- functions -----
// ---------------------

// NewEnv returns a scope chained to parent (nil for a root scope).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]llvm.Value), parent: parent}
}

func (e *Env) get(name string) (llvm.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return llvm.Value{}, false
}

func (e *Env) set(name string, v llvm.Value) {
	e.vars[name] = v
}

// New returns a Codegen ready to translate prog into module moduleName.
func New(prog *ir.Program, moduleName string) *Codegen {
	ctx := llvm.NewContext()
	return &Codegen{
		ctx:     ctx,
		builder: ctx.NewBuilder(),
		module:  ctx.NewModule(moduleName),
		prog:    prog,
	}
}

// Dispose releases the underlying LLVM context, builder and module.
func (c *Codegen) Dispose() {
	c.builder.Dispose()
	c.module.Dispose()
	c.ctx.Dispose()
}

func (c *Codegen) push(v llvm.Value) { c.values = append(c.values, v) }

func (c *Codegen) pop() llvm.Value {
	v := c.values[len(c.values)-1]
	c.values = c.values[:len(c.values)-1]
	return v
}

func (c *Codegen) pushCode(code []ir.Instr) { c.codes = append(c.codes, code) }

func (c *Codegen) popCode() []ir.Instr {
	code := c.codes[len(c.codes)-1]
	c.codes = c.codes[:len(c.codes)-1]
	return code
}

// convertType maps a source-language Type onto its LLVM representation.
// Bool consistently maps to i1 here -- the reference implementation
// declares Bool as i1 in this same function but then constructs its
// boolean constants as i8, an internal width mismatch this port avoids.
func (c *Codegen) convertType(ty *ast.Type) llvm.Type {
	switch ty.Kind {
	case ast.TyInt:
		return c.ctx.Int32Type()
	case ast.TyString:
		return llvm.PointerType(c.ctx.Int8Type(), 0)
	case ast.TyBool:
		return c.ctx.Int1Type()
	case ast.TyFloat:
		return c.ctx.DoubleType()
	case ast.TyVoid:
		return c.ctx.VoidType()
	case ast.TyFun:
		args := make([]llvm.Type, len(ty.Args))
		for i, a := range ty.Args {
			args[i] = c.convertType(a)
		}
		return llvm.FunctionType(c.convertType(ty.Ret), args, false)
	case ast.TyPtr:
		return llvm.PointerType(c.convertType(ty.Elem), 0)
	default:
		panic(fmt.Sprintf("unconvertible type: %s", ty))
	}
}

// Generate declares the shadow-stack GC runtime contract, declares every
// function header, then generates every non-extern function body, in
// program declaration order.
func (c *Codegen) Generate() error {
	c.gcSetup()

	for _, name := range c.prog.Order {
		c.genFuncDeclare(c.prog.Funcs[name])
	}
	for _, name := range c.prog.Order {
		if err := c.genFunc(c.prog.Funcs[name]); err != nil {
			return err
		}
	}
	return nil
}

// gcSetup declares the three external symbols the shadow-stack GC
// contract requires: alloc(size) -> i8*, collect(), and the
// llvm.gcroot intrinsic.
func (c *Codegen) gcSetup() {
	i8ptr := llvm.PointerType(c.ctx.Int8Type(), 0)

	allocTy := llvm.FunctionType(i8ptr, []llvm.Type{c.ctx.Int64Type()}, false)
	llvm.AddFunction(c.module, "alloc", allocTy)

	collectTy := llvm.FunctionType(c.ctx.VoidType(), nil, false)
	llvm.AddFunction(c.module, "collect", collectTy)

	rootTy := llvm.FunctionType(c.ctx.VoidType(),
		[]llvm.Type{llvm.PointerType(i8ptr, 0), i8ptr}, false)
	llvm.AddFunction(c.module, "llvm.gcroot", rootTy)
}

func (c *Codegen) genFuncDeclare(f *ir.Func) {
	argTypes := make([]llvm.Type, len(f.ArgTypes))
	for i, ty := range f.ArgTypes {
		argTypes[i] = c.convertType(ty)
	}
	ft := llvm.FunctionType(c.convertType(f.RetType), argTypes, false)
	llvm.AddFunction(c.module, f.Name, ft)
}

func (c *Codegen) genFunc(f *ir.Func) error {
	if f.IsExtern {
		return nil
	}

	fn := c.module.NamedFunction(f.Name)
	fn.SetGC("shadow-stack")

	entry := c.ctx.AddBasicBlock(fn, "entry")
	c.builder.SetInsertPointAtEnd(entry)

	e := NewEnv(nil)
	for i, param := range fn.Params() {
		name := f.Args[i]
		param.SetName(name)
		e.set(name, param)
	}

	if err := c.genCode(f.Code, e); err != nil {
		return err
	}
	return nil
}

func (c *Codegen) genCode(code []ir.Instr, e *Env) error {
	for _, instr := range code {
		if err := c.genInstr(instr, e); err != nil {
			return err
		}
	}
	return nil
}

var arithCmpInstrs = map[ir.InstrKind]bool{
	ir.Add: true, ir.Sub: true, ir.Mul: true, ir.Div: true, ir.Mod: true,
	ir.AddF: true, ir.SubF: true, ir.MulF: true, ir.DivF: true, ir.ModF: true,
	ir.Eq: true, ir.NotEq: true, ir.Greater: true, ir.Less: true,
	ir.GreaterEq: true, ir.LessEq: true,
	ir.LogAnd: true, ir.LogOr: true, ir.BitAnd: true, ir.BitOr: true, ir.BitXor: true,
}

func (c *Codegen) genInstr(instr ir.Instr, e *Env) error {
	if arithCmpInstrs[instr.Kind] {
		return c.genArithOrCmp(instr.Kind)
	}

	switch instr.Kind {
	case ir.Not:
		// Fixes the reference implementation's use of arithmetic negation
		// (CreateNeg) for logical `!`; bool is i1, so a bitwise not is the
		// correct logical negation.
		val := c.pop()
		c.push(c.builder.CreateNot(val, "nottmp"))
		return nil

	case ir.Push:
		return c.genPush(instr.Operand)

	case ir.Pop:
		c.pop()
		return nil

	case ir.Store:
		e.set(instr.Operand.Name, c.pop())
		return nil

	case ir.Load:
		val, ok := e.get(instr.Operand.Name)
		if !ok {
			return &CodegenError{"undeclared variable: " + instr.Operand.Name}
		}
		c.push(val)
		return nil

	case ir.StorePtr:
		rhs := c.pop()
		lhs := c.pop()
		c.builder.CreateStore(rhs, lhs)
		c.push(rhs)
		return nil

	case ir.LoadPtr:
		ptr := c.pop()
		c.push(c.builder.CreateLoad(ptr, ""))
		return nil

	case ir.Alloc:
		return c.genAlloc(instr.Operand)

	case ir.Call:
		return c.genCall(instr.Operand)

	case ir.Br:
		return c.genBr(e)

	case ir.Ret:
		c.builder.CreateRet(c.pop())
		return nil

	default:
		return &CodegenError{fmt.Sprintf("unknown instruction: %s", instr.Kind)}
	}
}

func (c *Codegen) genArithOrCmp(kind ir.InstrKind) error {
	rhs := c.pop()
	lhs := c.pop()

	switch kind {
	case ir.Add:
		c.push(c.builder.CreateAdd(lhs, rhs, "addtmp"))
	case ir.Sub:
		c.push(c.builder.CreateSub(lhs, rhs, "subtmp"))
	case ir.Mul:
		c.push(c.builder.CreateMul(lhs, rhs, "multmp"))
	case ir.Div:
		c.push(c.builder.CreateSDiv(lhs, rhs, "divtmp"))
	case ir.Mod:
		c.push(c.builder.CreateSRem(lhs, rhs, "remtmp"))
	case ir.AddF:
		c.push(c.builder.CreateFAdd(lhs, rhs, "addftmp"))
	case ir.SubF:
		c.push(c.builder.CreateFSub(lhs, rhs, "subftmp"))
	case ir.MulF:
		c.push(c.builder.CreateFMul(lhs, rhs, "mulftmp"))
	case ir.DivF:
		c.push(c.builder.CreateFDiv(lhs, rhs, "divftmp"))
	case ir.ModF:
		c.push(c.builder.CreateFRem(lhs, rhs, "remftmp"))
	case ir.Eq:
		c.push(c.builder.CreateICmp(llvm.IntEQ, lhs, rhs, "eqtmp"))
	case ir.NotEq:
		c.push(c.builder.CreateICmp(llvm.IntNE, lhs, rhs, "noteqtmp"))
	case ir.Greater:
		c.push(c.builder.CreateICmp(llvm.IntSGT, lhs, rhs, "gttmp"))
	case ir.Less:
		c.push(c.builder.CreateICmp(llvm.IntSLT, lhs, rhs, "lttmp"))
	case ir.GreaterEq:
		c.push(c.builder.CreateICmp(llvm.IntSGE, lhs, rhs, "getmp"))
	case ir.LessEq:
		c.push(c.builder.CreateICmp(llvm.IntSLE, lhs, rhs, "letmp"))
	case ir.LogAnd, ir.BitAnd:
		c.push(c.builder.CreateAnd(lhs, rhs, "andtmp"))
	case ir.LogOr, ir.BitOr:
		c.push(c.builder.CreateOr(lhs, rhs, "ortmp"))
	case ir.BitXor:
		c.push(c.builder.CreateXor(lhs, rhs, "xortmp"))
	}
	return nil
}

func (c *Codegen) genPush(op *ir.Obj) error {
	switch op.Kind {
	case ir.ObjCode:
		c.pushCode(op.Code)
	case ir.ObjInt:
		c.push(llvm.ConstInt(c.ctx.Int32Type(), uint64(op.Number), true))
	case ir.ObjFloat:
		c.push(llvm.ConstFloat(c.ctx.DoubleType(), op.Float))
	case ir.ObjBool:
		v := uint64(0)
		if op.Bool {
			v = 1
		}
		c.push(llvm.ConstInt(c.ctx.Int1Type(), v, false))
	case ir.ObjString:
		c.push(c.builder.CreateGlobalStringPtr(op.Str, "strtmp"))
	default:
		return &CodegenError{"invalid push operand"}
	}
	return nil
}

// genAlloc reproduces the shadow-stack GC root sequence: call alloc(size),
// allocate a stack cell for the pointer, bitcast the cell to i8** and store
// the raw result into it, register the cell with llvm.gcroot, then bitcast
// the raw i8* to a pointer to the real element type.
func (c *Codegen) genAlloc(op *ir.Obj) error {
	elemType := c.convertType(op.Ty)
	ptrType := llvm.PointerType(elemType, 0)

	sizeBits := elemType.SizeInBits()
	size := llvm.ConstInt(c.ctx.Int64Type(), sizeBits/8, false)

	allocFn := c.module.NamedFunction("alloc")
	raw := c.builder.CreateCall(allocFn, []llvm.Value{size}, "")

	cell := c.builder.CreateAlloca(ptrType, "")
	i8ptrptr := llvm.PointerType(raw.Type(), 0)
	castedCell := c.builder.CreateBitCast(cell, i8ptrptr, "")
	c.builder.CreateStore(raw, castedCell)

	gcroot := c.module.NamedFunction("llvm.gcroot")
	c.builder.CreateCall(gcroot, []llvm.Value{
		castedCell,
		llvm.ConstPointerNull(llvm.PointerType(c.ctx.Int8Type(), 0)),
	}, "")

	result := c.builder.CreateBitCast(raw, ptrType, "")
	c.push(result)
	return nil
}

// genCall resolves the callee up front and reports an error if it is
// missing -- the reference implementation leaves a "nothing to do"
// comment in this branch and falls through to dereference the null
// callee. Arguments are popped in reverse (stack top is the rightmost
// argument) and un-reversed before the call, the same convention
// internal/vm's CALL handling uses, resolving the argument-order
// question the reference implementation left inconsistent between its
// VM and its codegen.
func (c *Codegen) genCall(op *ir.Obj) error {
	callee := c.module.NamedFunction(op.Name)
	if callee.IsNil() {
		return &CodegenError{"function not found: " + op.Name}
	}
	if len(callee.Params()) != op.Arity {
		return &CodegenError{fmt.Sprintf("incorrect arguments passed to %s", op.Name)}
	}

	args := make([]llvm.Value, op.Arity)
	for i := op.Arity - 1; i >= 0; i-- {
		args[i] = c.pop()
	}

	if callee.Type().ElementType().ReturnType().TypeKind() == llvm.VoidTypeKind {
		c.builder.CreateCall(callee, args, "")
		c.push(llvm.Value{})
		return nil
	}
	c.push(c.builder.CreateCall(callee, args, "calltmp"))
	return nil
}

// genBr implements the then/else/merge basic-block structure with a phi
// node joining the two arms' results, mirroring the reference
// implementation's IR_BR handling exactly.
func (c *Codegen) genBr(e *Env) error {
	elseCode := c.popCode()
	thenCode := c.popCode()
	cond := c.pop()

	fn := c.builder.GetInsertBlock().Parent()
	thenBB := c.ctx.AddBasicBlock(fn, "then")
	elseBB := c.ctx.InsertBasicBlock(thenBB, "else")
	mergeBB := c.ctx.AddBasicBlock(fn, "ifcont")
	c.builder.CreateCondBr(cond, thenBB, elseBB)

	c.builder.SetInsertPointAtEnd(thenBB)
	if err := c.genCode(thenCode, NewEnv(e)); err != nil {
		return err
	}
	thenVal := c.pop()
	c.builder.CreateBr(mergeBB)
	thenBB = c.builder.GetInsertBlock()

	c.builder.SetInsertPointAtEnd(elseBB)
	if err := c.genCode(elseCode, NewEnv(e)); err != nil {
		return err
	}
	elseVal := c.pop()
	c.builder.CreateBr(mergeBB)
	elseBB = c.builder.GetInsertBlock()

	c.builder.SetInsertPointAtEnd(mergeBB)
	if thenVal.IsNil() || elseVal.IsNil() {
		c.push(llvm.Value{})
		return nil
	}
	phi := c.builder.CreatePHI(thenVal.Type(), "iftmp")
	phi.AddIncoming([]llvm.Value{thenVal, elseVal}, []llvm.BasicBlock{thenBB, elseBB})
	c.push(phi)
	return nil
}

// EmitObjectFile compiles the module for the host target and writes it to
// path, the same target-machine/object-emission sequence the reference
// Go codebase uses for its own backend.
func (c *Codegen) EmitObjectFile(path string) error {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return err
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	c.module.SetDataLayout(tm.CreateTargetData().String())
	c.module.SetTarget(triple)

	buf, err := tm.EmitToMemoryBuffer(c.module, llvm.ObjectFile)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Dump writes the generated LLVM IR as human-readable text, used by the
// -vb verbose flag.
func (c *Codegen) Dump() string {
	return c.module.String()
}
