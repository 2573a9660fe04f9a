// internal/compiler/compiler.go
package compiler

import (
	pkgerrors "github.com/pkg/errors"

	"adv/internal/bytecode"
	"adv/internal/classtable"
	"adv/internal/errors"
	"adv/internal/parser"
)

// Compile lowers every class in table order to its fully inherited
// compiled form. Parents are always compiled before their subtree, so
// inherited members are looked up in the result built so far.
func Compile(table *classtable.ClassTable) ([]bytecode.CompiledClass, error) {
	result := make([]bytecode.CompiledClass, 0, len(table.Classes))

	for _, class := range table.Classes {
		var fields []string
		var methods []bytecode.CompiledMethod
		if class.Parent != "" {
			parent := result[table.Map[class.Parent].Start]
			fields = append(fields, parent.Fields...)
			methods = append(methods, parent.Methods...)
		}
		for _, f := range class.OwnFields {
			if !contains(fields, f) {
				fields = append(fields, f)
			}
		}

		for _, m := range class.OwnMethods {
			compiled, err := compileMethod(table, fields, m)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to compile method %s.%s", class.Name, m.Name)
			}
			replaced := false
			for i := range methods {
				if methods[i].Name == m.Name {
					methods[i] = compiled
					replaced = true
					break
				}
			}
			if !replaced {
				methods = append(methods, compiled)
			}
		}

		result = append(result, bytecode.CompiledClass{
			Name:    class.Name,
			Fields:  fields,
			Methods: methods,
		})
	}

	return result, nil
}

type methodCompiler struct {
	table  *classtable.ClassTable
	fields []string // fully inherited fields of the class being compiled
	name   string
	params int
	locals []string
	ops    []bytecode.Op
}

func compileMethod(table *classtable.ClassTable, fields []string, method parser.Method) (bytecode.CompiledMethod, error) {
	if !method.HasBody {
		return bytecode.CompiledMethod{
			Name:        method.Name,
			ParamsCount: len(method.Params),
		}, nil
	}

	mc := &methodCompiler{
		table:  table,
		fields: fields,
		name:   method.Name,
		params: len(method.Params),
		locals: append([]string{}, method.Params...),
		ops:    []bytecode.Op{},
	}
	if err := mc.block(method.Body); err != nil {
		return bytecode.CompiledMethod{}, err
	}
	if err := mc.peephole(); err != nil {
		return bytecode.CompiledMethod{}, err
	}

	return bytecode.CompiledMethod{
		Name:        method.Name,
		ParamsCount: len(method.Params),
		LocalsSize:  len(mc.locals),
		Body:        mc.ops,
	}, nil
}

func (mc *methodCompiler) block(stmts []parser.Stmt) error {
	for _, stmt := range stmts {
		if err := mc.statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (mc *methodCompiler) statement(stmt parser.Stmt) error {
	switch st := stmt.(type) {
	case *parser.SetVarStmt:
		// Assigning to a new name declares a local. The slot exists
		// before the value is compiled, so "x = x.next()" reads the
		// fresh, still uninitialised x.
		slot := index(mc.locals, st.Name)
		if slot < 0 {
			mc.locals = append(mc.locals, st.Name)
			slot = len(mc.locals) - 1
		}
		if err := mc.expression(st.Value); err != nil {
			return err
		}
		mc.emit(bytecode.SetV(slot))

	case *parser.SetFieldStmt:
		if err := mc.expression(st.Object); err != nil {
			return err
		}
		if err := mc.expression(st.Value); err != nil {
			return err
		}
		mc.emit(bytecode.SetF(st.Name))

	case *parser.CallStmt:
		if err := mc.expression(st.Object); err != nil {
			return err
		}
		for _, arg := range st.Args {
			if err := mc.expression(arg); err != nil {
				return err
			}
		}
		mc.emit(bytecode.Call(st.Method, len(st.Args)))
		mc.emit(bytecode.Pop())

	case *parser.ReturnStmt:
		if call, ok := mc.selfTailCall(st.Value); ok {
			for _, arg := range call.Args {
				if err := mc.expression(arg); err != nil {
					return err
				}
			}
			mc.emit(bytecode.Recurse())
			return nil
		}
		if err := mc.expression(st.Value); err != nil {
			return err
		}
		mc.emit(bytecode.Return())

	case *parser.IfStmt:
		if err := mc.expression(st.Condition); err != nil {
			return err
		}
		jump := len(mc.ops)
		mc.emit(bytecode.Pop()) // placeholder, patched below
		if err := mc.block(st.Body); err != nil {
			return err
		}
		mc.ops[jump] = bytecode.Jump(false, len(mc.ops))

	case *parser.WhileStmt:
		// The condition is emitted twice so that every execution of a
		// Jump consumes exactly one boolean from the stack.
		if err := mc.expression(st.Condition); err != nil {
			return err
		}
		jump := len(mc.ops)
		mc.emit(bytecode.Pop()) // placeholder, patched below
		if err := mc.block(st.Body); err != nil {
			return err
		}
		if err := mc.expression(st.Condition); err != nil {
			return err
		}
		mc.emit(bytecode.Jump(true, jump+1))
		mc.ops[jump] = bytecode.Jump(false, len(mc.ops))
	}
	return nil
}

// selfTailCall recognises "return this.m(...)" recursion back into the
// method being compiled, which lowers to Recurse instead of a call.
func (mc *methodCompiler) selfTailCall(value parser.Expr) (*parser.CallExpr, bool) {
	call, ok := value.(*parser.CallExpr)
	if !ok {
		return nil, false
	}
	receiver, ok := call.Object.(*parser.GetExpr)
	if !ok || receiver.Name != "this" {
		return nil, false
	}
	if call.Method != mc.name || len(call.Args) != mc.params {
		return nil, false
	}
	return call, true
}

func (mc *methodCompiler) expression(expr parser.Expr) error {
	switch e := expr.(type) {
	case *parser.GetExpr:
		if e.Name == "this" {
			mc.emit(bytecode.This())
			return nil
		}
		if slot := index(mc.locals, e.Name); slot >= 0 {
			mc.emit(bytecode.GetV(slot))
			return nil
		}
		// A bare class name is the class's singleton literal.
		if r, ok := mc.table.Map[e.Name]; ok {
			mc.emit(bytecode.New(r.Start))
			return nil
		}
		return errors.New(errors.UnknownIdentifier,
			"%s is not a variable, parameter or class", e.Name)

	case *parser.GetFieldExpr:
		if err := mc.expression(e.Object); err != nil {
			return err
		}
		mc.emit(bytecode.GetF(e.Name))

	case *parser.CallExpr:
		if err := mc.expression(e.Object); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := mc.expression(arg); err != nil {
				return err
			}
		}
		mc.emit(bytecode.Call(e.Method, len(e.Args)))

	case *parser.IsExpr:
		if err := mc.expression(e.Object); err != nil {
			return err
		}
		r, ok := mc.table.Map[e.Class]
		if !ok {
			return errors.New(errors.UnknownClass, "unknown class %s", e.Class)
		}
		mc.emit(bytecode.Is(r))

	case *parser.EqualsExpr:
		if err := mc.expression(e.Left); err != nil {
			return err
		}
		if err := mc.expression(e.Right); err != nil {
			return err
		}
		mc.emit(bytecode.Equals())
	}
	return nil
}

// peephole rewrites field access on this to the indexed form, turning
// the name lookup into a slot load. Inherited methods keep the parent's
// indices, which stay valid because a subclass only appends fields.
func (mc *methodCompiler) peephole() error {
	for i, op := range mc.ops {
		switch op.Code {
		case bytecode.OpGetF:
			if i > 0 && mc.ops[i-1].Code == bytecode.OpThis {
				idx := index(mc.fields, op.Name)
				if idx < 0 {
					return errors.New(errors.UnknownField, "this has no field %s", op.Name)
				}
				mc.ops[i] = bytecode.GetFI(idx)
			}
		case bytecode.OpSetF:
			j, ok := mc.receiverProducer(i)
			if !ok || mc.ops[j].Code != bytecode.OpThis {
				continue
			}
			idx := index(mc.fields, op.Name)
			if idx < 0 {
				return errors.New(errors.UnknownField, "this has no field %s", op.Name)
			}
			mc.ops[i] = bytecode.SetFI(idx)
		}
	}
	return nil
}

// receiverProducer scans backwards from the SetF at i for the
// instruction that pushed the receiver, one slot below the value on
// top of the stack. The scan gives up at the start of the body and at
// control flow, where linear provenance is lost.
func (mc *methodCompiler) receiverProducer(i int) (int, bool) {
	need := 1
	for j := i - 1; j >= 0; j-- {
		op := mc.ops[j]
		switch op.Code {
		case bytecode.OpJump, bytecode.OpReturn, bytecode.OpRecurse:
			return 0, false
		}
		if pushes := op.Pushes(); need < pushes {
			return j, true
		} else {
			need = need - pushes + op.Pops()
		}
	}
	return 0, false
}

func (mc *methodCompiler) emit(op bytecode.Op) {
	mc.ops = append(mc.ops, op)
}

func index(list []string, name string) int {
	for i, s := range list {
		if s == name {
			return i
		}
	}
	return -1
}

func contains(list []string, name string) bool {
	return index(list, name) >= 0
}
