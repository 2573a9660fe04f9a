// internal/vm/vm.go
package vm

import (
	pkgerrors "github.com/pkg/errors"

	"adv/internal/bytecode"
	"adv/internal/errors"
	"adv/internal/gc"
)

// Run executes a compiled method over an activation frame. frame[0] is
// the receiver; the rest splits into the locals window and the operand
// stack. Nested calls reuse the same underlying activation array by
// taking the subslice rooted at the receiver's slot, so the callee's
// frame sits on top of the caller's operand stack and the result lands
// where the receiver was.
func Run(ctx *RunCtx, g *gc.GC, io *IOManager, frame []gc.Object, method *bytecode.CompiledMethod) (gc.Object, error) {
	if method.Body == nil {
		return runBodyless(ctx, g, io, frame, method)
	}

	this := frame[0]
	vars := frame[1 : 1+method.LocalsSize]
	stack := frame[1+method.LocalsSize:]
	stackPos := 0

	push := func(obj gc.Object) {
		stack[stackPos] = obj
		stackPos++
	}
	// Every pop wipes the vacated slot so that a collection triggered
	// at any later allocation scans exactly the live prefix.
	pop := func() gc.Object {
		stackPos--
		obj := stack[stackPos]
		stack[stackPos] = gc.TrueNull
		return obj
	}
	wipeVars := func() {
		for i := range vars {
			vars[i] = gc.TrueNull
		}
	}

	pc := 0
	for pc < len(method.Body) {
		op := method.Body[pc]
		switch op.Code {
		case bytecode.OpNew:
			push(NewObject(ctx, g, op.A))

		case bytecode.OpThis:
			push(this)

		case bytecode.OpGetV:
			if vars[op.A].IsTrueNull() {
				return gc.TrueNull, errors.New(errors.UseBeforeInit,
					"local %d of %s read before initialisation", op.A, method.Name)
			}
			push(vars[op.A])

		case bytecode.OpSetV:
			vars[op.A] = pop()

		case bytecode.OpGetF:
			obj := pop()
			class := &ctx.Classes[obj.Class]
			index := class.FieldIndex(op.Name)
			if index < 0 {
				return gc.TrueNull, errors.New(errors.NoSuchField,
					"no such field: %s.%s", class.Name, op.Name)
			}
			push((*obj.Contents)[index])

		case bytecode.OpGetFI:
			obj := pop()
			push((*obj.Contents)[op.A])

		case bytecode.OpSetF:
			value := pop()
			obj := pop()
			class := &ctx.Classes[obj.Class]
			index := class.FieldIndex(op.Name)
			if index < 0 {
				return gc.TrueNull, errors.New(errors.NoSuchField,
					"no such field: %s.%s", class.Name, op.Name)
			}
			(*obj.Contents)[index] = value

		case bytecode.OpSetFI:
			value := pop()
			obj := pop()
			(*obj.Contents)[op.A] = value

		case bytecode.OpCall:
			argc := op.A
			receiverPos := stackPos - argc - 1
			receiver := stack[receiverPos]
			class := &ctx.Classes[receiver.Class]
			callee := class.Method(op.Name)
			if callee == nil {
				return gc.TrueNull, errors.New(errors.NoSuchMethod,
					"no such method: %s.%s", class.Name, op.Name)
			}
			if callee.ParamsCount != argc {
				return gc.TrueNull, errors.New(errors.ArityMismatch,
					"%s.%s takes %d arguments, got %d", class.Name, op.Name, callee.ParamsCount, argc)
			}
			// The receiver and arguments already sit where the callee
			// expects its this slot and first locals.
			stackPos = receiverPos
			result, err := Run(ctx, g, io, stack[receiverPos:], callee)
			if err != nil {
				return gc.TrueNull, pkgerrors.Wrapf(err, "failed to run method %s.%s", class.Name, op.Name)
			}
			push(result)

		case bytecode.OpIs:
			push(Bool(ctx, g, op.Range.Matches(pop().Class)))

		case bytecode.OpEquals:
			a := pop()
			b := pop()
			push(Bool(ctx, g, a == b))

		case bytecode.OpReturn:
			if stackPos != 1 {
				panic("operand stack not singular at return, compiled code is inconsistent")
			}
			result := pop()
			wipeVars()
			return result, nil

		case bytecode.OpJump:
			if ctx.Table.Truth.Matches(pop().Class) == op.Expected {
				pc = op.A
				continue
			}

		case bytecode.OpPop:
			pop()

		case bytecode.OpRecurse:
			// Self tail-call: the operand stack holds exactly the new
			// arguments. Move them into the locals, wipe everything
			// else and restart.
			for i := 0; i < method.ParamsCount; i++ {
				vars[i] = stack[i]
			}
			for i := method.ParamsCount; i < len(vars); i++ {
				vars[i] = gc.TrueNull
			}
			for i := 0; i < stackPos; i++ {
				stack[i] = gc.TrueNull
			}
			stackPos = 0
			pc = 0
			continue
		}
		pc++
	}

	if stackPos != 0 {
		panic("operand stack not empty at method end, compiled code is inconsistent")
	}
	wipeVars()
	return Null(ctx, g), nil
}
