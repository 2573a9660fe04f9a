package vm

import (
	pkgerrors "github.com/pkg/errors"

	"adv/internal/bytecode"
	"adv/internal/errors"
	"adv/internal/gc"
)

// Bridge method names. A program gains I/O by declaring these as
// bodyless methods on its entrypoint class.
const (
	BuiltinPushChar = "builtin:push_char"
	BuiltinPopChar  = "builtin:pop_char"
	BuiltinWrite    = "builtin:write"
	BuiltinRead     = "builtin:read"
)

// runBodyless dispatches a bodyless method. Only the entrypoint
// singleton bridges to the host; on any other receiver a bodyless
// method is abstract.
func runBodyless(ctx *RunCtx, g *gc.GC, io *IOManager, frame []gc.Object, method *bytecode.CompiledMethod) (gc.Object, error) {
	// The arguments sit on the caller's operand stack; wipe them on the
	// way out, as a method with a body wipes its locals.
	defer func() {
		for i := 1; i <= method.ParamsCount; i++ {
			frame[i] = gc.TrueNull
		}
	}()

	this := frame[0]
	if this != ctx.Entrypoint {
		return gc.TrueNull, errors.New(errors.AbstractCall,
			"method %s has no body and its receiver is not the entrypoint", method.Name)
	}

	switch method.Name {
	case BuiltinPushChar:
		c, err := charArgument(ctx, frame[1])
		if err != nil {
			return gc.TrueNull, err
		}
		io.PushChar(c)

	case BuiltinPopChar:
		c, ok := io.PopChar()
		if !ok {
			return Null(ctx, g), nil
		}
		if r, declared := ctx.Table.Map["'"+string(c)+"'"]; declared {
			return NewRange(ctx, g, r), nil
		}
		return Null(ctx, g), nil

	case BuiltinWrite:
		if err := io.Write(); err != nil {
			return gc.TrueNull, err
		}

	case BuiltinRead:
		if err := io.Read(); err != nil {
			return gc.TrueNull, err
		}

	default:
		return gc.TrueNull, errors.New(errors.AbstractCall,
			"method %s has no body and is not a builtin", method.Name)
	}
	return Null(ctx, g), nil
}

// charArgument extracts the character a singleton argument stands for:
// its class must be named with a quoted single character, like 'a'.
func charArgument(ctx *RunCtx, arg gc.Object) (rune, error) {
	name := ClassName(ctx, arg)
	runes := []rune(name)
	if len(runes) != 3 || runes[0] != '\'' || runes[2] != '\'' {
		return 0, pkgerrors.Errorf("%s expects a character object, got %s", BuiltinPushChar, name)
	}
	return runes[1], nil
}
