package vm

import (
	"adv/internal/bytecode"
	"adv/internal/classtable"
	"adv/internal/gc"
)

// RunCtx is the immutable run context: the class table, the compiled
// program, and the entrypoint singleton whose identity separates
// host-bridge receivers from user objects.
type RunCtx struct {
	Table      *classtable.ClassTable
	Classes    []bytecode.CompiledClass
	Entrypoint gc.Object
}

// NewRunCtx builds the context and immediately allocates the
// entrypoint object, so a GC-root identity exists before any user code
// runs.
func NewRunCtx(g *gc.GC, table *classtable.ClassTable, classes []bytecode.CompiledClass, entryClass int) *RunCtx {
	ctx := &RunCtx{
		Table:   table,
		Classes: classes,
	}
	ctx.Entrypoint = NewObject(ctx, g, entryClass)
	return ctx
}

// NewObject allocates a fresh instance of the class with every field
// set to a fresh null.
func NewObject(ctx *RunCtx, g *gc.GC, class int) gc.Object {
	size := len(ctx.Classes[class].Fields)
	contents := g.Alloc(size)
	for i := 0; i < size; i++ {
		(*contents)[i] = Null(ctx, g)
	}
	return gc.Object{Class: class, Contents: contents}
}

// NewRange allocates an instance of the class a range denotes. An
// undeclared class has the empty range and yields a fresh null, so
// user code can evaluate booleans without defining True and False.
func NewRange(ctx *RunCtx, g *gc.GC, r classtable.TypeRange) gc.Object {
	if r == classtable.Empty {
		return Null(ctx, g)
	}
	return NewObject(ctx, g, r.Start)
}

func Null(ctx *RunCtx, g *gc.GC) gc.Object {
	return NewRange(ctx, g, ctx.Table.Null)
}

// Bool boxes a host boolean as a fresh True or False instance. Boxed
// booleans are always fresh: two Trues never compare equal under =.
func Bool(ctx *RunCtx, g *gc.GC, b bool) gc.Object {
	if b {
		return NewRange(ctx, g, ctx.Table.Truth)
	}
	return NewRange(ctx, g, ctx.Table.Lie)
}

// ClassName returns the declared name of an object's class.
func ClassName(ctx *RunCtx, obj gc.Object) string {
	return ctx.Classes[obj.Class].Name
}
