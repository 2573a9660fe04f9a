// internal/gc/gc.go
package gc

// Contents is the heap-allocated field array of one object. Identity
// equality of objects is identity of this pointer.
type Contents = []Object

// Object is a runtime value: a class id plus a pointer to the contents
// array holding one slot per field. The zero Object is TRUE_NULL, the
// empty-slot sentinel on the activation array; it is never a user
// value.
type Object struct {
	Class    int
	Contents *Contents
}

// TrueNull marks unused activation-array slots. The garbage collector
// scans roots up to the first TrueNull, which is why the interpreter
// writes it into every popped slot.
var TrueNull = Object{}

func (o Object) IsTrueNull() bool {
	return o == TrueNull
}

// Stats counts heap activity for the -stats report.
type Stats struct {
	Allocations     uint64
	ZeroAllocations uint64
	Collections     uint64
}

// GC owns the live set of contents arrays and collects with a precise
// mark-and-sweep over the used prefix of the activation array.
type GC struct {
	allocations map[*Contents]struct{}
	capacity    int
	stack       []Object
	stats       Stats
}

// New creates a collector rooted at the activation array. heapSize is
// the live-set watermark that triggers a collection.
func New(stack []Object, heapSize int) *GC {
	return &GC{
		allocations: make(map[*Contents]struct{}, heapSize),
		capacity:    heapSize,
		stack:       stack,
	}
}

// Alloc returns a fresh contents array of the given size. Zero-sized
// allocations never enter the live set: the slice header itself is a
// fresh allocation, so each one keeps a distinct identity without
// consuming a heap slot.
func (g *GC) Alloc(size int) *Contents {
	if size == 0 {
		g.stats.ZeroAllocations++
		return &Contents{}
	}
	if len(g.allocations) >= g.capacity {
		g.Collect()
	}
	contents := make(Contents, size)
	g.allocations[&contents] = struct{}{}
	g.stats.Allocations++
	return &contents
}

// Collect marks every block reachable from the used prefix of the
// activation array and replaces the live set with the marked set.
// Unmarked blocks are left to the runtime to reclaim.
func (g *GC) Collect() {
	keepAlive := make(map[*Contents]struct{}, len(g.allocations))

	var add func(obj Object)
	add = func(obj Object) {
		// Zero-sized blocks hold nothing to trace and stay out of the
		// live set, as in Alloc.
		if obj.Contents == nil || len(*obj.Contents) == 0 {
			return
		}
		if _, seen := keepAlive[obj.Contents]; seen {
			return
		}
		keepAlive[obj.Contents] = struct{}{}
		for _, field := range *obj.Contents {
			add(field)
		}
	}

	for _, root := range g.stack {
		if root.IsTrueNull() {
			break
		}
		add(root)
	}

	g.allocations = keepAlive
	g.stats.Collections++
}

// Live reports the current live-set size, zero-sized blocks excluded.
func (g *GC) Live() int {
	return len(g.allocations)
}

func (g *GC) Stats() Stats {
	return g.stats
}
