// internal/classtable/classtable.go
package classtable

import (
	"adv/internal/errors"
	"adv/internal/parser"
)

// TypeRange is a half-open interval [Start, End) of class ids covering
// one class and all of its descendants. Depth-first numbering makes the
// subtype test two integer comparisons.
type TypeRange struct {
	Start int
	End   int
}

// Empty is the range of a class that was never declared; it matches
// nothing.
var Empty = TypeRange{}

func (r TypeRange) Matches(class int) bool {
	return class >= r.Start && class < r.End
}

// ClassTable is the depth-first linearisation of the inheritance tree,
// with the name → range map and the well-known ranges resolved.
type ClassTable struct {
	Classes []parser.Class
	Map     map[string]TypeRange

	Null  TypeRange
	Truth TypeRange
	Lie   TypeRange
}

// Build linearises the classes in depth-first preorder. A class whose
// declared parent never appears fails with UnknownParent. A duplicate
// name keeps both table slots but the later declaration owns the map
// entry.
func Build(input []parser.Class) (*ClassTable, error) {
	classes := make([]parser.Class, 0, len(input))
	rangeMap := make(map[string]TypeRange, len(input))

	parentMap := make(map[string][]parser.Class)
	for _, c := range input {
		parentMap[c.Parent] = append(parentMap[c.Parent], c)
	}

	var addWithParent func(parent string)
	addWithParent = func(parent string) {
		for _, c := range parentMap[parent] {
			start := len(classes)
			classes = append(classes, c)
			addWithParent(c.Name)
			rangeMap[c.Name] = TypeRange{Start: start, End: len(classes)}
		}
	}
	addWithParent("")

	if len(classes) != len(input) {
		for _, c := range input {
			if _, ok := rangeMap[c.Name]; !ok {
				return nil, errors.New(errors.UnknownParent,
					"class %s extends %s, which is not declared anywhere", c.Name, c.Parent)
			}
		}
	}

	nullRange, ok := rangeMap["Null"]
	if !ok {
		return nil, errors.New(errors.NullClassMissing, "the Null class is not declared")
	}

	return &ClassTable{
		Classes: classes,
		Map:     rangeMap,
		Null:    nullRange,
		Truth:   rangeMap["True"],
		Lie:     rangeMap["False"],
	}, nil
}

// GetClassID resolves a class name to its id, the start of its range.
func (t *ClassTable) GetClassID(name string) (int, error) {
	r, ok := t.Map[name]
	if !ok {
		return 0, errors.New(errors.UnknownClass, "unknown class %s", name)
	}
	return r.Start, nil
}

// GetClass returns the declaration a name resolves to.
func (t *ClassTable) GetClass(name string) (parser.Class, bool) {
	r, ok := t.Map[name]
	if !ok {
		return parser.Class{}, false
	}
	return t.Classes[r.Start], true
}
