// internal/loader/loader.go
package loader

import (
	"os"
	"path/filepath"

	"adv/internal/errors"
	"adv/internal/lexer"
	"adv/internal/parser"
)

// SourceExtension is appended to import names when resolving them to
// files.
const SourceExtension = ".adv"

// ParseFile tokenizes and parses a single source file.
func ParseFile(path string) (parser.Metadata, []parser.Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return parser.Metadata{}, nil, errors.New(errors.FileRead, "failed to read %s: %v", path, err)
	}
	tokens, err := lexer.NewScanner(path, string(data)).ScanTokens()
	if err != nil {
		return parser.Metadata{}, nil, err
	}
	return parser.NewParser(path, tokens).Parse()
}

// Load reads a program file and the files it imports. Only the
// top-level file's imports are followed, one level deep, each resolved
// relative to the importing file's directory.
func Load(path string) (parser.Metadata, []parser.Class, error) {
	metadata, classes, err := ParseFile(path)
	if err != nil {
		return parser.Metadata{}, nil, err
	}
	for _, dep := range metadata.Imports {
		depPath := filepath.Join(filepath.Dir(path), dep+SourceExtension)
		_, depClasses, err := ParseFile(depPath)
		if err != nil {
			return parser.Metadata{}, nil, err
		}
		classes = append(classes, depClasses...)
	}
	return metadata, classes, nil
}

// Builtins are the class declarations every program gets for free.
// Null extends Object as its first child, pinning it at id 1 so the
// null sentinel is never confused with a real user class.
func Builtins() []parser.Class {
	return []parser.Class{
		{Name: "Object"},
		{Name: "Null", Parent: "Object"},
	}
}

// WithBuiltins prepends the builtin declarations to a program's
// classes.
func WithBuiltins(classes []parser.Class) []parser.Class {
	return append(Builtins(), classes...)
}
