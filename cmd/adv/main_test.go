package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adv/internal/classtable"
	"adv/internal/errors"
	"adv/internal/parser"
)

func writeProgram(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.adv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const booleans = `
class True extends Object:
    method not():
        return False
    end
    method and(other):
        if other is True:
            return True
        end
        return False
    end
    method or(other):
        return True
    end
end
class False extends Object:
    method not():
        return True
    end
    method and(other):
        return False
    end
    method or(other):
        if other is True:
            return True
        end
        return False
    end
end
`

// The end-to-end scenarios, driven through the same entry point the
// CLI uses.
func TestRunCommandScenarios(t *testing.T) {
	tests := []struct {
		name    string
		program string
		input   string
		want    string
	}{
		{
			name: "boolean round trip",
			program: `target: 'indev'
entrypoint: 'Test'
` + booleans + `
class Test extends Object:
    method main():
        return True.not().and(False.or(True))
    end
end
`,
			want: "False\n",
		},
		{
			name: "linked list stress",
			program: `target: 'indev'
entrypoint: 'Test'
` + booleans + `
class Node extends Object:
    field value
    field next
end
class List extends Object:
    field head
    method first():
        return this.head.value
    end
    method push(value):
        node = Node
        node.value = value
        if this.head is Null:
            this.head = node
            return Null
        end
        last = this.head
        while last.next is Node:
            last = last.next
        end
        last.next = node
        return Null
    end
    method pop():
        node = this.head
        this.head = node.next
        return node.value
    end
end
class Test extends Object:
    method main():
        list = List
        list.push(True)
        list.push(False)
        list.push(list.first())
        return list.pop()
    end
end
`,
			want: "True\n",
		},
		{
			name: "peano addition",
			program: `target: 'indev'
entrypoint: 'Test'

class True extends Object:
end
class False extends Object:
end
class Number extends Object:
    method +(other):
        if other is 0:
            return this
        end
        return this.next().+(other.prev())
    end
end
class 0 extends Number:
    method next():
        return 1
    end
end
class 1 extends Number:
    method prev():
        return 0
    end
    method next():
        return 2
    end
end
class 2 extends Number:
    method prev():
        return 1
    end
    method next():
        return 3
    end
end
class 3 extends Number:
    method prev():
        return 2
    end
    method next():
        return 4
    end
end
class 4 extends Number:
    method prev():
        return 3
    end
    method next():
        return 5
    end
end
class 5 extends Number:
    method prev():
        return 4
    end
end
class Test extends Object:
    method main():
        return 2.+(3)
    end
end
`,
			want: "5\n",
		},
		{
			name: "char echo",
			program: `target: 'indev'
entrypoint: 'Program'
` + booleans + `
class Char extends Object:
end
class 'a' extends Char:
end
class 'b' extends Char:
end
class 'c' extends Char:
end
class Node extends Object:
    field value
    field next
end
class List extends Object:
    field head
    field tail
    method push(value):
        node = Node
        node.value = value
        if this.head is Null:
            this.head = node
            this.tail = node
            return Null
        end
        this.tail.next = node
        this.tail = node
        return Null
    end
    method pop():
        node = this.head
        this.head = node.next
        return node.value
    end
end
class Program extends Object:
    method builtin:read()
    method builtin:write()
    method builtin:push_char(c)
    method builtin:pop_char()
    method main():
        this.builtin:read()
        chars = List
        c = this.builtin:pop_char()
        while c is Char:
            chars.push(c)
            c = this.builtin:pop_char()
        end
        while chars.head is Node:
            this.builtin:push_char(chars.pop())
        end
        this.builtin:write()
    end
end
`,
			input: "abc\n",
			want:  "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProgram(t, tt.program)
			output := &strings.Builder{}
			if err := runCommand(path, false, strings.NewReader(tt.input), output); err != nil {
				t.Fatalf("runCommand failed: %v", err)
			}
			if output.String() != tt.want {
				t.Errorf("output: got %q, want %q", output.String(), tt.want)
			}
		})
	}
}

func TestRunCommandFailures(t *testing.T) {
	tests := []struct {
		name    string
		program string
		want    errors.ErrorType
	}{
		{
			name: "use before init",
			program: `target: 'indev'
entrypoint: 'Test'
` + booleans + `
class Test extends Object:
    method main():
        if False is True:
            x = True
        end
        return x
    end
end
`,
			want: errors.UseBeforeInit,
		},
		{
			name: "version skew",
			program: `target: 'other'

class Test extends Object:
end
`,
			want: errors.VersionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProgram(t, tt.program)
			err := runCommand(path, false, strings.NewReader(""), &strings.Builder{})
			if !errors.IsType(err, tt.want) {
				t.Errorf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestRunCommandVersionSkewNamesBothVersions(t *testing.T) {
	path := writeProgram(t, "target: 'other'\n")
	err := runCommand(path, false, strings.NewReader(""), &strings.Builder{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "other") || !strings.Contains(err.Error(), parser.CurrentVersion) {
		t.Errorf("the error should name both versions: %v", err)
	}
}

func entrypointTable(t *testing.T) *classtable.ClassTable {
	t.Helper()
	table, err := classtable.Build([]parser.Class{
		{Name: "Object"},
		{Name: "Null", Parent: "Object"},
		{Name: "First", Parent: "Object"},
		{Name: "Second", Parent: "Object"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table
}

func TestChooseEntrypoint(t *testing.T) {
	table := entrypointTable(t)
	firstID, _ := table.GetClassID("First")
	secondID, _ := table.GetClassID("Second")

	tests := []struct {
		name        string
		entrypoints []string
		input       string
		want        int
		wantErr     string
	}{
		{
			name:    "none defined",
			wantErr: "no entrypoint defined",
		},
		{
			name:        "single is implicit",
			entrypoints: []string{"Second"},
			want:        secondID,
		},
		{
			name:        "single unknown class",
			entrypoints: []string{"Ghost"},
			wantErr:     "unknown class",
		},
		{
			name:        "selection picks one-based entry",
			entrypoints: []string{"First", "Second"},
			input:       "2\n",
			want:        secondID,
		},
		{
			name:        "selection of the first entry",
			entrypoints: []string{"First", "Second"},
			input:       "1\n",
			want:        firstID,
		},
		{
			name:        "selection without trailing newline",
			entrypoints: []string{"First", "Second"},
			input:       "1",
			want:        firstID,
		},
		{
			name:        "zero is out of range",
			entrypoints: []string{"First", "Second"},
			input:       "0\n",
			wantErr:     "not in range",
		},
		{
			name:        "selection past the end",
			entrypoints: []string{"First", "Second"},
			input:       "3\n",
			wantErr:     "not in range",
		},
		{
			name:        "selection is not a number",
			entrypoints: []string{"First", "Second"},
			input:       "first\n",
			wantErr:     "not a number",
		},
		{
			name:        "empty input",
			entrypoints: []string{"First", "Second"},
			input:       "",
			wantErr:     "failed to read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdin := bufio.NewReader(strings.NewReader(tt.input))
			got, err := chooseEntrypoint(table, tt.entrypoints, stdin, &strings.Builder{}, false)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("chooseEntrypoint failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got id %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChooseEntrypointMenu(t *testing.T) {
	table := entrypointTable(t)

	output := &strings.Builder{}
	stdin := bufio.NewReader(strings.NewReader("1\n"))
	if _, err := chooseEntrypoint(table, []string{"First", "Second"}, stdin, output, true); err != nil {
		t.Fatalf("chooseEntrypoint failed: %v", err)
	}
	for _, want := range []string{"Choose entrypoint:", "1) First", "2) Second"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("menu missing %q:\n%s", want, output.String())
		}
	}

	// Piped input gets no menu.
	output.Reset()
	stdin = bufio.NewReader(strings.NewReader("1\n"))
	if _, err := chooseEntrypoint(table, []string{"First", "Second"}, stdin, output, false); err != nil {
		t.Fatalf("chooseEntrypoint failed: %v", err)
	}
	if output.Len() != 0 {
		t.Errorf("non-interactive selection should stay silent, got %q", output.String())
	}
}

func TestMergeCommandStripsImports(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.adv"), []byte(`target: 'indev'

class Helper extends Object:
end
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	main := filepath.Join(dir, "main.adv")
	if err := os.WriteFile(main, []byte(`target: 'indev'
import: 'lib'
entrypoint: 'Test'

class Test extends Object:
end
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	output := &strings.Builder{}
	if err := mergeCommand(main, output); err != nil {
		t.Fatalf("mergeCommand failed: %v", err)
	}
	merged := output.String()
	if strings.Contains(merged, "import:") {
		t.Errorf("imports must be stripped from merged output:\n%s", merged)
	}
	for _, want := range []string{"target: 'indev'", "entrypoint: 'Test'", "class Test extends Object:", "class Helper extends Object:"} {
		if !strings.Contains(merged, want) {
			t.Errorf("merged output missing %q:\n%s", want, merged)
		}
	}
}

func TestCheckCommand(t *testing.T) {
	path := writeProgram(t, `target: 'indev'
entrypoint: 'Test'

class Test extends Object:
    method main():
        return Null
    end
end
`)
	output := &strings.Builder{}
	if err := checkCommand(path, output); err != nil {
		t.Fatalf("checkCommand failed: %v", err)
	}
	if output.String() != "ok\n" {
		t.Errorf("got %q, want %q", output.String(), "ok\n")
	}
}

func TestCheckCommandRejectsUnknownEntrypoint(t *testing.T) {
	path := writeProgram(t, `target: 'indev'
entrypoint: 'Ghost'

class Test extends Object:
end
`)
	err := checkCommand(path, &strings.Builder{})
	if !errors.IsType(err, errors.UnknownClass) {
		t.Errorf("expected UnknownClass, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "failed to find entrypoint") {
		t.Errorf("the error should say the entrypoint lookup failed, got %v", err)
	}
}
