package stringifier

import (
	"fmt"
	"strings"

	"adv/internal/parser"
)

// Stringifier renders a parsed program back to source text. Merge mode
// uses it to print a program with its imports inlined.
type Stringifier struct {
	indent    int
	indentStr string
	output    strings.Builder
}

func New() *Stringifier {
	return &Stringifier{
		indentStr: "    ",
	}
}

func Stringify(metadata parser.Metadata, classes []parser.Class) string {
	s := New()
	s.metadata(metadata)
	for _, class := range classes {
		s.class(class)
	}
	return s.output.String()
}

func (s *Stringifier) metadata(metadata parser.Metadata) {
	s.line(fmt.Sprintf("target: '%s'", metadata.Target))
	s.newline()
	for _, imp := range metadata.Imports {
		s.line(fmt.Sprintf("import: '%s'", imp))
	}
	s.newline()
	for _, entry := range metadata.Entrypoints {
		s.line(fmt.Sprintf("entrypoint: '%s'", entry))
	}
	s.newline()
}

func (s *Stringifier) class(class parser.Class) {
	if class.Parent != "" {
		s.line(fmt.Sprintf("class %s extends %s:", class.Name, class.Parent))
	} else {
		s.line(fmt.Sprintf("class %s:", class.Name))
	}
	s.indent++

	for _, field := range class.OwnFields {
		s.line("field " + field)
	}
	for _, method := range class.OwnMethods {
		suffix := ""
		if method.HasBody {
			suffix = ":"
		}
		s.line(fmt.Sprintf("method %s%s%s", method.Name, nameList(method.Params), suffix))
		if method.HasBody {
			s.block(method.Body)
		}
	}

	s.indent--
	s.line("end")
}

func (s *Stringifier) block(stmts []parser.Stmt) {
	s.indent++
	for _, stmt := range stmts {
		s.statement(stmt)
	}
	s.indent--
	s.line("end")
}

func (s *Stringifier) statement(stmt parser.Stmt) {
	switch st := stmt.(type) {
	case *parser.ReturnStmt:
		s.line("return " + Expression(st.Value))
	case *parser.IfStmt:
		s.line("if " + Expression(st.Condition) + ":")
		s.block(st.Body)
	case *parser.WhileStmt:
		s.line("while " + Expression(st.Condition) + ":")
		s.block(st.Body)
	case *parser.SetVarStmt:
		s.line(st.Name + " = " + Expression(st.Value))
	case *parser.SetFieldStmt:
		s.line(operand(st.Object) + "." + st.Name + " = " + Expression(st.Value))
	case *parser.CallStmt:
		s.line(operand(st.Object) + "." + st.Method + exprList(st.Args))
	}
}

// Expression renders a single expression.
func Expression(expr parser.Expr) string {
	switch e := expr.(type) {
	case *parser.GetExpr:
		return e.Name
	case *parser.GetFieldExpr:
		return operand(e.Object) + "." + e.Name
	case *parser.CallExpr:
		return operand(e.Object) + "." + e.Method + exprList(e.Args)
	case *parser.IsExpr:
		return operand(e.Object) + " is " + e.Class
	case *parser.EqualsExpr:
		return operand(e.Left) + " = " + Expression(e.Right)
	default:
		return ""
	}
}

// operand renders an expression that a postfix or the left side of an
// equality applies to; an equality there keeps its parentheses.
func operand(expr parser.Expr) string {
	if _, ok := expr.(*parser.EqualsExpr); ok {
		return "(" + Expression(expr) + ")"
	}
	return Expression(expr)
}

func exprList(exprs []parser.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = Expression(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func nameList(names []string) string {
	return "(" + strings.Join(names, ", ") + ")"
}

func (s *Stringifier) line(text string) {
	for i := 0; i < s.indent; i++ {
		s.output.WriteString(s.indentStr)
	}
	s.output.WriteString(text)
	s.output.WriteString("\n")
}

func (s *Stringifier) newline() {
	s.output.WriteString("\n")
}
