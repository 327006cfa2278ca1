// Package path provides path selector abstractions for navigating configuration trees.
//
// A path is a '/'-separated sequence of steps, optionally rooted at '/' or
// at a variable ($target). Each step selects children by label, '*', '.'
// or '..', and may be filtered by predicates:
//
//	$target/*[canonical = $name]/alias[last()]
//	$target/Match[count(Condition/*)=2][Condition/User='root']/Settings
//	$target/#comment[. =~ regexp($re)]
//
// Values are best passed as bound arguments (see Bind) rather than
// spliced into the path text.
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// Origin describes where evaluation of a path starts.
type Origin int

const (
	// Relative paths start at the context node.
	Relative Origin = iota
	// Absolute paths start at the tree root.
	Absolute
	// Variable paths start at the node set bound to a variable.
	Variable
)

// Expr is a compiled path.
type Expr struct {
	src    string
	origin Origin
	name   string // variable name when origin is Variable
	steps  []Step
}

// StepKind identifies the kind of a location step.
type StepKind int

const (
	// LabelStep selects children with a given label.
	LabelStep StepKind = iota
	// AnyStep selects every child ('*').
	AnyStep
	// SelfStep selects the context node ('.').
	SelfStep
	// ParentStep selects the parent ('..').
	ParentStep
)

// Step is one location step of a path.
type Step struct {
	Kind  StepKind
	Label string
	preds []node
}

// Arg binds a string value to a variable name for one evaluation.
type Arg struct {
	Name  string
	Value string
}

// Bind returns an Arg binding name to value.
func Bind(name, value string) Arg {
	return Arg{Name: name, Value: value}
}

// SyntaxError reports a malformed path.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// Compile parses a path.
func Compile(src string) (*Expr, error) {
	p := &parser{src: src}
	p.skipSpace()
	e, err := p.location()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	e.src = src
	return e, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text of the path.
func (e *Expr) String() string {
	return e.src
}

// Origin returns where evaluation starts.
func (e *Expr) Origin() Origin {
	return e.origin
}

// Var returns the variable name of a variable-rooted path.
func (e *Expr) Var() string {
	return e.name
}

// Steps returns the location steps of the path.
func (e *Expr) Steps() []Step {
	return e.steps
}

// Predicates reports how many predicates filter the step.
func (s Step) Predicates() int {
	return len(s.preds)
}

// Appends reports whether the step is a label followed by exactly the
// predicate [last()+1].
func (s Step) Appends() bool {
	if s.Kind != LabelStep || len(s.preds) != 1 {
		return false
	}
	b, ok := s.preds[0].(*binaryNode)
	if !ok || b.op != "+" {
		return false
	}
	c, ok := b.left.(*callNode)
	if !ok || c.name != "last" {
		return false
	}
	n, ok := b.right.(*numberNode)
	return ok && n.v == 1
}

// Index returns the position N of a step written label[N].
func (s Step) Index() (int, bool) {
	if s.Kind != LabelStep || len(s.preds) != 1 {
		return 0, false
	}
	n, ok := s.preds[0].(*numberNode)
	if !ok || n.v != float64(int(n.v)) || n.v < 1 {
		return 0, false
	}
	return int(n.v), true
}

// Join joins path segments with '/'.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSuffix(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// EscapeLabel escapes characters that would otherwise end a label.
func EscapeLabel(label string) string {
	var b strings.Builder
	for i, r := range label {
		if strings.ContainsRune(labelStop, r) || r == '\\' || r == ' ' || r == '\t' ||
			(i == 0 && (r == '$' || r == '*' || r == '.' || isDigit(r))) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Quote returns s as a string literal usable inside a predicate.
func Quote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// formatNumber renders a number the way it is compared against node values.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
