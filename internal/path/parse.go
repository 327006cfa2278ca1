package path

import (
	"fmt"
	"strconv"
	"strings"
)

// labelStop lists the characters that end an unescaped label.
const labelStop = "/[]()=!<>,|'\""

// functions maps supported function names to their arity.
var functions = map[string]int{
	"last":     0,
	"position": 0,
	"label":    0,
	"count":    1,
	"regexp":   1,
	"glob":     1,
	"not":      1,
}

// Expression nodes of a predicate.
type (
	node interface{}

	binaryNode struct {
		op          string
		left, right node
	}

	callNode struct {
		name string
		args []node
	}

	stringNode struct{ v string }

	numberNode struct{ v float64 }

	// pathNode is a location path used as a value; a bare $var is a
	// pathNode with Variable origin and no steps.
	pathNode struct{ e *Expr }
)

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

// location parses a location path.
func (p *parser) location() (*Expr, error) {
	e := &Expr{origin: Relative}
	switch p.peek() {
	case '$':
		p.pos++
		name := p.ident()
		if name == "" {
			return nil, p.errorf("missing variable name")
		}
		e.origin, e.name = Variable, name
		if p.peek() != '/' {
			return e, nil
		}
		p.pos++
	case '/':
		p.pos++
		e.origin = Absolute
		if p.eof() || !p.startsStep() {
			return e, nil
		}
	}
	for {
		st, err := p.step()
		if err != nil {
			return nil, err
		}
		e.steps = append(e.steps, st)
		if p.peek() != '/' {
			return e, nil
		}
		p.pos++
	}
}

// startsStep reports whether the input at the current position can begin a step.
func (p *parser) startsStep() bool {
	c := p.peek()
	return c == '\\' || (c != ' ' && c != '\t' && !strings.ContainsRune(labelStop, rune(c)))
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || isLetter(rune(c)) || (p.pos > start && isDigit(rune(c))) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) step() (Step, error) {
	var st Step
	switch {
	case p.peek() == '*':
		p.pos++
		st.Kind = AnyStep
	case strings.HasPrefix(p.src[p.pos:], "..") && p.endsLabel(p.pos+2):
		p.pos += 2
		st.Kind = ParentStep
	case p.peek() == '.' && p.endsLabel(p.pos+1):
		p.pos++
		st.Kind = SelfStep
	default:
		label, err := p.label()
		if err != nil {
			return st, err
		}
		st.Kind, st.Label = LabelStep, label
	}
	for p.peek() == '[' {
		p.pos++
		p.skipSpace()
		pred, err := p.or()
		if err != nil {
			return st, err
		}
		p.skipSpace()
		if p.peek() != ']' {
			return st, p.errorf("expected ']'")
		}
		p.pos++
		st.preds = append(st.preds, pred)
	}
	return st, nil
}

// endsLabel reports whether position i is the end of a label.
func (p *parser) endsLabel(i int) bool {
	if i >= len(p.src) {
		return true
	}
	c := p.src[i]
	return c == ' ' || c == '\t' || strings.ContainsRune(labelStop, rune(c))
}

func (p *parser) label() (string, error) {
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\\' {
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("dangling escape")
			}
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		if p.endsLabel(p.pos) {
			break
		}
		b.WriteByte(c)
		p.pos++
	}
	if b.Len() == 0 {
		if p.eof() {
			return "", p.errorf("empty step")
		}
		return "", p.errorf("unexpected %q", string(p.peek()))
	}
	return b.String(), nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

// keyword consumes kw when it appears as a whole word after optional space.
func (p *parser) keyword(kw string) bool {
	save := p.pos
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], kw) {
		end := p.pos + len(kw)
		if end < len(p.src) && (p.src[end] == ' ' || p.src[end] == '\t' || p.src[end] == '(') {
			p.pos = end
			p.skipSpace()
			return true
		}
	}
	p.pos = save
	return false
}

var comparisons = []string{"=~", "!=", "<=", ">=", "=", "<", ">"}

func (p *parser) comparison() (node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	for _, op := range comparisons {
		if strings.HasPrefix(p.src[p.pos:], op) {
			p.pos += len(op)
			p.skipSpace()
			right, err := p.additive()
			if err != nil {
				return nil, err
			}
			return &binaryNode{op: op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) additive() (node, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		p.skipSpace()
		c := p.peek()
		if c != '+' && c != '-' {
			p.pos = save
			return left, nil
		}
		p.pos++
		p.skipSpace()
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: string(c), left: left, right: right}
	}
}

func (p *parser) primary() (node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of expression")
	}
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		p.skipSpace()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorf("expected ')'")
		}
		p.pos++
		return inner, nil
	case c == '\'' || c == '"':
		s, err := p.literal()
		if err != nil {
			return nil, err
		}
		return &stringNode{v: s}, nil
	case isDigit(rune(c)):
		return p.number()
	case c == '$' || c == '/':
		e, err := p.location()
		if err != nil {
			return nil, err
		}
		return &pathNode{e: e}, nil
	}
	if name, ok := p.call(); ok {
		return p.arguments(name)
	}
	e, err := p.location()
	if err != nil {
		return nil, err
	}
	return &pathNode{e: e}, nil
}

// call reports whether a known function name followed by '(' starts here.
func (p *parser) call() (string, bool) {
	rest := p.src[p.pos:]
	for name := range functions {
		if !strings.HasPrefix(rest, name) {
			continue
		}
		tail := strings.TrimLeft(rest[len(name):], " \t")
		if strings.HasPrefix(tail, "(") {
			p.pos += len(rest) - len(tail) + 1
			return name, true
		}
	}
	return "", false
}

func (p *parser) arguments(name string) (node, error) {
	call := &callNode{name: name}
	p.skipSpace()
	for p.peek() != ')' {
		if len(call.args) > 0 {
			if p.peek() != ',' {
				return nil, p.errorf("expected ',' or ')'")
			}
			p.pos++
		}
		arg, err := p.or()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated call to %s()", name)
		}
	}
	p.pos++
	if want := functions[name]; len(call.args) != want {
		return nil, p.errorf("%s() takes %d argument(s), got %d", name, want, len(call.args))
	}
	return call, nil
}

func (p *parser) literal() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) number() (node, error) {
	start := p.pos
	for !p.eof() && (isDigit(rune(p.peek())) || p.peek() == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", p.src[start:p.pos])
	}
	return &numberNode{v: v}, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
