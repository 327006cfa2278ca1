package path

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Navigator exposes a tree of N to the evaluator.
type Navigator[N comparable] interface {
	// Label returns the label of n.
	Label(n N) string
	// Value returns the value of n and whether it has one.
	Value(n N) (string, bool)
	// Children returns the addressable children of n in document order.
	Children(n N) []N
	// Parent returns the parent of n and false for the root.
	Parent(n N) (N, bool)
}

// Env holds the bindings for one evaluation.
type Env[N comparable] struct {
	// Root is the node an absolute path starts at.
	Root N
	// Nodes binds variables to node sets.
	Nodes map[string][]N
	// Args binds variables to strings.
	Args map[string]string
}

// Select evaluates e and returns the matching nodes in document order.
// Relative paths are evaluated against env.Root.
func Select[N comparable](e *Expr, nav Navigator[N], env *Env[N]) ([]N, error) {
	return SelectPrefix(e, len(e.steps), nav, env)
}

// SelectPrefix evaluates the origin of e and its first n steps.
func SelectPrefix[N comparable](e *Expr, n int, nav Navigator[N], env *Env[N]) ([]N, error) {
	ev := &evaluator[N]{nav: nav, env: env}
	start, err := ev.origin(e, []N{env.Root})
	if err != nil {
		return nil, err
	}
	return ev.steps(start, e.steps[:n])
}

type kind int

const (
	nodeSet kind = iota
	stringValue
	numberValue
	boolValue
	regexpValue
)

type value[N comparable] struct {
	kind  kind
	nodes []N
	s     string
	n     float64
	b     bool
	re    *regexp.Regexp
}

type evaluator[N comparable] struct {
	nav Navigator[N]
	env *Env[N]
}

// context is the node under test in a predicate together with its
// position among the candidates.
type context[N comparable] struct {
	node      N
	pos, size int
}

func (ev *evaluator[N]) origin(e *Expr, ctx []N) ([]N, error) {
	switch e.origin {
	case Absolute:
		return []N{ev.env.Root}, nil
	case Variable:
		nodes, ok := ev.env.Nodes[e.name]
		if !ok {
			if _, isArg := ev.env.Args[e.name]; isArg {
				return nil, fmt.Errorf("variable $%s is a string and cannot start a path", e.name)
			}
			return nil, fmt.Errorf("undefined variable $%s", e.name)
		}
		return nodes, nil
	}
	return ctx, nil
}

func (ev *evaluator[N]) steps(cur []N, steps []Step) ([]N, error) {
	for _, st := range steps {
		var next []N
		seen := make(map[N]bool)
		for _, n := range cur {
			cands := ev.candidates(n, st)
			for _, pred := range st.preds {
				var err error
				cands, err = ev.filter(cands, pred)
				if err != nil {
					return nil, err
				}
			}
			for _, c := range cands {
				if !seen[c] {
					seen[c] = true
					next = append(next, c)
				}
			}
		}
		cur = next
	}
	return cur, nil
}

func (ev *evaluator[N]) candidates(n N, st Step) []N {
	switch st.Kind {
	case SelfStep:
		return []N{n}
	case ParentStep:
		if p, ok := ev.nav.Parent(n); ok {
			return []N{p}
		}
		return nil
	case AnyStep:
		return ev.nav.Children(n)
	}
	var out []N
	for _, c := range ev.nav.Children(n) {
		if ev.nav.Label(c) == st.Label {
			out = append(out, c)
		}
	}
	return out
}

func (ev *evaluator[N]) filter(cands []N, pred node) ([]N, error) {
	var out []N
	for i, c := range cands {
		v, err := ev.eval(pred, context[N]{node: c, pos: i + 1, size: len(cands)})
		if err != nil {
			return nil, err
		}
		keep := false
		if v.kind == numberValue {
			keep = v.n == float64(i+1)
		} else {
			keep = toBool(v)
		}
		if keep {
			out = append(out, c)
		}
	}
	return out, nil
}

func (ev *evaluator[N]) eval(n node, ctx context[N]) (value[N], error) {
	switch n := n.(type) {
	case *stringNode:
		return value[N]{kind: stringValue, s: n.v}, nil
	case *numberNode:
		return value[N]{kind: numberValue, n: n.v}, nil
	case *pathNode:
		return ev.path(n.e, ctx)
	case *callNode:
		return ev.call(n, ctx)
	case *binaryNode:
		return ev.binary(n, ctx)
	}
	return value[N]{}, fmt.Errorf("unsupported expression %T", n)
}

func (ev *evaluator[N]) path(e *Expr, ctx context[N]) (value[N], error) {
	if e.origin == Variable && len(e.steps) == 0 {
		if s, ok := ev.env.Args[e.name]; ok {
			return value[N]{kind: stringValue, s: s}, nil
		}
	}
	start, err := ev.origin(e, []N{ctx.node})
	if err != nil {
		return value[N]{}, err
	}
	nodes, err := ev.steps(start, e.steps)
	if err != nil {
		return value[N]{}, err
	}
	return value[N]{kind: nodeSet, nodes: nodes}, nil
}

func (ev *evaluator[N]) call(c *callNode, ctx context[N]) (value[N], error) {
	switch c.name {
	case "last":
		return value[N]{kind: numberValue, n: float64(ctx.size)}, nil
	case "position":
		return value[N]{kind: numberValue, n: float64(ctx.pos)}, nil
	case "label":
		return value[N]{kind: stringValue, s: ev.nav.Label(ctx.node)}, nil
	}
	arg, err := ev.eval(c.args[0], ctx)
	if err != nil {
		return value[N]{}, err
	}
	switch c.name {
	case "count":
		if arg.kind != nodeSet {
			return value[N]{}, fmt.Errorf("count() expects a path")
		}
		return value[N]{kind: numberValue, n: float64(len(arg.nodes))}, nil
	case "not":
		return value[N]{kind: boolValue, b: !toBool(arg)}, nil
	case "regexp":
		return ev.compile(toString(ev.nav, arg))
	case "glob":
		return ev.compile(globToRegexp(toString(ev.nav, arg)))
	}
	return value[N]{}, fmt.Errorf("unknown function %s()", c.name)
}

func (ev *evaluator[N]) compile(pattern string) (value[N], error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return value[N]{}, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	return value[N]{kind: regexpValue, re: re}, nil
}

func (ev *evaluator[N]) binary(b *binaryNode, ctx context[N]) (value[N], error) {
	left, err := ev.eval(b.left, ctx)
	if err != nil {
		return value[N]{}, err
	}
	switch b.op {
	case "and":
		if !toBool(left) {
			return value[N]{kind: boolValue}, nil
		}
	case "or":
		if toBool(left) {
			return value[N]{kind: boolValue, b: true}, nil
		}
	}
	right, err := ev.eval(b.right, ctx)
	if err != nil {
		return value[N]{}, err
	}
	switch b.op {
	case "and", "or":
		return value[N]{kind: boolValue, b: toBool(right)}, nil
	case "+":
		return value[N]{kind: numberValue, n: toNumber(ev.nav, left) + toNumber(ev.nav, right)}, nil
	case "-":
		return value[N]{kind: numberValue, n: toNumber(ev.nav, left) - toNumber(ev.nav, right)}, nil
	case "=~":
		return ev.matches(left, right)
	}
	return value[N]{kind: boolValue, b: compare(ev.nav, b.op, left, right)}, nil
}

func (ev *evaluator[N]) matches(left, right value[N]) (value[N], error) {
	re := right.re
	if right.kind != regexpValue {
		v, err := ev.compile(toString(ev.nav, right))
		if err != nil {
			return value[N]{}, err
		}
		re = v.re
	}
	for _, s := range valuesOf(ev.nav, left) {
		if re.MatchString(s) {
			return value[N]{kind: boolValue, b: true}, nil
		}
	}
	return value[N]{kind: boolValue}, nil
}

// valuesOf returns the values a comparison ranges over; nodes without a
// value take part in no comparison.
func valuesOf[N comparable](nav Navigator[N], v value[N]) []string {
	if v.kind != nodeSet {
		return []string{toString(nav, v)}
	}
	out := make([]string, 0, len(v.nodes))
	for _, n := range v.nodes {
		if s, ok := nav.Value(n); ok {
			out = append(out, s)
		}
	}
	return out
}

func compare[N comparable](nav Navigator[N], op string, left, right value[N]) bool {
	if left.kind == boolValue || right.kind == boolValue {
		return compareBools(op, toBool(left), toBool(right))
	}
	numeric := (op != "=" && op != "!=") || left.kind == numberValue || right.kind == numberValue
	for _, l := range valuesOf(nav, left) {
		for _, r := range valuesOf(nav, right) {
			if numeric {
				if compareNumbers(op, parseNumber(l), parseNumber(r)) {
					return true
				}
				continue
			}
			if (op == "=") == (l == r) {
				return true
			}
		}
	}
	return false
}

func compareBools(op string, l, r bool) bool {
	switch op {
	case "=":
		return l == r
	case "!=":
		return l != r
	}
	return compareNumbers(op, boolNumber(l), boolNumber(r))
}

func compareNumbers(op string, l, r float64) bool {
	switch op {
	case "=":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toBool[N comparable](v value[N]) bool {
	switch v.kind {
	case nodeSet:
		return len(v.nodes) > 0
	case stringValue:
		return v.s != ""
	case numberValue:
		return v.n != 0 && !math.IsNaN(v.n)
	case regexpValue:
		return true
	}
	return v.b
}

func toString[N comparable](nav Navigator[N], v value[N]) string {
	switch v.kind {
	case nodeSet:
		if len(v.nodes) == 0 {
			return ""
		}
		s, _ := nav.Value(v.nodes[0])
		return s
	case numberValue:
		return formatNumber(v.n)
	case boolValue:
		return strconv.FormatBool(v.b)
	case regexpValue:
		return v.re.String()
	}
	return v.s
}

func toNumber[N comparable](nav Navigator[N], v value[N]) float64 {
	switch v.kind {
	case numberValue:
		return v.n
	case boolValue:
		return boolNumber(v.b)
	}
	return parseNumber(toString(nav, v))
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// globToRegexp translates a shell glob into a regular expression.
func globToRegexp(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
