// Package sshd manages sshd_config settings and subsystems.
//
// A setting is identified by its keyword and the condition of the Match
// block it lives in. The condition is written as in a Match line:
//
//	User anoncvs Host *.example.net
package sshd

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/hercules-team/augeasproviders/internal/format"
	lens "github.com/hercules-team/augeasproviders/internal/format/sshd"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// ParseCondition parses a Match condition into ordered criterion/argument
// pairs. The "all" criterion takes no argument.
func ParseCondition(s string) (*orderedmap.OrderedMap, error) {
	cond := orderedmap.New()
	fields := strings.Fields(s)
	for i := 0; i < len(fields); {
		if strings.EqualFold(fields[i], "all") {
			cond.Set(fields[i], "")
			i++
			continue
		}
		if i+1 >= len(fields) {
			return nil, fmt.Errorf("condition %q: criterion %s has no argument", s, fields[i])
		}
		cond.Set(fields[i], fields[i+1])
		i += 2
	}
	return cond, nil
}

// FormatCondition writes the criteria of a Condition node as a Match line
// would.
func FormatCondition(cond *tree.Node) string {
	var parts []string
	for _, c := range cond.Children() {
		parts = append(parts, c.Label())
		if v, ok := c.Value(); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// canonicalCondition orders the pairs so equal sets compare equal.
func canonicalCondition(cond *orderedmap.OrderedMap) string {
	pairs := make([]string, 0, len(cond.Keys()))
	for _, k := range cond.Keys() {
		v, _ := cond.Get(k)
		pairs = append(pairs, k+"="+v.(string))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}

// scope locates the settings a resource lives among: the top level of
// the file, or the Settings of the Match block with exactly its condition.
type scope struct {
	base  string // path of the scope
	match string // path of the Match block, "" at top level
	cond  *orderedmap.OrderedMap
	args  []path.Arg
}

func newScope(condition string) (*scope, error) {
	cond, err := ParseCondition(condition)
	if err != nil {
		return nil, err
	}
	if len(cond.Keys()) == 0 {
		return &scope{base: session.Prefix, cond: cond}, nil
	}

	var b strings.Builder
	var args []path.Arg
	fmt.Fprintf(&b, "%s/%s[count(%s/*)=%d]", session.Prefix, lens.MatchLabel, lens.ConditionLabel, len(cond.Keys()))
	for i, k := range cond.Keys() {
		v, _ := cond.Get(k)
		if strings.EqualFold(k, "all") {
			fmt.Fprintf(&b, "[%s/%s]", lens.ConditionLabel, path.EscapeLabel(k))
			continue
		}
		name := "c" + strconv.Itoa(i+1)
		fmt.Fprintf(&b, "[%s/%s=$%s]", lens.ConditionLabel, path.EscapeLabel(k), name)
		args = append(args, path.Bind(name, v.(string)))
	}
	match := b.String()
	return &scope{
		base:  match + "/" + lens.SettingsLabel,
		match: match,
		cond:  cond,
		args:  args,
	}, nil
}

// path returns the path of the occurrences of key in the scope.
func (sc *scope) path(key string) string {
	return sc.base + "/" + path.EscapeLabel(key)
}

// with returns the scope arguments plus extra.
func (sc *scope) with(extra ...path.Arg) []path.Arg {
	return slices.Concat(sc.args, extra)
}

// ensureMatch appends a Match block with the scope's condition unless
// one exists.
func (sc *scope) ensureMatch(s *tree.Store) error {
	if sc.match == "" {
		return nil
	}
	n, err := s.Count(sc.match, sc.args...)
	if err != nil || n > 0 {
		return err
	}
	step := lens.MatchLabel + "[last()+1]"
	for _, k := range sc.cond.Keys() {
		v, _ := sc.cond.Get(k)
		p := session.Prefix + "/" + step + "/" + lens.ConditionLabel + "/" + path.EscapeLabel(k)
		if strings.EqualFold(k, "all") {
			err = s.Clear(p)
		} else {
			err = s.Set(p, v.(string))
		}
		if err != nil {
			return err
		}
		step = lens.MatchLabel + "[last()]"
	}
	return s.Clear(session.Prefix + "/" + step + "/" + lens.SettingsLabel)
}

// insert adds a valueless node labelled key to the scope. It goes after
// the last occurrence of key, else after the first comment mentioning
// key, else at the end of a scope without Match blocks, else before the
// first Match block.
func (sc *scope) insert(s *tree.Store, key string) error {
	p := sc.path(key)
	n, err := s.Count(p, sc.args...)
	if err != nil {
		return err
	}
	if n > 0 {
		return s.Insert(p+"[last()]", key, false, sc.args...)
	}

	re := regexp.QuoteMeta(key) + `([^A-Za-z0-9_.].*)?`
	comments, err := s.Match(sc.base+"/"+format.CommentLabel+"[. =~ $re]", sc.with(path.Bind("re", re))...)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		return s.Insert(s.PathOf(comments[0]), key, false)
	}

	blocks, err := s.Count(sc.base+"/"+lens.MatchLabel, sc.args...)
	if err != nil {
		return err
	}
	if blocks == 0 {
		return s.Clear(p+"[last()+1]", sc.args...)
	}
	return s.Insert(sc.base+"/"+lens.MatchLabel+"[1]", key, true, sc.args...)
}

// shape is how a keyword stores its values: as the node value, or as
// numbered children.
type shape int

const (
	scalarShape shape = iota
	multiShape
)

func shapeOf(n *tree.Node) shape {
	for _, c := range n.Children() {
		if _, err := strconv.Atoi(c.Label()); err == nil {
			return multiShape
		}
	}
	return scalarShape
}

// values flattens the values of the given occurrences of a keyword.
func values(nodes []*tree.Node) []string {
	var vs []string
	for _, n := range nodes {
		switch shapeOf(n) {
		case multiShape:
			for _, c := range n.Children() {
				if v, ok := c.Value(); ok {
					vs = append(vs, v)
				}
			}
		case scalarShape:
			if v, ok := n.Value(); ok {
				vs = append(vs, v)
			}
		}
	}
	return vs
}

// setValues makes the occurrences of key in the scope hold vs.
func (sc *scope) setValues(s *tree.Store, key string, vs []string) error {
	if _, list := lens.Separator(key); list {
		return sc.setList(s, key, vs)
	}

	p := sc.path(key)
	n, err := s.Count(p, sc.args...)
	if err != nil {
		return err
	}
	for i := 0; i < n && i < len(vs); i++ {
		if err := s.Set(fmt.Sprintf("%s[%d]", p, i+1), vs[i], sc.args...); err != nil {
			return err
		}
	}
	if n > len(vs) {
		_, err := s.Remove(fmt.Sprintf("%s[position() > %d]", p, len(vs)), sc.args...)
		return err
	}
	for _, v := range vs[n:] {
		if err := sc.insert(s, key); err != nil {
			return err
		}
		if err := s.Set(p+"[last()]", v, sc.args...); err != nil {
			return err
		}
	}
	return nil
}

// setList keeps a single node for key and writes vs as its numbered
// children. An empty list removes the setting.
func (sc *scope) setList(s *tree.Store, key string, vs []string) error {
	p := sc.path(key)
	if len(vs) == 0 {
		_, err := s.Remove(p, sc.args...)
		return err
	}
	n, err := s.Count(p, sc.args...)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := sc.insert(s, key); err != nil {
			return err
		}
	}
	if _, err := s.Remove(p+"[position() != 1]", sc.args...); err != nil {
		return err
	}
	if _, err := s.Remove(p+"/*", sc.args...); err != nil {
		return err
	}
	if err := s.Clear(p, sc.args...); err != nil {
		return err
	}
	for i, v := range vs {
		if err := s.Set(p+"/"+strconv.Itoa(i+1), v, sc.args...); err != nil {
			return err
		}
	}
	return nil
}
