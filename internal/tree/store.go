package tree

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goerrors "github.com/agilira/go-errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/hercules-team/augeasproviders/internal/path"
)

// Lens converts between the text of a file and its tree.
type Lens interface {
	// Name returns the lens identifier, e.g. "Hosts.lns".
	Name() string

	// Get parses data into a tree. It must account for every byte.
	Get(data []byte) (*Node, error)

	// Put serializes a tree. Nodes that still match their parsed shape
	// are written back verbatim.
	Put(root *Node) ([]byte, error)
}

// Store holds the tree of one file and edits it through path expressions.
type Store struct {
	fs       billy.Filesystem
	file     string
	lens     Lens
	root     *Node
	vars     map[string][]*Node
	original []byte
	mode     SaveMode
	dirty    bool
}

// Open reads file from fs and parses it with lens. A missing file
// yields an empty tree.
func Open(fs billy.Filesystem, file string, lens Lens) (*Store, error) {
	data, err := util.ReadFile(fs, file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerrors.Wrap(err, ErrCodeParse, fmt.Sprintf("failed to read %s: %v", file, err)).
			WithContext("file", file)
	}
	s, err := Load(file, data, lens)
	if err != nil {
		return nil, err
	}
	s.fs = fs
	return s, nil
}

// Load parses data as the contents of file. The resulting Store has no
// filesystem and cannot be saved.
func Load(file string, data []byte, lens Lens) (*Store, error) {
	root, err := lens.Get(data)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeParse, fmt.Sprintf("failed to parse %s with %s: %v", file, lens.Name(), err)).
			WithContext("file", file).
			WithContext("lens", lens.Name())
	}
	return &Store{
		file:     file,
		lens:     lens,
		root:     root,
		vars:     make(map[string][]*Node),
		original: data,
	}, nil
}

// File returns the path of the file behind the store.
func (s *Store) File() string {
	return s.file
}

// Lens returns the lens the store was opened with.
func (s *Store) Lens() Lens {
	return s.lens
}

// Root returns the root node.
func (s *Store) Root() *Node {
	return s.root
}

// Dirty reports whether the tree was modified since it was loaded or saved.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Match returns the nodes matched by expr. Zero matches is not an error.
func (s *Store) Match(expr string, args ...path.Arg) ([]*Node, error) {
	e, err := path.Compile(expr)
	if err != nil {
		return nil, syntax(err, expr)
	}
	nodes, err := path.Select[*Node](e, navigator{}, s.env(args))
	if err != nil {
		return nil, syntax(err, expr)
	}
	return nodes, nil
}

// Count returns the number of nodes matched by expr.
func (s *Store) Count(expr string, args ...path.Arg) (int, error) {
	nodes, err := s.Match(expr, args...)
	return len(nodes), err
}

// Get returns the value of the single node matched by expr. A node
// without a value yields "".
func (s *Store) Get(expr string, args ...path.Arg) (string, error) {
	n, err := s.single(expr, args)
	if err != nil {
		return "", err
	}
	v, _ := n.Value()
	return v, nil
}

// Set sets the value of the node matched by expr, creating it if absent.
func (s *Store) Set(expr, value string, args ...path.Arg) error {
	return s.set(expr, &value, args)
}

// Clear sets the node matched by expr to have no value, creating it if
// absent.
func (s *Store) Clear(expr string, args ...path.Arg) error {
	return s.set(expr, nil, args)
}

func (s *Store) set(expr string, value *string, args []path.Arg) error {
	e, err := path.Compile(expr)
	if err != nil {
		return syntax(err, expr)
	}
	env := s.env(args)
	nodes, err := path.Select[*Node](e, navigator{}, env)
	if err != nil {
		return syntax(err, expr)
	}

	var n *Node
	switch len(nodes) {
	case 0:
		if n, err = s.create(e, env); err != nil {
			return err
		}
	case 1:
		n = nodes[0]
	default:
		return ambiguous(expr, len(nodes))
	}

	if value == nil {
		n.ClearValue()
	} else {
		n.SetValue(*value)
	}
	s.dirty = true
	return nil
}

// create builds the missing tail of e below the longest prefix that
// matches exactly one node.
func (s *Store) create(e *path.Expr, env *path.Env[*Node]) (*Node, error) {
	steps := e.Steps()
	var parent *Node
	k := len(steps) - 1
	for ; k >= 0; k-- {
		hits, err := path.SelectPrefix[*Node](e, k, navigator{}, env)
		if err != nil {
			return nil, syntax(err, e.String())
		}
		if len(hits) > 1 {
			return nil, ambiguous(e.String(), len(hits))
		}
		if len(hits) == 1 {
			parent = hits[0]
			break
		}
	}
	if parent == nil {
		return nil, notFound(e.String())
	}

	// Check every remaining step before touching the tree.
	for i, st := range steps[k:] {
		if !creatable(st) {
			return nil, notFound(e.String())
		}
		if idx, ok := st.Index(); ok {
			// Only the first new step can land next to existing siblings.
			if (i > 0 && idx != 1) || (i == 0 && idx != len(parent.ChildrenNamed(st.Label))+1) {
				return nil, notFound(e.String())
			}
		}
	}
	for _, st := range steps[k:] {
		child := NewNode(st.Label)
		parent.Append(child)
		parent = child
	}
	return parent, nil
}

func creatable(st path.Step) bool {
	if st.Kind != path.LabelStep {
		return false
	}
	if st.Predicates() == 0 || st.Appends() {
		return true
	}
	_, ok := st.Index()
	return ok
}

// Insert creates a valueless sibling labelled label immediately before
// or after the single node matched by expr.
func (s *Store) Insert(expr, label string, before bool, args ...path.Arg) error {
	if label == "" {
		return invalid("cannot insert a node with an empty label")
	}
	n, err := s.single(expr, args)
	if err != nil {
		return err
	}
	p := n.Parent()
	if p == nil {
		return invalid("cannot insert a sibling of the root node")
	}
	if before {
		p.InsertBefore(n, NewNode(label))
	} else {
		p.InsertAfter(n, NewNode(label))
	}
	s.dirty = true
	return nil
}

// Remove deletes every node matched by expr and returns how many were
// removed. Removing nothing is not an error.
func (s *Store) Remove(expr string, args ...path.Arg) (int, error) {
	nodes, err := s.Match(expr, args...)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range nodes {
		if n == s.root {
			// Removing the root empties the tree instead.
			for _, c := range n.children {
				c.parent = nil
			}
			n.children = nil
			removed++
			continue
		}
		n.Detach()
		removed++
	}
	if removed > 0 {
		s.dirty = true
	}
	return removed, nil
}

// DefVar binds name to the nodes matched by expr and returns how many
// there are.
func (s *Store) DefVar(name, expr string, args ...path.Arg) (int, error) {
	nodes, err := s.Match(expr, args...)
	if err != nil {
		return 0, err
	}
	s.vars[name] = nodes
	return len(nodes), nil
}

// DefNode binds name to the node matched by expr, creating it with value
// when absent. It reports whether a node was created.
func (s *Store) DefNode(name, expr, value string, args ...path.Arg) (bool, error) {
	n, err := s.DefVar(name, expr, args...)
	if err != nil || n > 0 {
		return false, err
	}
	if err := s.Set(expr, value, args...); err != nil {
		return false, err
	}
	_, err = s.DefVar(name, expr, args...)
	return true, err
}

// SetVar binds name to nodes directly.
func (s *Store) SetVar(name string, nodes ...*Node) {
	s.vars[name] = nodes
}

func (s *Store) single(expr string, args []path.Arg) (*Node, error) {
	nodes, err := s.Match(expr, args...)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, notFound(expr)
	case 1:
		return nodes[0], nil
	}
	return nil, ambiguous(expr, len(nodes))
}

// env builds the evaluation environment. Variables only keep nodes that
// are still part of the tree.
func (s *Store) env(args []path.Arg) *path.Env[*Node] {
	env := &path.Env[*Node]{
		Root:  s.root,
		Nodes: make(map[string][]*Node, len(s.vars)),
		Args:  make(map[string]string, len(args)),
	}
	for name, nodes := range s.vars {
		live := make([]*Node, 0, len(nodes))
		for _, n := range nodes {
			if n.Root() == s.root {
				live = append(live, n)
			}
		}
		env.Nodes[name] = live
	}
	for _, a := range args {
		env.Args[a.Name] = a.Value
	}
	return env
}

// PathOf returns the canonical path of n, e.g. /1/alias[2].
func (s *Store) PathOf(n *Node) string {
	if n == nil || n.parent == nil {
		return "/"
	}
	var segments []string
	for ; n.parent != nil; n = n.parent {
		seg := n.label
		if _, err := strconv.Atoi(seg); err != nil {
			seg = path.EscapeLabel(seg)
		}
		if siblings := n.parent.ChildrenNamed(n.label); len(siblings) > 1 {
			for i, sib := range siblings {
				if sib == n {
					seg += "[" + strconv.Itoa(i+1) + "]"
					break
				}
			}
		}
		segments = append([]string{seg}, segments...)
	}
	return "/" + strings.Join(segments, "/")
}

// navigator exposes Nodes to the path evaluator.
type navigator struct{}

func (navigator) Label(n *Node) string { return n.label }

func (navigator) Value(n *Node) (string, bool) { return n.Value() }

func (navigator) Children(n *Node) []*Node { return n.Children() }

func (navigator) Parent(n *Node) (*Node, bool) { return n.parent, n.parent != nil }
