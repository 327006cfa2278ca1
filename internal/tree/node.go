// Package tree provides the in-memory tree behind a parsed configuration
// file and the Store that edits it through path expressions.
package tree

import "slices"

// Node is a labelled node with an optional value and ordered children.
//
// Nodes with an empty label are trivia: text a lens keeps verbatim, such
// as blank lines. Trivia is invisible to path expressions.
type Node struct {
	label    string
	value    string
	hasValue bool
	parent   *Node
	children []*Node

	// raw is the source text the node was parsed from; shape is the
	// node as it looked right after parsing.
	raw   string
	shape *Node
}

// NewNode creates a node without a value.
func NewNode(label string, children ...*Node) *Node {
	n := &Node{label: label}
	for _, c := range children {
		n.Append(c)
	}
	return n
}

// NewLeaf creates a node with a value.
func NewLeaf(label, value string) *Node {
	return &Node{label: label, value: value, hasValue: true}
}

// NewTrivia creates a trivia node holding raw text.
func NewTrivia(raw string) *Node {
	return &Node{raw: raw}
}

// Label returns the node label.
func (n *Node) Label() string {
	return n.label
}

// Value returns the node value and whether the node has one.
func (n *Node) Value() (string, bool) {
	return n.value, n.hasValue
}

// SetValue sets the node value.
func (n *Node) SetValue(v string) {
	n.value, n.hasValue = v, true
}

// ClearValue removes the node value.
func (n *Node) ClearValue() {
	n.value, n.hasValue = "", false
}

// IsTrivia reports whether the node is trivia.
func (n *Node) IsTrivia() bool {
	return n.label == ""
}

// Raw returns the source text of the node, if any.
func (n *Node) Raw() string {
	return n.raw
}

// Parent returns the parent node, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the addressable (non-trivia) children.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if !c.IsTrivia() {
			out = append(out, c)
		}
	}
	return out
}

// All returns every child including trivia.
func (n *Node) All() []*Node {
	return n.children
}

// Child returns the first child with the given label.
func (n *Node) Child(label string) *Node {
	for _, c := range n.children {
		if c.label == label && label != "" {
			return c
		}
	}
	return nil
}

// ChildValue returns the value of the first child with the given label.
func (n *Node) ChildValue(label string) string {
	if c := n.Child(label); c != nil {
		return c.value
	}
	return ""
}

// ChildrenNamed returns every child with the given label.
func (n *Node) ChildrenNamed(label string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.label == label && label != "" {
			out = append(out, c)
		}
	}
	return out
}

// Append adds c as the last child of n.
func (n *Node) Append(c *Node) {
	c.Detach()
	c.parent = n
	n.children = append(n.children, c)
}

// InsertBefore inserts c immediately before ref, a child of n.
func (n *Node) InsertBefore(ref, c *Node) {
	n.insertAt(n.indexOf(ref), c)
}

// InsertAfter inserts c immediately after ref, a child of n.
func (n *Node) InsertAfter(ref, c *Node) {
	n.insertAt(n.indexOf(ref)+1, c)
}

func (n *Node) insertAt(i int, c *Node) {
	c.Detach()
	c.parent = n
	n.children = slices.Insert(n.children, i, c)
}

func (n *Node) indexOf(c *Node) int {
	i := slices.Index(n.children, c)
	if i < 0 {
		return len(n.children)
	}
	return i
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	if i := slices.Index(p.children, n); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	n.parent = nil
}

// Root returns the topmost ancestor of n.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Clone returns a deep copy of n without source text.
func (n *Node) Clone() *Node {
	c := &Node{label: n.label, value: n.value, hasValue: n.hasValue}
	if n.IsTrivia() {
		c.raw = n.raw
	}
	for _, child := range n.children {
		c.Append(child.Clone())
	}
	return c
}

// Equal reports whether n and o have the same labels, values and
// children. Trivia compares by text.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.label != o.label || n.hasValue != o.hasValue || n.value != o.value {
		return false
	}
	if n.IsTrivia() && n.raw != o.raw {
		return false
	}
	if len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// Remember records the source text of n together with a snapshot of
// the part of n that the text represents.
func (n *Node) Remember(raw string, shape *Node) {
	n.raw = raw
	n.shape = shape
}

// Recall returns the remembered source text if current still equals
// the snapshot taken by Remember.
func (n *Node) Recall(current *Node) (string, bool) {
	if n.shape == nil || !n.shape.Equal(current) {
		return "", false
	}
	return n.raw, true
}

// Walk calls fn for n and every addressable descendant in document order.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}
