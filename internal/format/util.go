package format

import (
	"fmt"
	"strings"

	"github.com/hercules-team/augeasproviders/internal/tree"
)

// CommentLabel is the label of comment nodes in every lens.
const CommentLabel = "#comment"

// Line is one physical line of input.
type Line struct {
	Num  int
	Text string // without the line terminator
	Raw  string // with the line terminator, if any
}

// Lines splits data into lines, keeping terminators in Raw.
func Lines(data []byte) []Line {
	var lines []Line
	for i, raw := range strings.SplitAfter(string(data), "\n") {
		if raw == "" {
			continue
		}
		text := strings.TrimSuffix(raw, "\n")
		text = strings.TrimSuffix(text, "\r")
		lines = append(lines, Line{Num: i + 1, Text: text, Raw: raw})
	}
	return lines
}

// ParseError reports input a lens cannot account for.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Errorf returns a ParseError for l.
func Errorf(l Line, format string, args ...any) error {
	return &ParseError{Line: l.Num, Text: l.Text, Msg: fmt.Sprintf(format, args...)}
}

// PutError reports a tree the grammar cannot represent.
type PutError struct {
	Path string
	Msg  string
}

func (e *PutError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// PutErrorf returns a PutError for the node at path.
func PutErrorf(path, format string, args ...any) error {
	return &PutError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Trivia reports whether a line carries no content: it is blank or a
// comment marker with nothing after it.
func Trivia(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || (strings.HasPrefix(t, "#") && strings.TrimSpace(strings.TrimLeft(t, "#")) == "")
}

// IsComment reports whether a line is a comment.
func IsComment(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "#")
}

// Comment returns a comment node for l.
func Comment(l Line) *tree.Node {
	text := strings.TrimSpace(l.Text)
	text = strings.TrimSpace(strings.TrimPrefix(text, "#"))
	n := tree.NewLeaf(CommentLabel, text)
	n.Remember(l.Raw, n.Clone())
	return n
}

// Leaf returns a comment or trivia node for l, or nil when l has content.
func Leaf(l Line) *tree.Node {
	switch {
	case Trivia(l.Text):
		return tree.NewTrivia(l.Raw)
	case IsComment(l.Text):
		return Comment(l)
	}
	return nil
}

// Writer accumulates serialized lines. Generated lines end with the
// terminator of the first verbatim line, so CRLF input stays CRLF. A
// verbatim line lacking its terminator is kept apart from the next one.
type Writer struct {
	parts []part
	eol   string
}

type part struct {
	text      string
	generated bool
}

// Raw appends s verbatim.
func (w *Writer) Raw(s string) {
	if s == "" {
		return
	}
	if w.eol == "" && strings.HasSuffix(s, "\n") {
		w.eol = "\n"
		if strings.HasSuffix(s, "\r\n") {
			w.eol = "\r\n"
		}
	}
	w.parts = append(w.parts, part{text: s})
}

// Line appends s followed by a line terminator.
func (w *Writer) Line(s string) {
	w.parts = append(w.parts, part{text: s, generated: true})
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte {
	eol := w.eol
	if eol == "" {
		eol = "\n"
	}
	var b strings.Builder
	for _, p := range w.parts {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString(eol)
		}
		b.WriteString(p.text)
		if p.generated {
			b.WriteString(eol)
		}
	}
	return []byte(b.String())
}

// WriteComment appends comment node n, verbatim when unchanged.
func (w *Writer) WriteComment(n *tree.Node, indent, path string) error {
	if raw, ok := n.Recall(n); ok {
		w.Raw(raw)
		return nil
	}
	v, ok := n.Value()
	if !ok {
		return PutErrorf(path, "comment without text")
	}
	if err := CheckValue(path, v); err != nil {
		return err
	}
	w.Line(indent + "# " + v)
	return nil
}

// CheckValue rejects values that would break the line structure.
func CheckValue(path, v string) error {
	if strings.ContainsAny(v, "\n\r") {
		return PutErrorf(path, "value %q spans lines", v)
	}
	return nil
}

// CheckToken rejects empty values and values containing whitespace or
// any of the given characters.
func CheckToken(path, v, forbidden string) error {
	if v == "" {
		return PutErrorf(path, "empty value")
	}
	if strings.ContainsAny(v, " \t\n\r"+forbidden) {
		return PutErrorf(path, "invalid value %q", v)
	}
	return nil
}

// Child returns the path of the child label of path.
func Child(path, label string) string {
	return strings.TrimSuffix(path, "/") + "/" + label
}
