// Package hosts provides the lens for hosts files.
//
// Each entry line becomes a node labelled with its sequence number:
//
//	/1/ipaddr    = "127.0.0.1"
//	/1/canonical = "localhost"
//	/1/alias     = "localhost.localdomain"
//	/1/#comment  = "loopback"
package hosts

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Name is the lens identifier.
const Name = "Hosts.lns"

// Handler implements the hosts lens.
type Handler struct{}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)

// New creates a new hosts lens.
func New() *Handler {
	return &Handler{}
}

func init() {
	format.Register(New(), "Hosts", "hosts")
}

// Name returns the lens identifier.
func (h *Handler) Name() string {
	return Name
}

// Includes returns the files the lens handles by default.
func (h *Handler) Includes() []string {
	return []string{"/etc/hosts", "/etc/inet/hosts", "hosts"}
}

// Get parses a hosts file.
func (h *Handler) Get(data []byte) (*tree.Node, error) {
	root := tree.NewNode("")
	seq := 0
	for _, l := range format.Lines(data) {
		if n := format.Leaf(l); n != nil {
			root.Append(n)
			continue
		}
		seq++
		entry, err := parseEntry(l, strconv.Itoa(seq))
		if err != nil {
			return nil, err
		}
		root.Append(entry)
	}
	return root, nil
}

func parseEntry(l format.Line, label string) (*tree.Node, error) {
	body, comment, hasComment := strings.Cut(l.Text, "#")
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return nil, format.Errorf(l, "expected an address followed by a hostname")
	}
	if _, err := netip.ParseAddr(fields[0]); err != nil {
		return nil, format.Errorf(l, "invalid address %q", fields[0])
	}

	entry := tree.NewNode(label,
		tree.NewLeaf("ipaddr", fields[0]),
		tree.NewLeaf("canonical", fields[1]),
	)
	for _, alias := range fields[2:] {
		entry.Append(tree.NewLeaf("alias", alias))
	}
	if c := strings.TrimSpace(comment); hasComment && c != "" {
		entry.Append(tree.NewLeaf(format.CommentLabel, c))
	}
	entry.Remember(l.Raw, entry.Clone())
	return entry, nil
}

// Put serializes a hosts tree.
func (h *Handler) Put(root *tree.Node) ([]byte, error) {
	var w format.Writer
	for _, n := range root.All() {
		p := "/" + n.Label()
		switch {
		case n.IsTrivia():
			w.Raw(n.Raw())
		case n.Label() == format.CommentLabel:
			if err := w.WriteComment(n, "", p); err != nil {
				return nil, err
			}
		default:
			if raw, ok := n.Recall(n); ok {
				w.Raw(raw)
				continue
			}
			line, err := render(n, p)
			if err != nil {
				return nil, err
			}
			w.Line(line)
		}
	}
	return w.Bytes(), nil
}

// render builds the canonical line for an entry:
// address, a tab, the canonical name, aliases and an optional comment.
func render(n *tree.Node, p string) (string, error) {
	if _, err := strconv.Atoi(n.Label()); err != nil {
		return "", format.PutErrorf(p, "entry label must be a number")
	}
	if _, ok := n.Value(); ok {
		return "", format.PutErrorf(p, "entry cannot have a value")
	}

	children := n.Children()
	if len(children) < 2 || children[0].Label() != "ipaddr" || children[1].Label() != "canonical" {
		return "", format.PutErrorf(p, "entry needs ipaddr followed by canonical")
	}
	ip, _ := children[0].Value()
	if _, err := netip.ParseAddr(ip); err != nil {
		return "", format.PutErrorf(p+"/ipaddr", "invalid address %q", ip)
	}
	canonical, _ := children[1].Value()
	if err := format.CheckToken(p+"/canonical", canonical, "#"); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(ip + "\t" + canonical)
	rest := children[2:]
	for len(rest) > 0 && rest[0].Label() == "alias" {
		alias, _ := rest[0].Value()
		if err := format.CheckToken(p+"/alias", alias, "#"); err != nil {
			return "", err
		}
		b.WriteString(" " + alias)
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0].Label() == format.CommentLabel {
		comment, _ := rest[0].Value()
		if err := format.CheckValue(p+"/#comment", comment); err != nil {
			return "", err
		}
		if comment != "" {
			b.WriteString(" # " + comment)
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return "", format.PutErrorf(p+"/"+rest[0].Label(), "unexpected node")
	}
	return b.String(), nil
}
