// Package syslog provides the lens for syslog.conf files.
//
// Each rule becomes an entry with one selector per ';'-separated part
// and an action:
//
//	/entry[1]/selector/facility = "mail"
//	/entry[1]/selector/level    = "info"
//	/entry[1]/action/no_sync
//	/entry[1]/action/file       = "/var/log/maillog"
//
// BSD block lines become top-level markers between the entries they
// scope. "!prog" and "#!prog" set a program block, "+host" and "-host"
// a hostname block:
//
//	/program  = "ntpd"
//	/hostname = "+loghost"
//
// Entries following a block line stay siblings of the marker.
package syslog

import (
	"regexp"
	"strings"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Name is the lens identifier.
const Name = "Syslog.lns"

// Node labels.
const (
	EntryLabel      = "entry"
	SelectorLabel   = "selector"
	FacilityLabel   = "facility"
	ComparisonLabel = "comparison"
	LevelLabel      = "level"
	ActionLabel     = "action"
	NoSyncLabel     = "no_sync"
	FileLabel       = "file"
	HostnameLabel   = "hostname"
	PortLabel       = "port"
	UserLabel       = "user"
	ProgramLabel    = "program"
)

var (
	word       = regexp.MustCompile(`^[A-Za-z0-9*]+$`)
	comparison = regexp.MustCompile(`^(!?[<>=]*|!)$`)
	userName   = regexp.MustCompile(`^[A-Za-z0-9_.*-]+$`)
	portNumber = regexp.MustCompile(`^[0-9]+$`)
	blockName  = regexp.MustCompile(`^-?[A-Za-z0-9_.,*/-]+$`)
)

// Handler implements the syslog.conf lens.
type Handler struct{}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)

// New creates a new syslog.conf lens.
func New() *Handler {
	return &Handler{}
}

func init() {
	format.Register(New(), "Syslog", "syslog")
}

// Name returns the lens identifier.
func (h *Handler) Name() string {
	return Name
}

// Includes returns the files the lens handles by default.
func (h *Handler) Includes() []string {
	return []string{"/etc/syslog.conf", "syslog.conf"}
}

// Get parses a syslog.conf file.
func (h *Handler) Get(data []byte) (*tree.Node, error) {
	root := tree.NewNode("")
	for _, l := range format.Lines(data) {
		if n, err := parseBlock(l); n != nil || err != nil {
			if err != nil {
				return nil, err
			}
			root.Append(n)
			continue
		}
		if n := format.Leaf(l); n != nil {
			root.Append(n)
			continue
		}
		entry, err := parseEntry(l)
		if err != nil {
			return nil, err
		}
		root.Append(entry)
	}
	return root, nil
}

// parseBlock returns the marker for a program or hostname block line, or
// nil when l is not one. A "#!" line that names no program is a comment.
func parseBlock(l format.Line) (*tree.Node, error) {
	text := strings.TrimSpace(l.Text)
	var n *tree.Node
	switch {
	case strings.HasPrefix(text, "#!"):
		if !blockName.MatchString(text[2:]) {
			return nil, nil
		}
		n = tree.NewLeaf(ProgramLabel, text[2:])
	case strings.HasPrefix(text, "!"):
		if !blockName.MatchString(text[1:]) {
			return nil, format.Errorf(l, "invalid program block %q", text)
		}
		n = tree.NewLeaf(ProgramLabel, text[1:])
	case strings.HasPrefix(text, "+"), strings.HasPrefix(text, "-"):
		if !blockName.MatchString(text[1:]) {
			return nil, format.Errorf(l, "invalid hostname block %q", text)
		}
		n = tree.NewLeaf(HostnameLabel, text)
	default:
		return nil, nil
	}
	n.Remember(l.Raw, n.Clone())
	return n, nil
}

func parseEntry(l format.Line) (*tree.Node, error) {
	text := strings.TrimSpace(l.Text)
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return nil, format.Errorf(l, "missing action")
	}
	selectors, action := text[:i], strings.TrimSpace(text[i:])

	entry := tree.NewNode(EntryLabel)
	for _, part := range strings.Split(selectors, ";") {
		sel, err := parseSelector(l, part)
		if err != nil {
			return nil, err
		}
		entry.Append(sel)
	}
	act, err := parseAction(l, action)
	if err != nil {
		return nil, err
	}
	entry.Append(act)
	entry.Remember(l.Raw, entry.Clone())
	return entry, nil
}

func parseSelector(l format.Line, part string) (*tree.Node, error) {
	dot := strings.LastIndex(part, ".")
	if dot < 1 || dot == len(part)-1 {
		return nil, format.Errorf(l, "invalid selector %q", part)
	}
	sel := tree.NewNode(SelectorLabel)
	for _, facility := range strings.Split(part[:dot], ",") {
		if !word.MatchString(facility) {
			return nil, format.Errorf(l, "invalid facility %q", facility)
		}
		sel.Append(tree.NewLeaf(FacilityLabel, facility))
	}
	level := part[dot+1:]
	cmp := level[:len(level)-len(strings.TrimLeft(level, "!<>="))]
	level = level[len(cmp):]
	if cmp != "" {
		if !comparison.MatchString(cmp) {
			return nil, format.Errorf(l, "invalid comparison %q", cmp)
		}
		sel.Append(tree.NewLeaf(ComparisonLabel, cmp))
	}
	if !word.MatchString(level) {
		return nil, format.Errorf(l, "invalid level %q", level)
	}
	sel.Append(tree.NewLeaf(LevelLabel, level))
	return sel, nil
}

func parseAction(l format.Line, action string) (*tree.Node, error) {
	act := tree.NewNode(ActionLabel)
	switch {
	case strings.HasPrefix(action, "-/"):
		act.Append(tree.NewNode(NoSyncLabel))
		act.Append(tree.NewLeaf(FileLabel, action[1:]))
	case strings.HasPrefix(action, "/"):
		act.Append(tree.NewLeaf(FileLabel, action))
	case strings.HasPrefix(action, "@"):
		host, port := SplitHostPort(action[1:])
		if host == "" || strings.ContainsAny(host, " \t") {
			return nil, format.Errorf(l, "invalid host %q", action[1:])
		}
		act.Append(tree.NewLeaf(HostnameLabel, host))
		if port != "" {
			act.Append(tree.NewLeaf(PortLabel, port))
		}
	case strings.HasPrefix(action, "|"):
		program := strings.TrimSpace(action[1:])
		if program == "" {
			return nil, format.Errorf(l, "missing program")
		}
		act.Append(tree.NewLeaf(ProgramLabel, program))
	default:
		for _, user := range strings.Split(action, ",") {
			user = strings.TrimSpace(user)
			if !userName.MatchString(user) {
				return nil, format.Errorf(l, "invalid action %q", action)
			}
			act.Append(tree.NewLeaf(UserLabel, user))
		}
	}
	return act, nil
}

// SplitHostPort splits "host:port"; bracketed IPv6 hosts keep their
// brackets. The port is empty when s carries none.
func SplitHostPort(s string) (string, string) {
	i := strings.LastIndex(s, ":")
	if i < 0 || (strings.Count(s, ":") > 1 && !strings.HasPrefix(s, "[")) {
		return s, ""
	}
	if !portNumber.MatchString(s[i+1:]) {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// Put serializes a syslog.conf tree.
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
		case n.Label() == ProgramLabel || n.Label() == HostnameLabel:
			if raw, ok := n.Recall(n); ok {
				w.Raw(raw)
				continue
			}
			line, err := renderBlock(n, p)
			if err != nil {
				return nil, err
			}
			w.Line(line)
		case n.Label() == EntryLabel:
			if raw, ok := n.Recall(n); ok {
				w.Raw(raw)
				continue
			}
			line, err := render(n, p)
			if err != nil {
				return nil, err
			}
			w.Line(line)
		default:
			return nil, format.PutErrorf(p, "unexpected node")
		}
	}
	return w.Bytes(), nil
}

// render builds the canonical line for an entry: selectors, a tab and
// the action.
func render(entry *tree.Node, p string) (string, error) {
	children := entry.Children()
	if len(children) < 2 || children[len(children)-1].Label() != ActionLabel {
		return "", format.PutErrorf(p, "entry needs at least one selector followed by an action")
	}
	var selectors []string
	for _, sel := range children[:len(children)-1] {
		if sel.Label() != SelectorLabel {
			return "", format.PutErrorf(p+"/"+sel.Label(), "unexpected node")
		}
		s, err := renderSelector(sel, p+"/"+SelectorLabel)
		if err != nil {
			return "", err
		}
		selectors = append(selectors, s)
	}
	action, err := renderAction(children[len(children)-1], p+"/"+ActionLabel)
	if err != nil {
		return "", err
	}
	return strings.Join(selectors, ";") + "\t" + action, nil
}

func renderBlock(n *tree.Node, p string) (string, error) {
	v, _ := n.Value()
	if len(n.Children()) > 0 {
		return "", format.PutErrorf(p, "block line takes no children")
	}
	if n.Label() == ProgramLabel {
		if !blockName.MatchString(v) {
			return "", format.PutErrorf(p, "invalid program %q", v)
		}
		return "!" + v, nil
	}
	if len(v) < 2 || (v[0] != '+' && v[0] != '-') || !blockName.MatchString(v[1:]) {
		return "", format.PutErrorf(p, "invalid hostname block %q, want +host or -host", v)
	}
	return v, nil
}

func renderSelector(sel *tree.Node, p string) (string, error) {
	var facilities []string
	var cmp, level string
	for _, c := range sel.Children() {
		v, _ := c.Value()
		switch {
		case c.Label() == FacilityLabel && cmp == "" && level == "":
			if !word.MatchString(v) {
				return "", format.PutErrorf(p+"/"+FacilityLabel, "invalid facility %q", v)
			}
			facilities = append(facilities, v)
		case c.Label() == ComparisonLabel && cmp == "" && level == "":
			if v == "" || !comparison.MatchString(v) {
				return "", format.PutErrorf(p+"/"+ComparisonLabel, "invalid comparison %q", v)
			}
			cmp = v
		case c.Label() == LevelLabel && level == "":
			if !word.MatchString(v) {
				return "", format.PutErrorf(p+"/"+LevelLabel, "invalid level %q", v)
			}
			level = v
		default:
			return "", format.PutErrorf(p+"/"+c.Label(), "unexpected node")
		}
	}
	if len(facilities) == 0 || level == "" {
		return "", format.PutErrorf(p, "selector needs a facility and a level")
	}
	return strings.Join(facilities, ",") + "." + cmp + level, nil
}

func renderAction(act *tree.Node, p string) (string, error) {
	children := act.Children()
	noSync := false
	if len(children) > 0 && children[0].Label() == NoSyncLabel {
		noSync = true
		children = children[1:]
	}
	if len(children) == 0 {
		return "", format.PutErrorf(p, "action is empty")
	}
	first := children[0]
	v, _ := first.Value()
	if noSync && first.Label() != FileLabel {
		return "", format.PutErrorf(p+"/"+NoSyncLabel, "no_sync only applies to file actions")
	}

	switch first.Label() {
	case FileLabel:
		if len(children) != 1 {
			return "", format.PutErrorf(p, "file action takes a single file")
		}
		if !strings.HasPrefix(v, "/") || strings.ContainsAny(v, " \t\n") {
			return "", format.PutErrorf(p+"/"+FileLabel, "invalid file %q", v)
		}
		if noSync {
			return "-" + v, nil
		}
		return v, nil
	case HostnameLabel:
		if err := format.CheckToken(p+"/"+HostnameLabel, v, ""); err != nil {
			return "", err
		}
		if _, port := SplitHostPort(v); port != "" {
			return "", format.PutErrorf(p+"/"+HostnameLabel, "hostname %q carries a port, set %s instead", v, PortLabel)
		}
		switch {
		case len(children) == 1:
			return "@" + v, nil
		case len(children) == 2 && children[1].Label() == PortLabel:
			port, _ := children[1].Value()
			if !portNumber.MatchString(port) {
				return "", format.PutErrorf(p+"/"+PortLabel, "invalid port %q", port)
			}
			return "@" + v + ":" + port, nil
		}
		return "", format.PutErrorf(p, "hostname action takes a host and an optional port")
	case ProgramLabel:
		if len(children) != 1 || strings.TrimSpace(v) == "" {
			return "", format.PutErrorf(p+"/"+ProgramLabel, "invalid program")
		}
		if err := format.CheckValue(p+"/"+ProgramLabel, v); err != nil {
			return "", err
		}
		return "|" + v, nil
	case UserLabel:
		users := make([]string, 0, len(children))
		for _, c := range children {
			u, _ := c.Value()
			if c.Label() != UserLabel || !userName.MatchString(u) {
				return "", format.PutErrorf(p+"/"+c.Label(), "invalid user %q", u)
			}
			users = append(users, u)
		}
		return strings.Join(users, ","), nil
	}
	return "", format.PutErrorf(p+"/"+first.Label(), "unknown action type")
}
