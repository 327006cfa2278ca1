// Package sshd provides the lens for sshd_config files.
//
// Plain settings are leaves labelled by keyword. Keywords that take a
// list hold numbered children instead of a value:
//
//	/Port                = "22"
//	/AllowUsers/1        = "alice"
//	/AllowUsers/2        = "bob"
//	/Subsystem/sftp      = "/usr/lib/openssh/sftp-server"
//	/Match/Condition/User = "anoncvs"
//	/Match/Settings/X11Forwarding = "no"
package sshd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Name is the lens identifier.
const Name = "Sshd.lns"

// Labels of the structural nodes.
const (
	MatchLabel     = "Match"
	ConditionLabel = "Condition"
	SettingsLabel  = "Settings"
	SubsystemLabel = "Subsystem"
)

// settingsIndent prefixes regenerated lines inside a Match block.
const settingsIndent = "  "

var keyword = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// Separator returns the separator of a keyword whose value is a list
// written on one line, and false for other keywords.
func Separator(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "allowusers", "allowgroups", "denyusers", "denygroups", "acceptenv":
		return " ", true
	case "ciphers", "macs", "kexalgorithms":
		return ",", true
	}
	return "", false
}

// Handler implements the sshd_config lens.
type Handler struct{}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)

// New creates a new sshd_config lens.
func New() *Handler {
	return &Handler{}
}

func init() {
	format.Register(New(), "Sshd", "sshd")
}

// Name returns the lens identifier.
func (h *Handler) Name() string {
	return Name
}

// Includes returns the files the lens handles by default.
func (h *Handler) Includes() []string {
	return []string{"/etc/ssh/sshd_config", "sshd_config", "/etc/ssh/sshd_config.d/*.conf"}
}

// Get parses an sshd_config file.
func (h *Handler) Get(data []byte) (*tree.Node, error) {
	root := tree.NewNode("")
	scope := root
	for _, l := range format.Lines(data) {
		if n := format.Leaf(l); n != nil {
			scope.Append(n)
			continue
		}
		key, value, err := split(l)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(key, MatchLabel) {
			match, err := parseMatch(l, value)
			if err != nil {
				return nil, err
			}
			root.Append(match)
			scope = match.Child(SettingsLabel)
			continue
		}
		n, err := parseSetting(l, key, value)
		if err != nil {
			return nil, err
		}
		scope.Append(n)
	}
	return root, nil
}

// split separates the keyword from its arguments. Both "Key value" and
// "Key=value" are accepted.
func split(l format.Line) (string, string, error) {
	text := strings.TrimSpace(l.Text)
	i := strings.IndexAny(text, " \t=")
	if i < 0 {
		return "", "", format.Errorf(l, "missing value")
	}
	key := text[:i]
	value := strings.TrimSpace(text[i:])
	value = strings.TrimSpace(strings.TrimPrefix(value, "="))
	if !keyword.MatchString(key) {
		return "", "", format.Errorf(l, "invalid keyword %q", key)
	}
	if value == "" {
		return "", "", format.Errorf(l, "missing value for %s", key)
	}
	return key, value, nil
}

func parseMatch(l format.Line, value string) (*tree.Node, error) {
	cond := tree.NewNode(ConditionLabel)
	fields := strings.Fields(value)
	for i := 0; i < len(fields); {
		if strings.EqualFold(fields[i], "all") {
			cond.Append(tree.NewNode(fields[i]))
			i++
			continue
		}
		if i+1 >= len(fields) {
			return nil, format.Errorf(l, "Match criterion %q has no argument", fields[i])
		}
		if !keyword.MatchString(fields[i]) {
			return nil, format.Errorf(l, "invalid Match criterion %q", fields[i])
		}
		cond.Append(tree.NewLeaf(fields[i], fields[i+1]))
		i += 2
	}
	match := tree.NewNode(MatchLabel, cond, tree.NewNode(SettingsLabel))
	match.Remember(l.Raw, cond.Clone())
	return match, nil
}

func parseSetting(l format.Line, key, value string) (*tree.Node, error) {
	var n *tree.Node
	switch sep, list := Separator(key); {
	case list:
		n = tree.NewNode(key)
		for i, item := range splitList(value, sep) {
			n.Append(tree.NewLeaf(strconv.Itoa(i+1), item))
		}
	case strings.EqualFold(key, SubsystemLabel):
		name, command := value, ""
		if i := strings.IndexAny(value, " \t"); i >= 0 {
			name, command = value[:i], strings.TrimSpace(value[i:])
		}
		if command == "" {
			return nil, format.Errorf(l, "Subsystem %s has no command", name)
		}
		n = tree.NewNode(key, tree.NewLeaf(name, command))
	default:
		n = tree.NewLeaf(key, value)
	}
	n.Remember(l.Raw, n.Clone())
	return n, nil
}

func splitList(value, sep string) []string {
	if sep == " " {
		return strings.Fields(value)
	}
	var items []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Put serializes an sshd_config tree.
func (h *Handler) Put(root *tree.Node) ([]byte, error) {
	var w format.Writer
	if err := putScope(&w, root, "", ""); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func putScope(w *format.Writer, scope *tree.Node, prefix, indent string) error {
	for _, n := range scope.All() {
		p := prefix + "/" + n.Label()
		switch {
		case n.IsTrivia():
			w.Raw(n.Raw())
		case n.Label() == format.CommentLabel:
			if err := w.WriteComment(n, indent, p); err != nil {
				return err
			}
		case strings.EqualFold(n.Label(), MatchLabel):
			if indent != "" {
				return format.PutErrorf(p, "Match blocks cannot be nested")
			}
			if err := putMatch(w, n, p); err != nil {
				return err
			}
		default:
			if raw, ok := n.Recall(n); ok {
				w.Raw(raw)
				continue
			}
			line, err := renderSetting(n, p)
			if err != nil {
				return err
			}
			w.Line(indent + line)
		}
	}
	return nil
}

func putMatch(w *format.Writer, match *tree.Node, p string) error {
	children := match.Children()
	if len(children) != 2 || children[0].Label() != ConditionLabel || children[1].Label() != SettingsLabel {
		return format.PutErrorf(p, "Match needs a Condition followed by Settings")
	}
	cond := children[0]
	if raw, ok := match.Recall(cond); ok {
		w.Raw(raw)
	} else {
		criteria := cond.Children()
		if len(criteria) == 0 {
			return format.PutErrorf(p+"/"+ConditionLabel, "Match without criteria")
		}
		parts := []string{match.Label()}
		for _, c := range criteria {
			if !keyword.MatchString(c.Label()) {
				return format.PutErrorf(p+"/"+ConditionLabel+"/"+c.Label(), "invalid Match criterion")
			}
			parts = append(parts, c.Label())
			if v, ok := c.Value(); ok {
				if err := format.CheckToken(p+"/"+ConditionLabel+"/"+c.Label(), v, ""); err != nil {
					return err
				}
				parts = append(parts, v)
			} else if !strings.EqualFold(c.Label(), "all") {
				return format.PutErrorf(p+"/"+ConditionLabel+"/"+c.Label(), "criterion without argument")
			}
		}
		w.Line(strings.Join(parts, " "))
	}
	return putScope(w, children[1], p+"/"+SettingsLabel, settingsIndent)
}

// renderSetting builds the canonical line for a setting. A list keyword
// may hold either a value or numbered children.
func renderSetting(n *tree.Node, p string) (string, error) {
	key := n.Label()
	if !keyword.MatchString(key) {
		return "", format.PutErrorf(p, "invalid keyword")
	}
	children := n.Children()
	value, hasValue := n.Value()

	if strings.EqualFold(key, SubsystemLabel) {
		if hasValue || len(children) != 1 {
			return "", format.PutErrorf(p, "Subsystem needs exactly one named command")
		}
		name := children[0].Label()
		command, _ := children[0].Value()
		if err := format.CheckToken(p+"/"+name, name, ""); err != nil {
			return "", err
		}
		if command == "" {
			return "", format.PutErrorf(p+"/"+name, "empty command")
		}
		if err := format.CheckValue(p+"/"+name, command); err != nil {
			return "", err
		}
		return key + " " + name + " " + command, nil
	}

	if len(children) > 0 {
		sep, list := Separator(key)
		if !list {
			return "", format.PutErrorf(p, "%s does not take a list", key)
		}
		if hasValue {
			return "", format.PutErrorf(p, "list setting cannot also have a value")
		}
		items := make([]string, 0, len(children))
		for _, c := range children {
			if _, err := strconv.Atoi(c.Label()); err != nil {
				return "", format.PutErrorf(p+"/"+c.Label(), "list items must be numbered")
			}
			v, _ := c.Value()
			if err := format.CheckToken(p+"/"+c.Label(), v, strings.TrimSpace(sep)); err != nil {
				return "", err
			}
			items = append(items, v)
		}
		return key + " " + strings.Join(items, sep), nil
	}

	if !hasValue || strings.TrimSpace(value) == "" {
		return "", format.PutErrorf(p, "%s has no value", key)
	}
	if err := format.CheckValue(p, value); err != nil {
		return "", err
	}
	return key + " " + value, nil
}
