package sshd

import (
	"strings"

	"github.com/hercules-team/augeasproviders/internal/format"
	lens "github.com/hercules-team/augeasproviders/internal/format/sshd"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Type is the resource type of settings.
const Type = "sshd_config"

// Attributes of a setting.
const (
	Key       = "key"
	Condition = "condition"
	Value     = "value"
)

// emptyMatch selects Match blocks left without settings; comments do not
// count.
const emptyMatch = lens.MatchLabel + "[count(" + lens.SettingsLabel + "/*[label() != '" + format.CommentLabel + "'])=0]"

// DefaultTarget is the file used when a resource names none.
const DefaultTarget = "/etc/ssh/sshd_config"

// Provider manages sshd_config settings.
type Provider struct{}

var (
	_ provider.Provider   = (*Provider)(nil)
	_ provider.Identifier = (*Provider)(nil)
)

func init() {
	provider.Register(&Provider{})
}

func (p *Provider) Type() string          { return Type }
func (p *Provider) DefaultTarget() string { return DefaultTarget }
func (p *Provider) DefaultLens() string   { return lens.Name }

func (p *Provider) Properties() []provider.Property {
	return []provider.Property{{Name: Value, List: true}}
}

// KeyOf returns the keyword of r: its key attribute, or its name.
func KeyOf(r *provider.Resource) string {
	if k := r.AttrString(Key); k != "" {
		return k
	}
	return r.Name
}

// Identity combines the keyword and the condition set.
func (p *Provider) Identity(r *provider.Resource) (string, error) {
	cond, err := ParseCondition(r.AttrString(Condition))
	if err != nil {
		return "", provider.Invalid(r, "%v", err)
	}
	return KeyOf(r) + "\n" + canonicalCondition(cond), nil
}

// locate returns the scope of r and its session target with $resource
// bound to its occurrences.
func (p *Provider) locate(r *provider.Resource) (*scope, string, session.Target, error) {
	key := KeyOf(r)
	if !validKey(key) {
		return nil, "", session.Target{}, provider.Invalid(r, "invalid keyword %q", key)
	}
	sc, err := newScope(r.AttrString(Condition))
	if err != nil {
		return nil, "", session.Target{}, provider.Invalid(r, "%v", err)
	}
	return sc, key, provider.SessionTarget(p, r, sc.path(key), sc.args...), nil
}

func validKey(key string) bool {
	if key == "" || strings.EqualFold(key, lens.MatchLabel) || strings.HasPrefix(key, "#") {
		return false
	}
	return !strings.ContainsAny(key, " \t=/")
}

// Instances returns the top-level settings, then the settings of each
// Match block named "<key> when <condition>".
func (p *Provider) Instances(m *session.Manager, target string) ([]*provider.Resource, error) {
	var resources []*provider.Resource
	t := session.Target{File: target, Lens: p.DefaultLens()}
	err := m.WithSession(t, func(s *tree.Store, prefix string) error {
		top, err := s.Match(prefix + "/*")
		if err != nil {
			return err
		}
		for _, key := range settingKeys(top) {
			nodes, err := s.Match(prefix + "/" + path.EscapeLabel(key))
			if err != nil {
				return err
			}
			if vs := values(nodes); len(vs) > 0 {
				r := provider.NewResource(Type, key)
				r.Target = target
				r.SetAttr(Value, provider.List(vs...))
				resources = append(resources, r)
			}
		}

		blocks, err := s.Match(prefix + "/" + lens.MatchLabel)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			cond := FormatCondition(b.Child(lens.ConditionLabel))
			settings := b.Child(lens.SettingsLabel)
			if settings == nil {
				continue
			}
			for _, key := range settingKeys(settings.Children()) {
				vs := values(settings.ChildrenNamed(key))
				if len(vs) == 0 {
					continue
				}
				r := provider.NewResource(Type, key+" when "+cond)
				r.Target = target
				r.SetAttr(Key, provider.Scalar(key))
				r.SetAttr(Condition, provider.Scalar(cond))
				r.SetAttr(Value, provider.List(vs...))
				resources = append(resources, r)
			}
		}
		return nil
	})
	return resources, err
}

// settingKeys returns the distinct setting keywords among nodes in order
// of first appearance.
func settingKeys(nodes []*tree.Node) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, n := range nodes {
		label := n.Label()
		if seen[label] || strings.HasPrefix(label, "#") || strings.HasPrefix(label, "@") ||
			strings.EqualFold(label, lens.MatchLabel) || strings.EqualFold(label, lens.SubsystemLabel) {
			continue
		}
		seen[label] = true
		keys = append(keys, label)
	}
	return keys
}

func (p *Provider) Exists(m *session.Manager, r *provider.Resource) (bool, error) {
	_, _, t, err := p.locate(r)
	if err != nil {
		return false, err
	}
	var n int
	err = m.WithSession(t, func(s *tree.Store, _ string) error {
		n, err = s.Count("$resource")
		return err
	})
	return n > 0, err
}

// Create adds the setting, creating its Match block when needed. Port
// goes before the first ListenAddress of the scope.
func (p *Provider) Create(m *session.Manager, r *provider.Resource) error {
	v, err := provider.Required(r, Value)
	if err != nil {
		return err
	}
	sc, key, t, err := p.locate(r)
	if err != nil {
		return err
	}
	return m.WithSessionForWrite(t, func(s *tree.Store, _ string) error {
		if err := sc.ensureMatch(s); err != nil {
			return err
		}
		if strings.EqualFold(key, "Port") {
			if err := sc.insertPort(s, key); err != nil {
				return err
			}
		}
		return sc.setValues(s, key, v.Strings())
	})
}

func (sc *scope) insertPort(s *tree.Store, key string) error {
	listen := sc.base + "/ListenAddress"
	n, err := s.Count(listen, sc.args...)
	if err != nil || n == 0 {
		return err
	}
	ports, err := s.Count(sc.path(key), sc.args...)
	if err != nil || ports > 0 {
		return err
	}
	return s.Insert(listen+"[1]", key, true, sc.args...)
}

// Destroy removes every occurrence of the setting and then any Match
// block left without settings.
func (p *Provider) Destroy(m *session.Manager, r *provider.Resource) error {
	_, _, t, err := p.locate(r)
	if err != nil {
		return err
	}
	return m.WithSessionForWrite(t, func(s *tree.Store, prefix string) error {
		if _, err := s.Remove("$resource"); err != nil {
			return err
		}
		_, err := s.Remove(path.Join(prefix, emptyMatch))
		return err
	})
}

func (p *Provider) Get(m *session.Manager, r *provider.Resource, prop string) (provider.Value, error) {
	if prop != Value {
		return provider.Value{}, provider.Invalid(r, "unknown property %q", prop)
	}
	_, _, t, err := p.locate(r)
	if err != nil {
		return provider.Value{}, err
	}
	var v provider.Value
	err = m.WithSession(t, func(s *tree.Store, _ string) error {
		nodes, err := s.Match("$resource")
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			_, err := s.Get("$resource")
			return err
		}
		v = provider.List(values(nodes)...)
		return nil
	})
	return v, err
}

func (p *Provider) Set(m *session.Manager, r *provider.Resource, prop string, v provider.Value) error {
	if prop != Value {
		return provider.Invalid(r, "unknown property %q", prop)
	}
	sc, key, t, err := p.locate(r)
	if err != nil {
		return err
	}
	return m.WithSessionForWrite(t, func(s *tree.Store, _ string) error {
		return sc.setValues(s, key, v.Strings())
	})
}
