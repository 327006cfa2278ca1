// Package host manages entries of hosts files.
package host

import (
	"runtime"
	"strconv"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/format/hosts"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Type is the resource type.
const Type = "host"

// Properties.
const (
	IP      = "ip"
	Aliases = "host_aliases"
	Comment = "comment"
)

// entryPath selects the entry whose canonical name is $name.
const entryPath = session.Prefix + "/*[canonical = $name]"

// Provider manages host resources.
type Provider struct{}

var _ provider.Provider = (*Provider)(nil)

func init() {
	provider.Register(&Provider{})
}

func (p *Provider) Type() string { return Type }

// DefaultTarget returns /etc/hosts, or /etc/inet/hosts on Solaris.
func (p *Provider) DefaultTarget() string {
	if runtime.GOOS == "solaris" || runtime.GOOS == "illumos" {
		return "/etc/inet/hosts"
	}
	return "/etc/hosts"
}

func (p *Provider) DefaultLens() string { return hosts.Name }

func (p *Provider) Properties() []provider.Property {
	return []provider.Property{{Name: IP}, {Name: Aliases, List: true}, {Name: Comment}}
}

func (p *Provider) target(r *provider.Resource) session.Target {
	return provider.SessionTarget(p, r, entryPath, path.Bind("name", r.Name))
}

// Instances returns one resource per entry with a canonical name.
func (p *Provider) Instances(m *session.Manager, target string) ([]*provider.Resource, error) {
	var resources []*provider.Resource
	t := session.Target{File: target, Lens: p.DefaultLens()}
	err := m.WithSession(t, func(s *tree.Store, prefix string) error {
		entries, err := s.Match(prefix + "/*[canonical]")
		if err != nil {
			return err
		}
		for _, e := range entries {
			r := provider.NewResource(Type, e.ChildValue("canonical"))
			r.Target = target
			r.SetAttr(IP, provider.Scalar(e.ChildValue("ipaddr")))
			r.SetAttr(Aliases, aliasesOf(e))
			if c := e.Child(format.CommentLabel); c != nil {
				v, _ := c.Value()
				r.SetAttr(Comment, provider.Scalar(v))
			}
			resources = append(resources, r)
		}
		return nil
	})
	return resources, err
}

func aliasesOf(entry *tree.Node) provider.Value {
	var aliases []string
	for _, a := range entry.ChildrenNamed("alias") {
		v, _ := a.Value()
		aliases = append(aliases, v)
	}
	return provider.List(aliases...)
}

func (p *Provider) Exists(m *session.Manager, r *provider.Resource) (bool, error) {
	var n int
	err := m.WithSession(p.target(r), func(s *tree.Store, _ string) error {
		var err error
		n, err = s.Count("$resource")
		return err
	})
	return n > 0, err
}

// Create appends a new entry labelled with the next free number.
func (p *Provider) Create(m *session.Manager, r *provider.Resource) error {
	ip, err := provider.Required(r, IP)
	if err != nil {
		return err
	}
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, prefix string) error {
		label, err := nextLabel(s, prefix)
		if err != nil {
			return err
		}
		entry := prefix + "/" + label
		if err := s.Set(entry+"/ipaddr", ip.String()); err != nil {
			return err
		}
		if err := s.Set(entry+"/canonical", r.Name); err != nil {
			return err
		}
		if aliases, ok := r.Attr(Aliases); ok {
			for _, a := range aliases.Strings() {
				if err := s.Set(entry+"/alias[last()+1]", a); err != nil {
					return err
				}
			}
		}
		if c, ok := r.Attr(Comment); ok && c.String() != "" {
			return s.Set(entry+"/"+format.CommentLabel, c.String())
		}
		return nil
	})
}

func nextLabel(s *tree.Store, prefix string) (string, error) {
	nodes, err := s.Match(prefix + "/*")
	if err != nil {
		return "", err
	}
	last := 0
	for _, n := range nodes {
		if i, err := strconv.Atoi(n.Label()); err == nil && i > last {
			last = i
		}
	}
	return strconv.Itoa(last + 1), nil
}

func (p *Provider) Destroy(m *session.Manager, r *provider.Resource) error {
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, _ string) error {
		_, err := s.Remove("$resource")
		return err
	})
}

func (p *Provider) Get(m *session.Manager, r *provider.Resource, prop string) (provider.Value, error) {
	var v provider.Value
	err := m.WithSession(p.target(r), func(s *tree.Store, _ string) error {
		switch prop {
		case IP:
			ip, err := s.Get("$resource/ipaddr")
			v = provider.Scalar(ip)
			return err
		case Aliases:
			entries, err := s.Match("$resource")
			if err != nil {
				return err
			}
			if len(entries) != 1 {
				_, err := s.Get("$resource")
				return err
			}
			v = aliasesOf(entries[0])
			return nil
		case Comment:
			nodes, err := s.Match("$resource/" + format.CommentLabel)
			if err != nil || len(nodes) == 0 {
				v = provider.Scalar("")
				return err
			}
			c, _ := nodes[0].Value()
			v = provider.Scalar(c)
			return nil
		}
		return provider.Invalid(r, "unknown property %q", prop)
	})
	return v, err
}

func (p *Provider) Set(m *session.Manager, r *provider.Resource, prop string, v provider.Value) error {
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, _ string) error {
		switch prop {
		case IP:
			return s.Set("$resource/ipaddr", v.String())
		case Aliases:
			return setAliases(s, v.Strings())
		case Comment:
			if v.String() == "" {
				_, err := s.Remove("$resource/" + format.CommentLabel)
				return err
			}
			return s.Set("$resource/"+format.CommentLabel, v.String())
		}
		return provider.Invalid(r, "unknown property %q", prop)
	})
}

// setAliases replaces the aliases, inserting each after the previous one
// so the given order is kept.
func setAliases(s *tree.Store, aliases []string) error {
	if _, err := s.Get("$resource"); err != nil {
		return err
	}
	if _, err := s.Remove("$resource/alias"); err != nil {
		return err
	}
	after := "$resource/canonical"
	for _, a := range aliases {
		if err := s.Insert(after, "alias", false); err != nil {
			return err
		}
		if err := s.Set("$resource/alias[last()]", a); err != nil {
			return err
		}
		after = "$resource/alias[last()]"
	}
	return nil
}
