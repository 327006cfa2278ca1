package sshd

import (
	lens "github.com/hercules-team/augeasproviders/internal/format/sshd"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// SubsystemType is the resource type of subsystems.
const SubsystemType = "sshd_config_subsystem"

// Command is the attribute holding the subsystem command.
const Command = "command"

const (
	subsystemPath = session.Prefix + "/" + lens.SubsystemLabel + "/*[label() = $name]"
	subsystemLine = session.Prefix + "/" + lens.SubsystemLabel + "[*[label() = $name]]"
)

// SubsystemProvider manages Subsystem lines. The resource name is the
// subsystem name.
type SubsystemProvider struct{}

var _ provider.Provider = (*SubsystemProvider)(nil)

func init() {
	provider.Register(&SubsystemProvider{})
}

func (p *SubsystemProvider) Type() string          { return SubsystemType }
func (p *SubsystemProvider) DefaultTarget() string { return DefaultTarget }
func (p *SubsystemProvider) DefaultLens() string   { return lens.Name }

func (p *SubsystemProvider) Properties() []provider.Property {
	return []provider.Property{{Name: Command}}
}

func (p *SubsystemProvider) target(r *provider.Resource) session.Target {
	return provider.SessionTarget(p, r, subsystemPath, path.Bind("name", r.Name))
}

func (p *SubsystemProvider) Instances(m *session.Manager, target string) ([]*provider.Resource, error) {
	var resources []*provider.Resource
	t := session.Target{File: target, Lens: p.DefaultLens()}
	err := m.WithSession(t, func(s *tree.Store, prefix string) error {
		nodes, err := s.Match(prefix + "/" + lens.SubsystemLabel + "/*")
		if err != nil {
			return err
		}
		for _, n := range nodes {
			v, _ := n.Value()
			r := provider.NewResource(SubsystemType, n.Label())
			r.Target = target
			r.SetAttr(Command, provider.Scalar(v))
			resources = append(resources, r)
		}
		return nil
	})
	return resources, err
}

func (p *SubsystemProvider) Exists(m *session.Manager, r *provider.Resource) (bool, error) {
	var n int
	err := m.WithSession(p.target(r), func(s *tree.Store, _ string) error {
		var err error
		n, err = s.Count("$resource")
		return err
	})
	return n > 0, err
}

// Create adds a Subsystem line placed like any other top-level setting.
func (p *SubsystemProvider) Create(m *session.Manager, r *provider.Resource) error {
	command, err := provider.Required(r, Command)
	if err != nil {
		return err
	}
	if r.Name == "" {
		return provider.Invalid(r, "subsystem name is empty")
	}
	top := &scope{base: session.Prefix}
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, prefix string) error {
		if err := top.insert(s, lens.SubsystemLabel); err != nil {
			return err
		}
		return s.Set(prefix+"/"+lens.SubsystemLabel+"[last()]/"+path.EscapeLabel(r.Name), command.String())
	})
}

func (p *SubsystemProvider) Destroy(m *session.Manager, r *provider.Resource) error {
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, _ string) error {
		_, err := s.Remove(subsystemLine, path.Bind("name", r.Name))
		return err
	})
}

func (p *SubsystemProvider) Get(m *session.Manager, r *provider.Resource, prop string) (provider.Value, error) {
	if prop != Command {
		return provider.Value{}, provider.Invalid(r, "unknown property %q", prop)
	}
	var v provider.Value
	err := m.WithSession(p.target(r), func(s *tree.Store, _ string) error {
		command, err := s.Get("$resource")
		v = provider.Scalar(command)
		return err
	})
	return v, err
}

func (p *SubsystemProvider) Set(m *session.Manager, r *provider.Resource, prop string, v provider.Value) error {
	if prop != Command {
		return provider.Invalid(r, "unknown property %q", prop)
	}
	return m.WithSessionForWrite(p.target(r), func(s *tree.Store, _ string) error {
		return s.Set("$resource", v.String())
	})
}
