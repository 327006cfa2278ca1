// Package syslog manages syslog.conf rules.
//
// A rule is identified by its facility, level, action type and action.
// Entries holding several selectors or facilities yield one resource per
// facility. A hostname action may carry a port as "host:port"; it is
// stored as separate hostname and port nodes.
package syslog

import (
	"fmt"
	"slices"

	lens "github.com/hercules-team/augeasproviders/internal/format/syslog"
	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Type is the resource type.
const Type = "syslog"

// Attributes.
const (
	Facility   = "facility"
	Level      = "level"
	NoSync     = "no_sync"
	ActionType = "action_type"
	Action     = "action"
)

// ActionTypes lists the accepted action types.
var ActionTypes = []string{lens.FileLabel, lens.HostnameLabel, lens.UserLabel, lens.ProgramLabel}

const entryPath = session.Prefix + "/" + lens.EntryLabel +
	"[selector/facility = $facility and selector/level = $level and action/*[label() = $action_type] = $action%s]"

// Port clauses spliced into entryPath for hostname actions.
const (
	withPort    = " and action/" + lens.PortLabel + " = $port"
	withoutPort = " and count(action/" + lens.PortLabel + ") = 0"
)

// Provider manages syslog rules.
type Provider struct{}

var (
	_ provider.Provider   = (*Provider)(nil)
	_ provider.Identifier = (*Provider)(nil)
)

func init() {
	provider.Register(&Provider{})
}

func (p *Provider) Type() string          { return Type }
func (p *Provider) DefaultTarget() string { return "/etc/syslog.conf" }
func (p *Provider) DefaultLens() string   { return lens.Name }

func (p *Provider) Properties() []provider.Property {
	return []provider.Property{{Name: NoSync}}
}

type rule struct {
	facility, level, actionType, action string
}

func ruleOf(r *provider.Resource) (rule, error) {
	ru := rule{
		facility:   r.AttrString(Facility),
		level:      r.AttrString(Level),
		actionType: r.AttrString(ActionType),
		action:     r.AttrString(Action),
	}
	if ru.facility == "" || ru.level == "" || ru.action == "" {
		return ru, provider.Invalid(r, "facility, level and action are required")
	}
	if ru.actionType == "" {
		ru.actionType = lens.FileLabel
	}
	if !slices.Contains(ActionTypes, ru.actionType) {
		return ru, provider.Invalid(r, "invalid action_type %q", ru.actionType)
	}
	return ru, nil
}

// hostPort splits a hostname action into host and port.
func (ru rule) hostPort() (string, string) {
	if ru.actionType != lens.HostnameLabel {
		return ru.action, ""
	}
	return lens.SplitHostPort(ru.action)
}

// path returns the expression matching the rule's entry and its arguments.
func (ru rule) path() (string, []path.Arg) {
	value, port := ru.hostPort()
	args := []path.Arg{
		path.Bind("facility", ru.facility),
		path.Bind("level", ru.level),
		path.Bind("action_type", ru.actionType),
		path.Bind("action", value),
	}
	switch {
	case port != "":
		return fmt.Sprintf(entryPath, withPort), append(args, path.Bind("port", port))
	case ru.actionType == lens.HostnameLabel:
		return fmt.Sprintf(entryPath, withoutPort), args
	}
	return fmt.Sprintf(entryPath, ""), args
}

// Name renders the rule as it would appear in the file, e.g.
// "mail.* -/var/log/maillog".
func (ru rule) Name(noSync bool) string {
	name := ru.facility + "." + ru.level + " "
	if noSync {
		name += "-"
	}
	if ru.actionType == lens.HostnameLabel {
		name += "@"
	}
	return name + ru.action
}

// Identity is the facility, level, action type and action.
func (p *Provider) Identity(r *provider.Resource) (string, error) {
	ru, err := ruleOf(r)
	if err != nil {
		return "", err
	}
	return ru.facility + "\n" + ru.level + "\n" + ru.actionType + "\n" + ru.action, nil
}

func (p *Provider) target(r *provider.Resource) (session.Target, rule, error) {
	ru, err := ruleOf(r)
	if err != nil {
		return session.Target{}, ru, err
	}
	expr, args := ru.path()
	return provider.SessionTarget(p, r, expr, args...), ru, nil
}

// Instances returns one resource per facility of every selector.
func (p *Provider) Instances(m *session.Manager, target string) ([]*provider.Resource, error) {
	var resources []*provider.Resource
	t := session.Target{File: target, Lens: p.DefaultLens()}
	err := m.WithSession(t, func(s *tree.Store, prefix string) error {
		entries, err := s.Match(prefix + "/" + lens.EntryLabel)
		if err != nil {
			return err
		}
		for _, e := range entries {
			action := e.Child(lens.ActionLabel)
			if action == nil {
				continue
			}
			noSync := action.Child(lens.NoSyncLabel) != nil
			var actionType, value string
			for _, c := range action.Children() {
				if c.Label() != lens.NoSyncLabel {
					actionType = c.Label()
					value, _ = c.Value()
					break
				}
			}
			if port := action.ChildValue(lens.PortLabel); actionType == lens.HostnameLabel && port != "" {
				value += ":" + port
			}
			for _, sel := range e.ChildrenNamed(lens.SelectorLabel) {
				for _, f := range sel.ChildrenNamed(lens.FacilityLabel) {
					facility, _ := f.Value()
					ru := rule{facility, sel.ChildValue(lens.LevelLabel), actionType, value}
					r := provider.NewResource(Type, ru.Name(noSync))
					r.Target = target
					r.SetAttr(Facility, provider.Scalar(ru.facility))
					r.SetAttr(Level, provider.Scalar(ru.level))
					r.SetAttr(NoSync, provider.Bool(noSync))
					r.SetAttr(ActionType, provider.Scalar(ru.actionType))
					r.SetAttr(Action, provider.Scalar(ru.action))
					resources = append(resources, r)
				}
			}
		}
		return nil
	})
	return resources, err
}

func (p *Provider) Exists(m *session.Manager, r *provider.Resource) (bool, error) {
	t, _, err := p.target(r)
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

// Create appends an entry for the rule. The no_sync marker is only
// valid for file actions.
func (p *Provider) Create(m *session.Manager, r *provider.Resource) error {
	t, ru, err := p.target(r)
	if err != nil {
		return err
	}
	noSync := false
	if v, ok := r.Attr(NoSync); ok {
		if noSync, err = v.Bool(); err != nil {
			return provider.Invalid(r, "%v", err)
		}
	}
	if noSync && ru.actionType != lens.FileLabel {
		return provider.Invalid(r, "no_sync only applies to file actions")
	}

	return m.WithSessionForWrite(t, func(s *tree.Store, prefix string) error {
		entry := prefix + "/" + lens.EntryLabel
		if err := s.Set(entry+"[last()+1]/selector/facility", ru.facility); err != nil {
			return err
		}
		entry += "[last()]"
		if err := s.Set(entry+"/selector/level", ru.level); err != nil {
			return err
		}
		if noSync {
			if err := s.Clear(entry + "/action/" + lens.NoSyncLabel); err != nil {
				return err
			}
		}
		value, port := ru.hostPort()
		if err := s.Set(entry+"/action/"+path.EscapeLabel(ru.actionType), value); err != nil {
			return err
		}
		if port == "" {
			return nil
		}
		return s.Set(entry+"/action/"+lens.PortLabel, port)
	})
}

func (p *Provider) Destroy(m *session.Manager, r *provider.Resource) error {
	t, _, err := p.target(r)
	if err != nil {
		return err
	}
	return m.WithSessionForWrite(t, func(s *tree.Store, _ string) error {
		_, err := s.Remove("$resource")
		return err
	})
}

func (p *Provider) Get(m *session.Manager, r *provider.Resource, prop string) (provider.Value, error) {
	if prop != NoSync {
		return provider.Value{}, provider.Invalid(r, "unknown property %q", prop)
	}
	t, _, err := p.target(r)
	if err != nil {
		return provider.Value{}, err
	}
	var v provider.Value
	err = m.WithSession(t, func(s *tree.Store, _ string) error {
		if _, err := s.Get("$resource"); err != nil {
			return err
		}
		n, err := s.Count("$resource/action/" + lens.NoSyncLabel)
		v = provider.Bool(n > 0)
		return err
	})
	return v, err
}

// Set toggles the no_sync marker in front of the file action.
func (p *Provider) Set(m *session.Manager, r *provider.Resource, prop string, v provider.Value) error {
	if prop != NoSync {
		return provider.Invalid(r, "unknown property %q", prop)
	}
	t, ru, err := p.target(r)
	if err != nil {
		return err
	}
	noSync, err := v.Bool()
	if err != nil {
		return provider.Invalid(r, "%v", err)
	}
	if noSync && ru.actionType != lens.FileLabel {
		return provider.Invalid(r, "no_sync only applies to file actions")
	}
	return m.WithSessionForWrite(t, func(s *tree.Store, _ string) error {
		marker := "$resource/action/" + lens.NoSyncLabel
		if !noSync {
			_, err := s.Remove(marker)
			return err
		}
		n, err := s.Count(marker)
		if err != nil || n > 0 {
			return err
		}
		return s.Insert("$resource/action/"+lens.FileLabel, lens.NoSyncLabel, true)
	})
}
