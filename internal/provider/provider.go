// Package provider defines the resources projected from configuration
// files and the interface of the providers that manage them.
package provider

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/agilira/go-errors"
	"github.com/iancoleman/orderedmap"

	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Value is a property value: either a scalar or an ordered list.
type Value struct {
	items []string
	list  bool
}

// Scalar returns a single-valued Value.
func Scalar(s string) Value {
	return Value{items: []string{s}}
}

// List returns a list Value.
func List(items ...string) Value {
	return Value{items: slices.Clone(items), list: true}
}

// Bool returns the scalar "true" or "false".
func Bool(b bool) Value {
	if b {
		return Scalar("true")
	}
	return Scalar("false")
}

// IsList reports whether v is a list.
func (v Value) IsList() bool {
	return v.list
}

// String returns the scalar, or the list items joined by spaces.
func (v Value) String() string {
	return strings.Join(v.items, " ")
}

// Strings returns the items of v. A scalar has exactly one item.
func (v Value) Strings() []string {
	return slices.Clone(v.items)
}

// Bool interprets v as a boolean.
func (v Value) Bool() (bool, error) {
	switch strings.ToLower(v.String()) {
	case "true", "yes":
		return true, nil
	case "false", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v.String())
}

// Equal reports whether v and o hold the same items.
func (v Value) Equal(o Value) bool {
	return slices.Equal(v.items, o.items)
}

// MarshalJSON encodes a scalar as a string and a list as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.String())
}

// Resource is one logical unit of a file: a host entry, an sshd setting,
// a syslog rule.
type Resource struct {
	Type   string
	Name   string
	Target string
	Lens   string
	Attrs  *orderedmap.OrderedMap
}

// NewResource returns a resource with no attributes.
func NewResource(typ, name string) *Resource {
	return &Resource{Type: typ, Name: name, Attrs: orderedmap.New()}
}

// Attr returns the named attribute.
func (r *Resource) Attr(name string) (Value, bool) {
	if r.Attrs == nil {
		return Value{}, false
	}
	v, ok := r.Attrs.Get(name)
	if !ok {
		return Value{}, false
	}
	val, ok := v.(Value)
	return val, ok
}

// AttrString returns the named attribute as a string, or "".
func (r *Resource) AttrString(name string) string {
	v, _ := r.Attr(name)
	return v.String()
}

// SetAttr sets the named attribute, keeping the position of an existing one.
func (r *Resource) SetAttr(name string, v Value) *Resource {
	if r.Attrs == nil {
		r.Attrs = orderedmap.New()
	}
	r.Attrs.Set(name, v)
	return r
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s[%s]", r.Type, r.Name)
}

// Property describes a managed attribute.
type Property struct {
	Name string
	List bool
}

// Provider manages the resources of one type.
type Provider interface {
	// Type returns the resource type, e.g. "host".
	Type() string

	// DefaultTarget returns the file used when a resource names none.
	DefaultTarget() string

	// DefaultLens returns the lens used when a resource names none.
	DefaultLens() string

	// Properties returns the attributes Get and Set accept.
	Properties() []Property

	// Instances returns every resource found in target.
	Instances(m *session.Manager, target string) ([]*Resource, error)

	Exists(m *session.Manager, r *Resource) (bool, error)
	Create(m *session.Manager, r *Resource) error
	Destroy(m *session.Manager, r *Resource) error
	Get(m *session.Manager, r *Resource, prop string) (Value, error)
	Set(m *session.Manager, r *Resource, prop string, v Value) error
}

// Identifier is implemented by providers whose resources are not
// identified by name alone.
type Identifier interface {
	Identity(r *Resource) (string, error)
}

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register makes p available under its type. Provider packages call it
// from init.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[p.Type()] = p
}

// Lookup returns the provider of typ.
func Lookup(typ string) (Provider, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := providers[typ]
	if !ok {
		return nil, goerrors.New(tree.ErrCodeInvalidOperation, fmt.Sprintf("unknown resource type %q", typ)).
			WithContext("type", typ)
	}
	return p, nil
}

// Types returns the registered resource types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(providers))
	for t := range providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// TargetOf returns the file r lives in.
func TargetOf(p Provider, r *Resource) string {
	if r.Target != "" {
		return r.Target
	}
	return p.DefaultTarget()
}

// LensOf returns the lens used for r.
func LensOf(p Provider, r *Resource) string {
	if r.Lens != "" {
		return r.Lens
	}
	return p.DefaultLens()
}

// SessionTarget builds the session target of r with resource bound to
// $resource.
func SessionTarget(p Provider, r *Resource, resource string, args ...path.Arg) session.Target {
	return session.Target{
		File:     TargetOf(p, r),
		Lens:     LensOf(p, r),
		Resource: resource,
		Args:     args,
	}
}

// Identity returns the key Prefetch matches resources by.
func Identity(p Provider, r *Resource) (string, error) {
	if id, ok := p.(Identifier); ok {
		return id.Identity(r)
	}
	return r.Name, nil
}

// Prefetch enumerates each distinct target of resources once and returns,
// for every resource, the matching instance or nil.
func Prefetch(m *session.Manager, p Provider, resources []*Resource) ([]*Resource, error) {
	found := make(map[string]map[string]*Resource)
	current := make([]*Resource, len(resources))
	for i, r := range resources {
		target := TargetOf(p, r)
		byID, ok := found[target]
		if !ok {
			instances, err := p.Instances(m, target)
			if err != nil {
				return nil, err
			}
			byID = make(map[string]*Resource, len(instances))
			for _, inst := range instances {
				id, err := Identity(p, inst)
				if err != nil {
					return nil, err
				}
				byID[id] = inst
			}
			found[target] = byID
		}
		id, err := Identity(p, r)
		if err != nil {
			return nil, err
		}
		current[i] = byID[id]
	}
	return current, nil
}

// Invalid returns an invalid-operation error for r.
func Invalid(r *Resource, format string, args ...any) error {
	return goerrors.New(tree.ErrCodeInvalidOperation, r.String()+": "+fmt.Sprintf(format, args...)).
		WithContext("resource", r.String())
}

// Required returns the named attribute or an error when it is missing.
func Required(r *Resource, name string) (Value, error) {
	v, ok := r.Attr(name)
	if !ok {
		return Value{}, Invalid(r, "%s is required", name)
	}
	return v, nil
}
