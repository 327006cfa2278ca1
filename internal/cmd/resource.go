package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/logging"
	"github.com/hercules-team/augeasproviders/internal/provider"
)

var resourceCmd = &cobra.Command{
	Use:   "resource <type> <name> [attr=value...]",
	Short: "Show or manage a single resource",
	Long: `Show a resource, or bring it to the state described by its attributes.

Without managed properties the resource is shown. With ensure=absent it
is removed. Otherwise it is created when missing, and every property that
differs from the given value is changed. List properties take
comma-separated values.

The special attributes target and lens override the file and lens the
resource lives in.

Example:
  augprov resource host db ip=10.0.0.5 host_aliases=db1,db2
  augprov resource sshd_config PermitRootLogin value=no condition="User anoncvs"
  augprov resource syslog kern facility=kern level=crit action=/var/log/kern no_sync=true
  augprov resource host db ensure=absent`,
	Args: cobra.MinimumNArgs(2),
	RunE: runResource,
}

// configured fills in the target and lens configured for the type of r.
func configured(p provider.Provider, r *provider.Resource) *provider.Resource {
	if cfg == nil {
		return r
	}
	file, lens := cfg.TargetFor(p.Type())
	if r.Target == "" {
		r.Target = file
	}
	if r.Lens == "" {
		r.Lens = lens
	}
	return r
}

// parseResource builds a resource from attr=value arguments. It returns
// the requested ensure state and the managed properties in argument order.
func parseResource(p provider.Provider, name string, attrs []string) (*provider.Resource, string, []string, error) {
	props := make(map[string]provider.Property)
	for _, prop := range p.Properties() {
		props[prop.Name] = prop
	}

	r := provider.NewResource(p.Type(), name)
	ensure := ""
	var managed []string
	for _, a := range attrs {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, "", nil, fmt.Errorf("invalid attribute %q, want name=value", a)
		}
		switch k {
		case "ensure":
			if v != "present" && v != "absent" {
				return nil, "", nil, fmt.Errorf("ensure must be present or absent, got %q", v)
			}
			ensure = v
		case "target":
			r.Target = v
		case "lens":
			r.Lens = v
		default:
			prop, isProp := props[k]
			switch {
			case isProp && prop.List:
				var items []string
				for _, item := range strings.Split(v, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				r.SetAttr(k, provider.List(items...))
			default:
				r.SetAttr(k, provider.Scalar(v))
			}
			if isProp {
				managed = append(managed, k)
			}
		}
	}
	return configured(p, r), ensure, managed, nil
}

func runResource(cmd *cobra.Command, args []string) error {
	p, err := provider.Lookup(args[0])
	if err != nil {
		return err
	}
	r, ensure, managed, err := parseResource(p, args[1], args[2:])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	log := logging.For(logger, logging.SubsystemProvider).With("resource", r.String())

	exists, err := p.Exists(manager, r)
	if err != nil {
		return err
	}

	switch {
	case ensure == "absent":
		if !exists {
			fmt.Fprintf(out, "%s: absent\n", r)
			return nil
		}
		if err := p.Destroy(manager, r); err != nil {
			return err
		}
		log.Info("removed")
		fmt.Fprintf(out, "%s: removed\n", r)
		return nil

	case ensure == "" && len(managed) == 0:
		return showResource(out, p, r, exists)

	case !exists:
		if err := p.Create(manager, r); err != nil {
			return err
		}
		log.Info("created")
		fmt.Fprintf(out, "%s: created\n", r)
		return nil
	}

	changed := false
	for _, prop := range managed {
		want, _ := r.Attr(prop)
		have, err := p.Get(manager, r, prop)
		if err != nil {
			return err
		}
		if have.Equal(want) {
			continue
		}
		if err := p.Set(manager, r, prop, want); err != nil {
			return err
		}
		changed = true
		log.Info("changed property", "property", prop, "from", have.String(), "to", want.String())
		fmt.Fprintf(out, "%s/%s: changed %q to %q\n", r, prop, have.String(), want.String())
	}
	if !changed {
		fmt.Fprintf(out, "%s: unchanged\n", r)
	}
	return nil
}

func showResource(w io.Writer, p provider.Provider, r *provider.Resource, exists bool) error {
	if !exists {
		fmt.Fprintf(w, "%s: absent\n", r)
		return nil
	}
	fmt.Fprintf(w, "%s: present\n", r)
	for _, prop := range p.Properties() {
		v, err := p.Get(manager, r, prop.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s = %q\n", prop.Name, v.String())
	}
	return nil
}
