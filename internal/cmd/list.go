package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iancoleman/orderedmap"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/provider"
)

var (
	listTarget string
	listOutput string
)

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List the resources of a type found in its target file",
	Long: `List every resource of a type found in its target file.

Types:
  host                    entries of /etc/hosts
  sshd_config             settings of /etc/ssh/sshd_config
  sshd_config_subsystem   Subsystem lines of /etc/ssh/sshd_config
  syslog                  rules of /etc/syslog.conf

Example:
  augprov list host
  augprov list sshd_config --target /etc/ssh/sshd_config.d/local.conf -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listTarget, "target", "t", "", "File to read (default: the type's configured target)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	p, err := provider.Lookup(args[0])
	if err != nil {
		return err
	}
	if listOutput != "table" && listOutput != "json" {
		return fmt.Errorf("unsupported output format %q", listOutput)
	}

	target := listTarget
	if target == "" {
		target = provider.TargetOf(p, configured(p, provider.NewResource(p.Type(), "")))
	}
	instances, err := p.Instances(manager, target)
	if err != nil {
		return err
	}

	if listOutput == "json" {
		return writeJSON(cmd.OutOrStdout(), instances)
	}
	writeTable(cmd.OutOrStdout(), target, instances)
	return nil
}

// columns returns the attribute names of resources in order of first
// appearance.
func columns(resources []*provider.Resource) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range resources {
		for _, k := range r.Attrs.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func writeTable(w io.Writer, target string, resources []*provider.Resource) {
	if len(resources) == 0 {
		fmt.Fprintf(w, "%s\n", text.FgYellow.Sprintf("No resources found in %s", target))
		return
	}

	cols := columns(resources)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := table.Row{text.FgHiCyan.Sprint("NAME")}
	for _, c := range cols {
		header = append(header, text.FgHiCyan.Sprint(text.FormatUpper.Apply(c)))
	}
	t.AppendHeader(header)

	for _, r := range resources {
		row := table.Row{r.Name}
		for _, c := range cols {
			row = append(row, r.AttrString(c))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func writeJSON(w io.Writer, resources []*provider.Resource) error {
	out := make([]*orderedmap.OrderedMap, 0, len(resources))
	for _, r := range resources {
		o := orderedmap.New()
		o.Set("type", r.Type)
		o.Set("name", r.Name)
		for _, k := range r.Attrs.Keys() {
			v, _ := r.Attrs.Get(k)
			o.Set(k, v)
		}
		out = append(out, o)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal resources: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
