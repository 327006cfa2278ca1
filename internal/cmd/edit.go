package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/script"
)

var editLens string

var printCmd = &cobra.Command{
	Use:   "print <file> [path]",
	Short: "Print the tree of a file",
	Long: `Print every node under path, one per line, with its value.

Example:
  augprov print /etc/hosts
  augprov print /etc/ssh/sshd_config '/Match[1]'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEdit("print"),
}

var matchCmd = &cobra.Command{
	Use:   "match <file> <path>",
	Short: "Print the nodes matching a path",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit("match"),
}

var getCmd = &cobra.Command{
	Use:   "get <file> <path>",
	Short: "Print the value of the single node matching a path",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit("get"),
}

var setCmd = &cobra.Command{
	Use:   "set <file> <path> <value>",
	Short: "Set the value of a node, creating it if needed",
	Long: `Set the value of the single node matching path. When nothing matches,
the node is created below the longest existing prefix of path.

Example:
  augprov set /etc/hosts "/*[canonical = 'localhost']/ipaddr" 127.0.0.1
  augprov set /etc/hosts '/3/canonical' db`,
	Args: cobra.ExactArgs(3),
	RunE: runEdit("set"),
}

var clearCmd = &cobra.Command{
	Use:   "clear <file> <path>",
	Short: "Remove the value of a node, creating it if needed",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit("clear"),
}

var rmCmd = &cobra.Command{
	Use:   "rm <file> <path>",
	Short: "Remove every node matching a path",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit("rm"),
}

var insCmd = &cobra.Command{
	Use:   "ins <file> <label> before|after <path>",
	Short: "Insert an empty node next to the node matching a path",
	Long: `Insert a node with the given label before or after the single node
matching path.

Example:
  augprov ins /etc/hosts alias after "/*[canonical = 'localhost']/canonical"`,
	Args: cobra.ExactArgs(4),
	RunE: runEdit("ins"),
}

func init() {
	for _, c := range []*cobra.Command{printCmd, matchCmd, getCmd, setCmd, clearCmd, rmCmd, insCmd} {
		c.Flags().StringVarP(&editLens, "lens", "l", "", "Lens to parse the file with (default: chosen by file name)")
	}
}

// runEdit runs a single script command against the file named by the
// first argument.
func runEdit(name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c := script.Command{
			Name: name,
			File: args[0],
			Lens: editLens,
			Args: args[1:],
		}
		if err := c.Validate(); err != nil {
			return err
		}
		return script.Run(manager, &script.Script{Version: script.CurrentVersion, Commands: []script.Command{c}}, cmd.OutOrStdout())
	}
}
