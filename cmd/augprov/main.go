// augprov edits configuration files through path expressions.
package main

import (
	"os"
	"strings"

	"github.com/hercules-team/augeasproviders/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute(interpreterArgs(os.Args[1:])))
}

// interpreterArgs turns a shebang invocation, where the only argument is
// the path of a script, into "run <script>".
func interpreterArgs(args []string) []string {
	if len(args) != 1 || strings.HasPrefix(args[0], "-") || cmd.IsCommand(args[0]) {
		return args
	}
	fi, err := os.Stat(args[0])
	if err != nil || !fi.Mode().IsRegular() {
		return args
	}
	return []string{"run", args[0]}
}
