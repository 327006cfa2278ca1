package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/logging"
	"github.com/hercules-team/augeasproviders/internal/script"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

var shellLens string

var shellCmd = &cobra.Command{
	Use:   "shell <file>",
	Short: "Edit a file interactively",
	Long: `Open a file and edit its tree interactively. Edits stay in memory
until "save". "quit" discards unsaved changes.

Commands:
  print [path]                 match <path>      get <path>
  set <path> <value>           clear <path>      rm <path>
  ins <label> before|after <path>
  defvar <name> <path>         defnode <name> <path> [value]
  save                         quit`,
	Args: cobra.ExactArgs(1),
	RunE: runShell,
}

func init() {
	shellCmd.Flags().StringVarP(&shellLens, "lens", "l", "", "Lens to parse the file with (default: chosen by file name)")
}

const shellHelp = `print [path]   match <path>   get <path>   set <path> <value>
clear <path>   rm <path>      ins <label> before|after <path>
defvar <name> <path>          defnode <name> <path> [value]
save           quit
`

// lineReader is the part of readline the shell loop uses.
type lineReader interface {
	Readline() (string, error)
}

func runShell(cmd *cobra.Command, args []string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "augprov> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".augprov_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("print"), readline.PcItem("match"), readline.PcItem("get"),
			readline.PcItem("set"), readline.PcItem("clear"), readline.PcItem("rm"),
			readline.PcItem("ins"), readline.PcItem("defvar"), readline.PcItem("defnode"),
			readline.PcItem("save"), readline.PcItem("quit"), readline.PcItem("help"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	return shell(rl, manager, session.Target{File: args[0], Lens: shellLens}, cmd.OutOrStdout())
}

// shell reads commands from rl until quit or end of input and runs them
// against the store of t.File. Command errors are printed, not returned.
func shell(rl lineReader, m *session.Manager, t session.Target, out io.Writer) error {
	log := logging.For(logger, logging.SubsystemCLI)

	// Parse the file up front so a broken file fails before the prompt.
	if err := m.WithSession(t, func(*tree.Store, string) error { return nil }); err != nil {
		return err
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		fields, err := script.SplitArgs(input)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, shellHelp)
			continue
		case "save":
			if err := m.Save(t.File); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Saved")
			continue
		}

		c := script.Command{Name: fields[0], File: t.File, Lens: t.Lens, Args: fields[1:]}
		if err := c.Validate(); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		err = m.WithSession(t, func(s *tree.Store, _ string) error {
			return script.Exec(s, c, out)
		})
		if err != nil {
			log.Debug("shell command failed", "command", input, "error", err)
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
