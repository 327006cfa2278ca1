package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/script"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run an edit script",
	Long: `Run the commands of an edit script. Consecutive commands on the same
file are applied together and the file is written once they all succeed.

Example script:
  #!/usr/bin/env augprov
  version 1
  file /etc/ssh/sshd_config
  set /PermitRootLogin no
  rm /Match[Condition/User = 'anoncvs']`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	s, err := script.Parse(string(content))
	if err != nil {
		return fmt.Errorf("failed to parse script %s: %w", args[0], err)
	}

	return script.Run(manager, s, cmd.OutOrStdout())
}
