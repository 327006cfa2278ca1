package script

import (
	"fmt"
	"io"
	"slices"

	"github.com/hercules-team/augeasproviders/internal/path"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

// Run executes the commands of s. Consecutive commands on the same file
// share one session, which is saved once they all succeed.
func Run(m *session.Manager, s *Script, out io.Writer) error {
	cmds := s.Commands
	for len(cmds) > 0 {
		n := 1
		for n < len(cmds) && cmds[n].File == cmds[0].File && cmds[n].Lens == cmds[0].Lens {
			n++
		}
		block := cmds[:n]
		cmds = cmds[n:]

		t := session.Target{File: block[0].File, Lens: block[0].Lens}
		run := func(st *tree.Store, _ string) error {
			for _, c := range block {
				if err := Exec(st, c, out); err != nil {
					if c.Line == 0 {
						return fmt.Errorf("%s: %w", c.Name, err)
					}
					return fmt.Errorf("line %d: %s: %w", c.Line, c.Name, err)
				}
			}
			return nil
		}

		var err error
		if slices.ContainsFunc(block, Command.Mutates) {
			err = m.WithSessionForWrite(t, run)
		} else {
			err = m.WithSession(t, run)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Mutates reports whether the command changes the tree.
func (c Command) Mutates() bool {
	switch c.Name {
	case "set", "clear", "rm", "ins", "defnode":
		return true
	}
	return false
}

// Exec runs one command against st and writes any output to out.
func Exec(st *tree.Store, c Command, out io.Writer) error {
	switch c.Name {
	case "set":
		return st.Set(c.Args[0], c.Args[1])
	case "clear":
		return st.Clear(c.Args[0])
	case "rm":
		n, err := st.Remove(c.Args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rm : %s %d\n", c.Args[0], n)
		return nil
	case "ins":
		return st.Insert(c.Args[2], c.Args[0], c.Args[1] == "before")
	case "defvar":
		_, err := st.DefVar(c.Args[0], c.Args[1])
		return err
	case "defnode":
		value := ""
		if len(c.Args) > 2 {
			value = c.Args[2]
		}
		created, err := st.DefNode(c.Args[0], c.Args[1], value)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "defnode : %s created\n", c.Args[1])
		}
		return nil
	case "get":
		if _, err := st.Get(c.Args[0]); err != nil {
			return err
		}
		nodes, _ := st.Match(c.Args[0])
		fmt.Fprintln(out, describe(c.Args[0], nodes[0]))
		return nil
	case "match":
		nodes, err := st.Match(c.Args[0])
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			fmt.Fprintln(out, "  (no matches)")
		}
		for _, n := range nodes {
			fmt.Fprintln(out, describe(st.PathOf(n), n))
		}
		return nil
	case "print":
		expr := "/"
		if len(c.Args) > 0 {
			expr = c.Args[0]
		}
		return Print(out, st, expr)
	}
	return fmt.Errorf("unknown command %q", c.Name)
}

func describe(p string, n *tree.Node) string {
	if v, ok := n.Value(); ok {
		return p + " = " + v
	}
	return p + " (none)"
}

// Print writes every node matched by expr and all its descendants, one
// path per line with its quoted value.
func Print(out io.Writer, st *tree.Store, expr string) error {
	nodes, err := st.Match(expr)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		n.Walk(func(d *tree.Node) bool {
			if d == st.Root() {
				return true
			}
			if v, ok := d.Value(); ok {
				fmt.Fprintf(out, "%s = %s\n", st.PathOf(d), path.Quote(v))
			} else {
				fmt.Fprintln(out, st.PathOf(d))
			}
			return true
		})
	}
	return nil
}
