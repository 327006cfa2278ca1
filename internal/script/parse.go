// Package script provides parsing and execution of augprov edit scripts.
//
// A script names a file and edits it with path commands:
//
//	#!/usr/bin/env augprov
//	version 1
//	file /etc/hosts
//	set /*[canonical = 'localhost']/ipaddr 127.0.0.1
//	ins alias after /*[canonical = 'localhost']/canonical
//	set /*[canonical = 'localhost']/alias[1] "localhost.localdomain"
package script

import (
	"bufio"
	"fmt"
	"strings"
)

// CurrentVersion is the latest supported script format version.
const CurrentVersion = 1

// Command is one edit or query against the current file.
type Command struct {
	Line int
	Name string
	File string
	Lens string
	Args []string
}

// Script represents a parsed script.
type Script struct {
	Version  int
	Commands []Command
}

// arity gives the argument count of each command. The path of print and
// the value of defnode are optional.
var arity = map[string]int{
	"set":     2,
	"clear":   1,
	"rm":      1,
	"ins":     3,
	"defvar":  2,
	"defnode": 3,
	"get":     1,
	"match":   1,
	"print":   1,
}

// Parse parses a script from its content.
func Parse(content string) (*Script, error) {
	script := &Script{}

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNum := 0
	versionSeen := false
	var file, lens string

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip shebang
		if lineNum == 1 && strings.HasPrefix(line, "#!") {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields, err := SplitArgs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		directive, args := fields[0], fields[1:]

		if directive != "version" && !versionSeen {
			return nil, fmt.Errorf("line %d: version directive must come first", lineNum)
		}

		switch directive {
		case "version":
			if versionSeen {
				return nil, fmt.Errorf("line %d: duplicate version directive", lineNum)
			}
			if len(args) != 1 {
				return nil, fmt.Errorf("line %d: version takes one argument", lineNum)
			}
			var v int
			if _, err := fmt.Sscanf(args[0], "%d", &v); err != nil {
				return nil, fmt.Errorf("line %d: invalid version %q", lineNum, args[0])
			}
			if v > CurrentVersion {
				return nil, fmt.Errorf("line %d: unsupported version %d (max supported: %d), please upgrade augprov", lineNum, v, CurrentVersion)
			}
			if v < 1 {
				return nil, fmt.Errorf("line %d: invalid version %d", lineNum, v)
			}
			script.Version = v
			versionSeen = true

		case "file":
			if len(args) != 1 {
				return nil, fmt.Errorf("line %d: file takes one argument", lineNum)
			}
			file, lens = args[0], ""

		case "lens":
			if file == "" {
				return nil, fmt.Errorf("line %d: lens before file", lineNum)
			}
			if len(args) != 1 {
				return nil, fmt.Errorf("line %d: lens takes one argument", lineNum)
			}
			lens = args[0]

		default:
			c := Command{
				Line: lineNum,
				Name: directive,
				File: file,
				Lens: lens,
				Args: args,
			}
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			script.Commands = append(script.Commands, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}

	if !versionSeen {
		return nil, fmt.Errorf("missing required version directive")
	}

	return script, nil
}

// Validate checks the command name and its arguments.
func (c Command) Validate() error {
	want, ok := arity[c.Name]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Name)
	}
	switch {
	case c.Name == "print":
		if len(c.Args) > want {
			return fmt.Errorf("print takes at most one argument")
		}
	case c.Name == "defnode":
		if len(c.Args) < want-1 || len(c.Args) > want {
			return fmt.Errorf("defnode takes 2 or 3 arguments, got %d", len(c.Args))
		}
	case len(c.Args) != want:
		return fmt.Errorf("%s takes %d arguments, got %d", c.Name, want, len(c.Args))
	}
	if c.Name == "ins" && c.Args[1] != "before" && c.Args[1] != "after" {
		return fmt.Errorf("ins position must be before or after, got %q", c.Args[1])
	}
	if c.File == "" {
		return fmt.Errorf("%s needs a file", c.Name)
	}
	return nil
}

// SplitArgs splits a command line on whitespace outside brackets,
// parentheses and quotes. Surrounding quotes are stripped from arguments
// that are quoted as a whole.
func SplitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		depth int
		quote byte
		inArg bool
	)
	flush := func() {
		if inArg {
			args = append(args, Unquote(cur.String()))
			cur.Reset()
			inArg = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(line) {
				cur.WriteByte(c)
				i++
				c = line[i]
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", string(c))
			}
		case c == '\\' && i+1 < len(line):
			cur.WriteByte(c)
			i++
			c = line[i]
		case (c == ' ' || c == '\t') && depth == 0:
			flush()
			continue
		}
		cur.WriteByte(c)
		inArg = true
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	flush()
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

// Unquote strips surrounding quotes if present.
func Unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
