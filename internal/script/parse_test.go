package script

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantVersion  int
		wantCommands int
		wantErr      bool
	}{
		{
			name: "basic script",
			content: `#!/usr/bin/env augprov
version 1
file /etc/hosts
set /1/ipaddr 127.0.0.1
`,
			wantVersion:  1,
			wantCommands: 1,
		},
		{
			name: "comments and blank lines",
			content: `#!/usr/bin/env augprov
# edit hosts
version 1

file /etc/hosts
lens Hosts.lns
# drop the second entry
rm /2
print
`,
			wantVersion:  1,
			wantCommands: 2,
		},
		{
			name: "missing version",
			content: `file /etc/hosts
set /1/ipaddr 127.0.0.1
`,
			wantErr: true,
		},
		{
			name: "version not first",
			content: `file /etc/hosts
version 1
`,
			wantErr: true,
		},
		{
			name: "duplicate version",
			content: `version 1
version 1
`,
			wantErr: true,
		},
		{
			name:    "unsupported version",
			content: "version 999\n",
			wantErr: true,
		},
		{
			name: "command before file",
			content: `version 1
set /1/ipaddr 127.0.0.1
`,
			wantErr: true,
		},
		{
			name: "lens before file",
			content: `version 1
lens Hosts.lns
`,
			wantErr: true,
		},
		{
			name: "unknown command",
			content: `version 1
file /etc/hosts
frobnicate /1
`,
			wantErr: true,
		},
		{
			name: "wrong argument count",
			content: `version 1
file /etc/hosts
set /1/ipaddr
`,
			wantErr: true,
		},
		{
			name: "bad insert position",
			content: `version 1
file /etc/hosts
ins alias beside /1/canonical
`,
			wantErr: true,
		},
		{
			name: "unterminated quote",
			content: `version 1
file /etc/hosts
set /1/#comment "oops
`,
			wantErr: true,
		},
		{
			name:         "version only",
			content:      "version 1\n",
			wantVersion:  1,
			wantCommands: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if script.Version != tt.wantVersion {
				t.Errorf("Version = %d, want %d", script.Version, tt.wantVersion)
			}
			if len(script.Commands) != tt.wantCommands {
				t.Errorf("len(Commands) = %d, want %d", len(script.Commands), tt.wantCommands)
			}
		})
	}
}

func TestParseTracksFileAndLens(t *testing.T) {
	script, err := Parse(`version 1
file /etc/hosts
lens Hosts.lns
get /1/ipaddr
file /etc/ssh/sshd_config
get /Port
`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Command{
		{Line: 4, Name: "get", File: "/etc/hosts", Lens: "Hosts.lns", Args: []string{"/1/ipaddr"}},
		{Line: 6, Name: "get", File: "/etc/ssh/sshd_config", Args: []string{"/Port"}},
	}
	if !reflect.DeepEqual(script.Commands, want) {
		t.Errorf("Commands = %#v, want %#v", script.Commands, want)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"set /1/ipaddr 127.0.0.1", []string{"set", "/1/ipaddr", "127.0.0.1"}},
		{"set /*[canonical = 'my host']/alias 'a b'", []string{"set", "/*[canonical = 'my host']/alias", "a b"}},
		{`set /1/#comment "hello world"`, []string{"set", "/1/#comment", "hello world"}},
		{"match /*[count(alias) > 1]", []string{"match", "/*[count(alias) > 1]"}},
		{`rm /a\ b`, []string{"rm", `/a\ b`}},
		{"  get\t/Port  ", []string{"get", "/Port"}},
	}

	for _, tt := range tests {
		got, err := SplitArgs(tt.line)
		if err != nil {
			t.Errorf("SplitArgs(%q) error = %v", tt.line, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}

	for _, line := range []string{"get /a]", "get /a[1", `set /a "x`, "   "} {
		if _, err := SplitArgs(line); err == nil {
			t.Errorf("SplitArgs(%q) expected error", line)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{`"mismatched'`, `"mismatched'`},
		{`"`, `"`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"set", Command{Name: "set", File: "/etc/hosts", Args: []string{"/1/ipaddr", "10.0.0.1"}}, false},
		{"print without path", Command{Name: "print", File: "/etc/hosts"}, false},
		{"print with two paths", Command{Name: "print", File: "/etc/hosts", Args: []string{"/1", "/2"}}, true},
		{"no file", Command{Name: "get", Args: []string{"/1"}}, true},
		{"unknown", Command{Name: "mv", File: "/etc/hosts", Args: []string{"/1", "/2"}}, true},
		{"ins before", Command{Name: "ins", File: "/etc/hosts", Args: []string{"alias", "before", "/1/alias"}}, false},
		{"defnode without value", Command{Name: "defnode", File: "/etc/hosts", Args: []string{"ip", "/3/ipaddr"}}, false},
		{"defnode with value", Command{Name: "defnode", File: "/etc/hosts", Args: []string{"ip", "/3/ipaddr", "10.0.0.1"}}, false},
		{"defnode without path", Command{Name: "defnode", File: "/etc/hosts", Args: []string{"ip"}}, true},
		{"ins sideways", Command{Name: "ins", File: "/etc/hosts", Args: []string{"alias", "under", "/1/alias"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cmd.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
