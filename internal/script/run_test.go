package script

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hercules-team/augeasproviders/internal/format"
	_ "github.com/hercules-team/augeasproviders/internal/format/hosts"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

const hostsFile = "127.0.0.1\tlocalhost\n192.168.0.1\tweb www\n"

func newManager(t *testing.T, content string) (*session.Manager, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/etc/hosts", []byte(content), 0o644))
	return session.NewManager(fs), fs
}

func read(t *testing.T, fs billy.Filesystem) string {
	t.Helper()
	data, err := util.ReadFile(fs, "/etc/hosts")
	require.NoError(t, err)
	return string(data)
}

func TestRunEditsAndSaves(t *testing.T) {
	m, fs := newManager(t, hostsFile)
	s, err := Parse(`version 1
file /etc/hosts
set /3/ipaddr 10.0.0.1
set /3/canonical db
ins alias after /2/canonical
set /2/alias[1] w
get /3/canonical
print /3
`)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(m, s, &out))

	assert.Equal(t, "/3/canonical = db\n/3\n/3/ipaddr = '10.0.0.1'\n/3/canonical = 'db'\n", out.String())
	assert.Equal(t, "127.0.0.1\tlocalhost\n192.168.0.1\tweb w www\n10.0.0.1\tdb\n", read(t, fs))
}

func TestRunDefnode(t *testing.T) {
	m, fs := newManager(t, hostsFile)
	s, err := Parse(`version 1
file /etc/hosts
defnode ip /3/ipaddr 10.0.0.1
set /3/canonical db
defnode ip /3/ipaddr 10.9.9.9
get $ip
`)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(m, s, &out))
	assert.Equal(t, "defnode : /3/ipaddr created\n$ip = 10.0.0.1\n", out.String())
	assert.Equal(t, hostsFile+"10.0.0.1\tdb\n", read(t, fs))
}

func TestRunFailureLeavesFileUntouched(t *testing.T) {
	m, fs := newManager(t, hostsFile)
	s, err := Parse(`version 1
file /etc/hosts
set /1/ipaddr 10.9.9.9
set /*/ipaddr 10.0.0.1
`)
	require.NoError(t, err)

	err = Run(m, s, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4: set")
	assert.True(t, tree.IsAmbiguous(err))
	assert.Equal(t, hostsFile, read(t, fs))
	assert.Empty(t, m.Files())
}

func TestRunReadOnlyDoesNotWrite(t *testing.T) {
	m, fs := newManager(t, hostsFile)
	s, err := Parse(`version 1
file /etc/hosts
match /*[alias]
match /*[canonical = 'nobody']
rm /7
`)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(m, s, &out))
	assert.Equal(t, "/2 (none)\n  (no matches)\nrm : /7 0\n", out.String())
	assert.Equal(t, hostsFile, read(t, fs))
}

func TestExecGetErrors(t *testing.T) {
	lens, err := format.Lookup("Hosts.lns")
	require.NoError(t, err)
	st, err := tree.Load("/etc/hosts", []byte(hostsFile), lens)
	require.NoError(t, err)
	assert.True(t, tree.IsNotFound(Exec(st, Command{Name: "get", Args: []string{"/9"}}, &bytes.Buffer{})))
	assert.True(t, tree.IsAmbiguous(Exec(st, Command{Name: "get", Args: []string{"/*/ipaddr"}}, &bytes.Buffer{})))
	assert.Error(t, Exec(st, Command{Name: "bogus"}, &bytes.Buffer{}))
}
