package sshd

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lens "github.com/hercules-team/augeasproviders/internal/format/sshd"
	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

const target = "/etc/ssh/sshd_config"

const fullConfig = `# $OpenBSD: sshd_config,v 1.80 2008/07/02 02:24:18 djm Exp $
Port 22
ListenAddress 0.0.0.0
ListenAddress ::
AllowUsers alice bob
Subsystem sftp /usr/libexec/openssh/sftp-server

Match User anoncvs Host *.example.net
  X11Forwarding no
  AllowTcpForwarding no
Match all
  PasswordAuthentication yes
`

func setup(t *testing.T, content string) (billy.Filesystem, *session.Manager) {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, target, []byte(content), 0o644))
	return fs, session.NewManager(fs)
}

func read(t *testing.T, fs billy.Filesystem) string {
	t.Helper()
	data, err := util.ReadFile(fs, target)
	require.NoError(t, err)
	return string(data)
}

func setting(key, condition string, values ...string) *provider.Resource {
	r := provider.NewResource(Type, key)
	r.Target = target
	if condition != "" {
		r.SetAttr(Condition, provider.Scalar(condition))
	}
	if values != nil {
		r.SetAttr(Value, provider.List(values...))
	}
	return r
}

func TestInstances(t *testing.T) {
	_, m := setup(t, fullConfig)

	got, err := (&Provider{}).Instances(m, target)
	require.NoError(t, err)

	type inst struct {
		name  string
		value []string
	}
	var have []inst
	for _, r := range got {
		v, _ := r.Attr(Value)
		have = append(have, inst{r.Name, v.Strings()})
	}
	assert.Equal(t, []inst{
		{"Port", []string{"22"}},
		{"ListenAddress", []string{"0.0.0.0", "::"}},
		{"AllowUsers", []string{"alice", "bob"}},
		{"X11Forwarding when User anoncvs Host *.example.net", []string{"no"}},
		{"AllowTcpForwarding when User anoncvs Host *.example.net", []string{"no"}},
		{"PasswordAuthentication when all", []string{"yes"}},
	}, have)
	assert.Equal(t, "X11Forwarding", got[3].AttrString(Key))
	assert.Equal(t, "User anoncvs Host *.example.net", got[3].AttrString(Condition))
}

func TestExistsMatchExactness(t *testing.T) {
	_, m := setup(t, fullConfig)
	p := &Provider{}

	tests := []struct {
		condition string
		want      bool
	}{
		{"User anoncvs Host *.example.net", true},
		{"Host *.example.net User anoncvs", true},
		{"User anoncvs", false},
		{"User anoncvs Host *.example.net Group x", false},
		{"", false},
	}
	for _, tt := range tests {
		ok, err := p.Exists(m, setting("X11Forwarding", tt.condition))
		require.NoError(t, err, tt.condition)
		assert.Equal(t, tt.want, ok, tt.condition)
	}

	ok, err := p.Exists(m, setting("PasswordAuthentication", "all"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateInNewMatchBlockDoesNotTouchSuperset(t *testing.T) {
	fs, m := setup(t, "PermitRootLogin no\nMatch User root Host *\n  X11Forwarding no\n")
	p := &Provider{}

	require.NoError(t, p.Create(m, setting("X11Forwarding", "User root", "yes")))
	assert.Equal(t, `PermitRootLogin no
Match User root Host *
  X11Forwarding no
Match User root
  X11Forwarding yes
`, read(t, fs))

	v, err := p.Get(m, setting("X11Forwarding", "Host * User root"), Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"no"}, v.Strings())
	v, err = p.Get(m, setting("X11Forwarding", "User root"), Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes"}, v.Strings())
}

func TestCreateMatchBlockInEmptyFile(t *testing.T) {
	fs, m := setup(t, "")

	require.NoError(t, (&Provider{}).Create(m, setting("X11Forwarding", "User anoncvs Address 10.0.0.0/8", "no")))
	assert.Equal(t, "Match User anoncvs Address 10.0.0.0/8\n  X11Forwarding no\n", read(t, fs))
}

func TestCreatePlacement(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		resource *provider.Resource
		want     string
	}{
		{
			name:     "append without Match blocks",
			content:  "Port 22\n",
			resource: setting("PermitRootLogin", "", "no"),
			want:     "Port 22\nPermitRootLogin no\n",
		},
		{
			name:     "before the first Match block",
			content:  "Port 22\nMatch User x\n  X11Forwarding no\n",
			resource: setting("PermitRootLogin", "", "no"),
			want:     "Port 22\nPermitRootLogin no\nMatch User x\n  X11Forwarding no\n",
		},
		{
			name:     "after the last occurrence",
			content:  "ListenAddress 0.0.0.0\nPort 22\nMatch User x\n  X11Forwarding no\n",
			resource: setting("ListenAddress", "", "0.0.0.0", "::"),
			want:     "ListenAddress 0.0.0.0\nListenAddress ::\nPort 22\nMatch User x\n  X11Forwarding no\n",
		},
		{
			name:     "after a comment naming the key",
			content:  "#AllowUsersFoo bar\n#AllowUsers alice\nPort 22\nMatch User x\n  X11Forwarding no\n",
			resource: setting("AllowUsers", "", "bob", "carol"),
			want:     "#AllowUsersFoo bar\n#AllowUsers alice\nAllowUsers bob carol\nPort 22\nMatch User x\n  X11Forwarding no\n",
		},
		{
			name:     "port before listen address",
			content:  "ListenAddress 0.0.0.0\nPermitRootLogin no\n",
			resource: setting("Port", "", "2222"),
			want:     "Port 2222\nListenAddress 0.0.0.0\nPermitRootLogin no\n",
		},
		{
			name:     "inside an existing Match block",
			content:  "Port 22\nMatch User x\n  X11Forwarding no\n",
			resource: setting("AllowTcpForwarding", "User x", "no"),
			want:     "Port 22\nMatch User x\n  X11Forwarding no\n  AllowTcpForwarding no\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, m := setup(t, tt.content)
			require.NoError(t, (&Provider{}).Create(m, tt.resource))
			assert.Equal(t, tt.want, read(t, fs))
		})
	}
}

func TestSetRepeatedKey(t *testing.T) {
	fs, m := setup(t, "ListenAddress 0.0.0.0\nPort 22\n")
	p := &Provider{}
	r := setting("ListenAddress", "")

	require.NoError(t, p.Set(m, r, Value, provider.List("10.0.0.1", "10.0.0.2")))
	assert.Equal(t, "ListenAddress 10.0.0.1\nListenAddress 10.0.0.2\nPort 22\n", read(t, fs))

	require.NoError(t, p.Set(m, r, Value, provider.List("10.0.0.3")))
	assert.Equal(t, "ListenAddress 10.0.0.3\nPort 22\n", read(t, fs))
}

func TestSetListKey(t *testing.T) {
	fs, m := setup(t, "AllowUsers alice\nPort 22\nAllowUsers bob\n")
	p := &Provider{}
	r := setting("AllowUsers", "")

	v, err := p.Get(m, r, Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, v.Strings())

	require.NoError(t, p.Set(m, r, Value, provider.List("carol", "dave")))
	assert.Equal(t, "AllowUsers carol dave\nPort 22\n", read(t, fs))

	require.NoError(t, p.Set(m, r, Value, provider.List()))
	assert.Equal(t, "Port 22\n", read(t, fs))
}

func TestValuesAcceptsBothShapes(t *testing.T) {
	scalar := tree.NewLeaf("AllowUsers", "alice")
	multi := tree.NewNode("AllowUsers", tree.NewLeaf("1", "bob"), tree.NewLeaf("2", "carol"))

	assert.Equal(t, scalarShape, shapeOf(scalar))
	assert.Equal(t, multiShape, shapeOf(multi))
	assert.Equal(t, []string{"alice", "bob", "carol"}, values([]*tree.Node{scalar, multi}))
}

func TestDestroyPrunesEmptyMatch(t *testing.T) {
	fs, m := setup(t, "Port 22\nMatch User x\n  X11Forwarding no\nMatch User y\n  X11Forwarding yes\n")
	p := &Provider{}
	r := setting("X11Forwarding", "User x")

	require.NoError(t, p.Destroy(m, r))
	require.NoError(t, p.Destroy(m, r))
	assert.Equal(t, "Port 22\nMatch User y\n  X11Forwarding yes\n", read(t, fs))

	ok, err := p.Exists(m, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDestroyPrunesMatchWithOnlyComments(t *testing.T) {
	fs, m := setup(t, "Port 22\r\nMatch User bob\r\n  # keep\r\n  X11Forwarding no\r\nMatch User y\r\n  # note\r\n  X11Forwarding yes\r\n")
	p := &Provider{}

	require.NoError(t, p.Destroy(m, setting("X11Forwarding", "User bob")))
	assert.Equal(t, "Port 22\r\nMatch User y\r\n  # note\r\n  X11Forwarding yes\r\n", read(t, fs))
}

func TestCreateThenRead(t *testing.T) {
	fs, m := setup(t, fullConfig)
	p := &Provider{}

	r := setting("ClientAliveInterval", "User anoncvs Host *.example.net", "30")
	require.NoError(t, p.Create(m, r))

	got, err := p.Instances(session.NewManager(fs), target)
	require.NoError(t, err)
	id, err := p.Identity(r)
	require.NoError(t, err)

	var found *provider.Resource
	for _, inst := range got {
		if instID, _ := p.Identity(inst); instID == id {
			found = inst
		}
	}
	require.NotNil(t, found)
	v, _ := found.Attr(Value)
	assert.Equal(t, []string{"30"}, v.Strings())
}

func TestPrefetchMatchesConditionSets(t *testing.T) {
	_, m := setup(t, fullConfig)
	p := &Provider{}

	current, err := provider.Prefetch(m, p, []*provider.Resource{
		setting("Port", ""),
		setting("X11Forwarding", "Host *.example.net User anoncvs"),
		setting("X11Forwarding", ""),
	})
	require.NoError(t, err)
	require.NotNil(t, current[0])
	require.NotNil(t, current[1])
	assert.Equal(t, "X11Forwarding when User anoncvs Host *.example.net", current[1].Name)
	assert.Nil(t, current[2])
}

func TestInvalidResources(t *testing.T) {
	_, m := setup(t, fullConfig)
	p := &Provider{}

	_, err := p.Exists(m, setting("Match", ""))
	assert.Error(t, err)

	_, err = p.Exists(m, setting("Port", "User"))
	assert.Error(t, err)

	err = p.Create(m, setting("Port", ""))
	assert.Error(t, err)
}

func TestParseCondition(t *testing.T) {
	cond, err := ParseCondition("User root  Host *")
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Host"}, cond.Keys())

	cond, err = ParseCondition("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, cond.Keys())

	_, err = ParseCondition("User root Host")
	assert.Error(t, err)
}

func TestSubsystemCreateInEmptyFile(t *testing.T) {
	fs := memfs.New()
	m := session.NewManager(fs)
	p := &SubsystemProvider{}

	r := provider.NewResource(SubsystemType, "sftp").SetAttr(Command, provider.Scalar("/usr/lib/openssh/sftp-server"))
	r.Target = target
	require.NoError(t, p.Create(m, r))

	assert.Equal(t, "Subsystem sftp /usr/lib/openssh/sftp-server\n", read(t, fs))

	s, err := tree.Open(fs, target, lens.New())
	require.NoError(t, err)
	v, err := s.Get("/Subsystem/sftp")
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/openssh/sftp-server", v)
}

func TestSubsystemCreateBeforeMatch(t *testing.T) {
	content := "Port 22\nSubsystem sftp /usr/libexec/openssh/sftp-server\nMatch User anoncvs\n  X11Forwarding no\n"
	fs, m := setup(t, content)
	p := &SubsystemProvider{}

	r := provider.NewResource(SubsystemType, "mysub").SetAttr(Command, provider.Scalar("/bin/bash"))
	r.Target = target
	require.NoError(t, p.Create(m, r))

	assert.Equal(t, `Port 22
Subsystem sftp /usr/libexec/openssh/sftp-server
Subsystem mysub /bin/bash
Match User anoncvs
  X11Forwarding no
`, read(t, fs))
}

func TestSubsystemLifecycle(t *testing.T) {
	fs, m := setup(t, fullConfig)
	p := &SubsystemProvider{}

	got, err := p.Instances(m, target)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sftp", got[0].Name)
	assert.Equal(t, "/usr/libexec/openssh/sftp-server", got[0].AttrString(Command))

	r := provider.NewResource(SubsystemType, "sftp")
	r.Target = target

	require.NoError(t, p.Set(m, r, Command, provider.Scalar("/bin/bash")))
	v, err := p.Get(m, r, Command)
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", v.String())
	assert.Contains(t, read(t, fs), "Subsystem sftp /bin/bash\n")

	require.NoError(t, p.Destroy(m, r))
	require.NoError(t, p.Destroy(m, r))
	assert.NotContains(t, read(t, fs), "Subsystem")

	ok, err := p.Exists(m, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBrokenFile(t *testing.T) {
	_, m := setup(t, "Port 22\nMatch User\n")
	p := &SubsystemProvider{}

	r := provider.NewResource(SubsystemType, "sftp").SetAttr(Command, provider.Scalar("/bin/bash"))
	r.Target = target
	err := p.Create(m, r)
	require.Error(t, err)
	assert.True(t, tree.IsParse(err))
	assert.Contains(t, err.Error(), target)
}
