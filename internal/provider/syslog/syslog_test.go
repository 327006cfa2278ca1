package syslog

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hercules-team/augeasproviders/internal/provider"
	"github.com/hercules-team/augeasproviders/internal/session"
)

const target = "/etc/syslog.conf"

const syslogConf = `# Log anything of level info or higher.
*.info;mail.none		/var/log/messages
mail.*			-/var/log/maillog
uucp,news.crit		/var/log/spooler
*.emerg			*
local2.*		@loghost
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

func newRule(facility, level, actionType, action string) *provider.Resource {
	r := provider.NewResource(Type, facility+"."+level+" "+action)
	r.Target = target
	r.SetAttr(Facility, provider.Scalar(facility))
	r.SetAttr(Level, provider.Scalar(level))
	r.SetAttr(ActionType, provider.Scalar(actionType))
	r.SetAttr(Action, provider.Scalar(action))
	return r
}

func TestInstances(t *testing.T) {
	_, m := setup(t, syslogConf)

	got, err := (&Provider{}).Instances(m, target)
	require.NoError(t, err)

	var names []string
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"*.info /var/log/messages",
		"mail.none /var/log/messages",
		"mail.* -/var/log/maillog",
		"uucp.crit /var/log/spooler",
		"news.crit /var/log/spooler",
		"*.emerg *",
		"local2.* @loghost",
	}, names)

	assert.Equal(t, "true", got[2].AttrString(NoSync))
	assert.Equal(t, "user", got[5].AttrString(ActionType))
	assert.Equal(t, "hostname", got[6].AttrString(ActionType))
	assert.Equal(t, "loghost", got[6].AttrString(Action))
}

func TestNoSyncToggle(t *testing.T) {
	const content = "*.info\t\t/var/log/messages\nmail.*\t-/var/log/maillog\n"
	fs, m := setup(t, content)
	p := &Provider{}
	r := newRule("*", "info", "file", "/var/log/messages")

	require.NoError(t, p.Set(m, r, NoSync, provider.Bool(true)))
	assert.Equal(t, "*.info\t-/var/log/messages\nmail.*\t-/var/log/maillog\n", read(t, fs))
	v, err := p.Get(m, r, NoSync)
	require.NoError(t, err)
	assert.Equal(t, "true", v.String())

	require.NoError(t, p.Set(m, r, NoSync, provider.Bool(false)))
	assert.Equal(t, content, read(t, fs))
	v, err = p.Get(m, r, NoSync)
	require.NoError(t, err)
	assert.Equal(t, "false", v.String())
}

func TestNoSyncOnlyForFiles(t *testing.T) {
	_, m := setup(t, syslogConf)
	p := &Provider{}

	err := p.Set(m, newRule("local2", "*", "hostname", "loghost"), NoSync, provider.Bool(true))
	assert.Error(t, err)

	r := newRule("local3", "*", "hostname", "loghost").SetAttr(NoSync, provider.Bool(true))
	assert.Error(t, p.Create(m, r))
}

func TestCreateThenRead(t *testing.T) {
	fs, m := setup(t, syslogConf)
	p := &Provider{}

	file := newRule("local0", "debug", "file", "/var/log/local0").SetAttr(NoSync, provider.Bool(true))
	require.NoError(t, p.Create(m, file))
	require.NoError(t, p.Create(m, newRule("authpriv", "*", "hostname", "central")))
	require.NoError(t, p.Create(m, newRule("kern", "crit", "program", "/usr/bin/alert")))

	assert.Equal(t, syslogConf+
		"local0.debug\t-/var/log/local0\n"+
		"authpriv.*\t@central\n"+
		"kern.crit\t|/usr/bin/alert\n", read(t, fs))

	got, err := p.Instances(session.NewManager(fs), target)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "local0.debug -/var/log/local0", got[7].Name)
	assert.Equal(t, "true", got[7].AttrString(NoSync))

	current, err := provider.Prefetch(m, p, []*provider.Resource{file, newRule("local0", "debug", "file", "/elsewhere")})
	require.NoError(t, err)
	assert.NotNil(t, current[0])
	assert.Nil(t, current[1])
}

func TestHostnameWithPort(t *testing.T) {
	fs, m := setup(t, syslogConf)
	p := &Provider{}
	r := newRule("local5", "*", "hostname", "loghost:514")

	require.NoError(t, p.Create(m, r))
	assert.Equal(t, syslogConf+"local5.*\t@loghost:514\n", read(t, fs))

	fresh := session.NewManager(fs)
	ok, err := p.Exists(fresh, r)
	require.NoError(t, err)
	assert.True(t, ok)

	// The bare host and the host on another port are different rules.
	for _, action := range []string{"loghost", "loghost:515"} {
		ok, err = p.Exists(fresh, newRule("local5", "*", "hostname", action))
		require.NoError(t, err)
		assert.False(t, ok, action)
	}
	ok, err = p.Exists(fresh, newRule("local2", "*", "hostname", "loghost:514"))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := p.Instances(fresh, target)
	require.NoError(t, err)
	last := got[len(got)-1]
	assert.Equal(t, "local5.* @loghost:514", last.Name)
	assert.Equal(t, "loghost:514", last.AttrString(Action))

	current, err := provider.Prefetch(fresh, p, []*provider.Resource{r})
	require.NoError(t, err)
	assert.NotNil(t, current[0])

	require.NoError(t, p.Destroy(fresh, r))
	assert.Equal(t, syslogConf, read(t, fs))
}

func TestDestroyIsIdempotent(t *testing.T) {
	fs, m := setup(t, syslogConf)
	p := &Provider{}
	r := newRule("mail", "*", "file", "/var/log/maillog")

	ok, err := p.Exists(m, r)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Destroy(m, r))
	require.NoError(t, p.Destroy(m, r))
	assert.NotContains(t, read(t, fs), "maillog")

	ok, err = p.Exists(m, r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValuesWithQuotes(t *testing.T) {
	_, m := setup(t, syslogConf)
	ok, err := (&Provider{}).Exists(m, newRule("mail", "*", "file", `/var/log/it's"here`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidRule(t *testing.T) {
	_, m := setup(t, syslogConf)
	p := &Provider{}

	_, err := p.Exists(m, newRule("mail", "*", "socket", "/dev/log"))
	assert.Error(t, err)

	_, err = p.Exists(m, newRule("", "*", "file", "/x"))
	assert.Error(t, err)

	_, err = p.Get(m, newRule("mail", "*", "file", "/var/log/maillog"), "level")
	assert.Error(t, err)
}
