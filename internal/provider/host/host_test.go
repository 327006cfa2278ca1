package host

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

const hostsFile = `# Static table lookup for hostnames.
127.0.0.1	localhost localhost.localdomain
192.168.0.1	web www # frontend
`

const target = "/etc/hosts"

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

func resource(name string) *provider.Resource {
	r := provider.NewResource(Type, name)
	r.Target = target
	return r
}

func TestInstances(t *testing.T) {
	_, m := setup(t, hostsFile)
	p := &Provider{}

	got, err := p.Instances(m, target)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "localhost", got[0].Name)
	assert.Equal(t, "127.0.0.1", got[0].AttrString(IP))
	aliases, _ := got[0].Attr(Aliases)
	assert.Equal(t, []string{"localhost.localdomain"}, aliases.Strings())
	_, hasComment := got[0].Attr(Comment)
	assert.False(t, hasComment)

	assert.Equal(t, "web", got[1].Name)
	assert.Equal(t, "frontend", got[1].AttrString(Comment))
	assert.Equal(t, []string{"ip", "host_aliases", "comment"}, got[1].Attrs.Keys())
}

func TestCreateThenRead(t *testing.T) {
	fs, m := setup(t, hostsFile)
	p := &Provider{}

	r := resource("db").
		SetAttr(IP, provider.Scalar("10.0.0.5")).
		SetAttr(Aliases, provider.List("b", "a")).
		SetAttr(Comment, provider.Scalar("database"))
	require.NoError(t, p.Create(m, r))

	assert.Equal(t, hostsFile+"10.0.0.5\tdb b a # database\n", read(t, fs))

	got, err := p.Instances(session.NewManager(fs), target)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "db", got[2].Name)
	assert.Equal(t, r.Attrs.Keys(), got[2].Attrs.Keys())
	for _, k := range r.Attrs.Keys() {
		want, _ := r.Attr(k)
		have, _ := got[2].Attr(k)
		assert.True(t, want.Equal(have), k)
	}

	ok, err := p.Exists(m, resource("db"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateInEmptyFile(t *testing.T) {
	fs := memfs.New()
	m := session.NewManager(fs)
	p := &Provider{}

	require.NoError(t, p.Create(m, resource("localhost").SetAttr(IP, provider.Scalar("127.0.0.1"))))
	assert.Equal(t, "127.0.0.1\tlocalhost\n", read(t, fs))
}

func TestCreateRequiresIP(t *testing.T) {
	_, m := setup(t, hostsFile)
	err := (&Provider{}).Create(m, resource("nope"))
	assert.Error(t, err)
}

func TestDestroyIsIdempotent(t *testing.T) {
	fs, m := setup(t, hostsFile)
	p := &Provider{}

	require.NoError(t, p.Destroy(m, resource("web")))
	require.NoError(t, p.Destroy(m, resource("web")))

	assert.Equal(t, "# Static table lookup for hostnames.\n127.0.0.1\tlocalhost localhost.localdomain\n", read(t, fs))

	ok, err := p.Exists(m, resource("web"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetAliasesKeepsOrder(t *testing.T) {
	fs, m := setup(t, hostsFile)
	p := &Provider{}
	r := resource("web")

	require.NoError(t, p.Set(m, r, Aliases, provider.List("b", "a")))
	v, err := p.Get(m, r, Aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, v.Strings())
	assert.Contains(t, read(t, fs), "192.168.0.1\tweb b a # frontend\n")

	require.NoError(t, p.Set(m, r, Aliases, provider.List()))
	assert.Contains(t, read(t, fs), "192.168.0.1\tweb # frontend\n")
}

func TestSetIPAndComment(t *testing.T) {
	fs, m := setup(t, hostsFile)
	p := &Provider{}
	r := resource("web")

	require.NoError(t, p.Set(m, r, IP, provider.Scalar("192.168.0.2")))
	require.NoError(t, p.Set(m, r, Comment, provider.Scalar("")))

	v, err := p.Get(m, r, Comment)
	require.NoError(t, err)
	assert.Equal(t, "", v.String())
	v, err = p.Get(m, r, IP)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.2", v.String())

	require.NoError(t, p.Set(m, resource("localhost"), Comment, provider.Scalar("loopback")))

	assert.Equal(t, `# Static table lookup for hostnames.
127.0.0.1	localhost localhost.localdomain # loopback
192.168.0.2	web www
`, read(t, fs))
}

func TestNamesAreNotSpliced(t *testing.T) {
	_, m := setup(t, hostsFile)
	p := &Provider{}

	for _, name := range []string{`it's`, `a"b`, `x' or '1'='1`} {
		ok, err := p.Exists(m, resource(name))
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}

func TestUnknownProperty(t *testing.T) {
	_, m := setup(t, hostsFile)
	_, err := (&Provider{}).Get(m, resource("web"), "mtu")
	assert.Error(t, err)
}

func TestPrefetch(t *testing.T) {
	_, m := setup(t, hostsFile)
	p := &Provider{}

	current, err := provider.Prefetch(m, p, []*provider.Resource{resource("web"), resource("db"), resource("localhost")})
	require.NoError(t, err)
	require.Len(t, current, 3)
	require.NotNil(t, current[0])
	assert.Equal(t, "192.168.0.1", current[0].AttrString(IP))
	assert.Nil(t, current[1])
	assert.NotNil(t, current[2])
}

func TestRegistered(t *testing.T) {
	p, err := provider.Lookup(Type)
	require.NoError(t, err)
	assert.Equal(t, "/etc/hosts", p.DefaultTarget())
	assert.Equal(t, "Hosts.lns", p.DefaultLens())
}
