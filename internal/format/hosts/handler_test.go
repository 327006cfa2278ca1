package hosts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hercules-team/augeasproviders/internal/format"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

const fullHosts = `# Some comment
127.0.0.1	localhost localhost.localdomain
   192.168.0.1  test   test2 # with a comment
#
::1 ip6-localhost ip6-loopback

fe80::1%lo0	localhost
172.16.0.1 nospace`

func TestRoundTrip(t *testing.T) {
	h := New()
	for _, content := range []string{fullHosts, "", "\n\n", fullHosts + "\n"} {
		root, err := h.Get([]byte(content))
		require.NoError(t, err)
		out, err := h.Put(root)
		require.NoError(t, err)
		assert.Equal(t, content, string(out))
	}
}

func TestGet(t *testing.T) {
	s, err := tree.Load("/etc/hosts", []byte(fullHosts), New())
	require.NoError(t, err)

	entries, err := s.Match("/*[canonical]")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "1", entries[0].Label())
	assert.Equal(t, "5", entries[4].Label())

	v, err := s.Get("/2/canonical")
	require.NoError(t, err)
	assert.Equal(t, "test", v)

	v, err = s.Get("/2/#comment")
	require.NoError(t, err)
	assert.Equal(t, "with a comment", v)

	aliases, err := s.Match("/1/alias")
	require.NoError(t, err)
	require.Len(t, aliases, 1)

	v, err = s.Get("/#comment")
	require.NoError(t, err)
	assert.Equal(t, "Some comment", v)
}

func TestPutRegeneratesOnlyChangedLines(t *testing.T) {
	s, err := tree.Load("/etc/hosts", []byte(fullHosts), New())
	require.NoError(t, err)

	require.NoError(t, s.Set("/2/ipaddr", "10.0.0.2"))
	_, err = s.Remove("/1/alias")
	require.NoError(t, err)
	require.NoError(t, s.Set("/6/ipaddr", "10.0.0.9"))
	require.NoError(t, s.Set("/6/canonical", "new"))
	require.NoError(t, s.Set("/6/alias", "n"))

	out, err := s.Text()
	require.NoError(t, err)
	assert.Equal(t, `# Some comment
127.0.0.1	localhost
10.0.0.2	test test2 # with a comment
#
::1 ip6-localhost ip6-loopback

fe80::1%lo0	localhost
172.16.0.1 nospace
10.0.0.9	new n
`, string(out))
}

func TestGetErrors(t *testing.T) {
	h := New()
	for _, content := range []string{
		"127.0.0.1\n",
		"garbage line here\n",
		"not-an-ip host\n",
	} {
		_, err := h.Get([]byte(content))
		var perr *format.ParseError
		assert.ErrorAs(t, err, &perr, content)
	}
}

func TestPutErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(root *tree.Node)
	}{
		{"missing canonical", func(root *tree.Node) {
			root.Append(tree.NewNode("1", tree.NewLeaf("ipaddr", "10.0.0.1")))
		}},
		{"wrong order", func(root *tree.Node) {
			root.Append(tree.NewNode("1", tree.NewLeaf("canonical", "a"), tree.NewLeaf("ipaddr", "10.0.0.1")))
		}},
		{"bad address", func(root *tree.Node) {
			root.Append(tree.NewNode("1", tree.NewLeaf("ipaddr", "x"), tree.NewLeaf("canonical", "a")))
		}},
		{"alias with space", func(root *tree.Node) {
			root.Append(tree.NewNode("1", tree.NewLeaf("ipaddr", "10.0.0.1"), tree.NewLeaf("canonical", "a"), tree.NewLeaf("alias", "b c")))
		}},
		{"alias after comment", func(root *tree.Node) {
			root.Append(tree.NewNode("1", tree.NewLeaf("ipaddr", "10.0.0.1"), tree.NewLeaf("canonical", "a"),
				tree.NewLeaf("#comment", "c"), tree.NewLeaf("alias", "b")))
		}},
		{"non numeric label", func(root *tree.Node) {
			root.Append(tree.NewNode("x", tree.NewLeaf("ipaddr", "10.0.0.1"), tree.NewLeaf("canonical", "a")))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tree.NewNode("")
			tt.build(root)
			_, err := New().Put(root)
			var perr *format.PutError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestRegistered(t *testing.T) {
	h, err := format.Lookup("Hosts.lns")
	require.NoError(t, err)
	assert.Equal(t, Name, h.Name())

	h, err = format.ForFile("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, Name, h.Name())
}
