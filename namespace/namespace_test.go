package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeSplitRoundTrip(t *testing.T) {
	registry := NewRegistry()

	ns, err := registry.Register("users")
	require.NoError(t, err)
	assert.Equal(t, "users", ns.Prefix())

	for _, suffix := range []string{"alice", "", "ünïcødé", "with:colons"} {
		key, err := ns.Make(suffix)
		require.NoError(t, err)
		assert.Equal(t, append([]byte("users\x00"), suffix...), key)

		prefix, got, err := Split(key)
		require.NoError(t, err)
		assert.Equal(t, "users", prefix)
		assert.Equal(t, suffix, got)

		strKey, err := ns.Key(suffix)
		require.NoError(t, err)
		assert.Equal(t, string(key), strKey)
	}
}

func TestInvalidComponents(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Register("bad\x00prefix")
	assert.ErrorIs(t, err, ErrInvalidComponent)

	_, err = registry.Register(string([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, ErrInvalidComponent)
	assert.Equal(t, 0, registry.Len())

	ns, err := registry.Register("ok")
	require.NoError(t, err)

	_, err = ns.Make("a\x00b")
	assert.ErrorIs(t, err, ErrInvalidComponent)

	_, err = ns.Key(string([]byte{0xc3}))
	assert.ErrorIs(t, err, ErrInvalidComponent)
}

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry()

	first, err := registry.Register("orders")
	require.NoError(t, err)

	_, err = registry.Register("orders")
	assert.ErrorIs(t, err, ErrPrefixInUse)

	found, ok := registry.Lookup("orders")
	assert.True(t, ok)
	assert.Same(t, first, found)

	_, ok = registry.Lookup("missing")
	assert.False(t, ok)

	registry.Release("orders")
	_, ok = registry.Lookup("orders")
	assert.False(t, ok)

	second, err := registry.Register("orders")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	_, err = registry.Register("invoices")
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	registry.Reset()
	assert.Equal(t, 0, registry.Len())
	_, err = registry.Register("invoices")
	assert.NoError(t, err)
}

func TestContains(t *testing.T) {
	registry := NewRegistry()

	users, err := registry.Register("users")
	require.NoError(t, err)
	user, err := registry.Register("user")
	require.NoError(t, err)

	key, err := users.Make("alice")
	require.NoError(t, err)

	assert.True(t, users.Contains(key))
	assert.False(t, user.Contains(key))
	assert.False(t, users.Contains([]byte("users:alice")))
}

func TestSplitMalformed(t *testing.T) {
	for _, key := range [][]byte{
		[]byte("no-separator"),
		[]byte("a\x00b\x00c"),
		{'a', Separator, 0xff},
		{0xc3, Separator, 'b'},
	} {
		_, _, err := Split(key)
		assert.ErrorIs(t, err, ErrMalformedKey, "key %q", key)
	}
}
