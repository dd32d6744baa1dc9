package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/builtin"
	"github.com/havrel-lang/umlc/lang/types"
)

func TestLookupKnownBuiltins(t *testing.T) {
	cases := []struct {
		name    string
		args    []types.Kind
		ret     types.Kind
		readLen bool
	}{
		{"putchar", []types.Kind{types.Uint}, types.Void, false},
		{"len", []types.Kind{types.Array}, types.Uint, true},
		{"alloc", []types.Kind{types.Uint}, types.Array, false},
		{"free", []types.Kind{types.Array}, types.Void, false},
		{"exit", nil, types.Void, false},
	}
	for _, c := range cases {
		e, ok := builtin.Lookup(c.name)
		require.True(t, ok, c.name)
		require.Equal(t, c.args, e.Args, c.name)
		require.Equal(t, c.ret, e.Return, c.name)
		require.Equal(t, c.readLen, e.ReadLen, c.name)
	}
}

func TestLookupUnknownBuiltin(t *testing.T) {
	_, ok := builtin.Lookup("frobnicate")
	require.False(t, ok)
}
