package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/types"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want types.Kind
		ok   bool
	}{
		{"uint", types.Uint, true},
		{"array", types.Array, true},
		{"void", types.Void, true},
		{"bogus", types.Invalid, false},
		{"", types.Invalid, false},
	}
	for _, c := range cases {
		got, ok := types.ParseKind(c.in)
		require.Equal(t, c.ok, ok, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestValidInExpr(t *testing.T) {
	require.True(t, types.Uint.ValidInExpr())
	require.True(t, types.Array.ValidInExpr())
	require.False(t, types.Void.ValidInExpr())
	require.False(t, types.Invalid.ValidInExpr())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "uint", types.Uint.String())
	require.Contains(t, types.Kind(99).String(), "unknown")
}
