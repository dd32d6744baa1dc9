package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/token"
)

func TestIsValid(t *testing.T) {
	require.False(t, (token.Position{}).IsValid())
	require.True(t, (token.Position{Line: 1}).IsValid())
}

func TestString(t *testing.T) {
	require.Equal(t, "<input>", (token.Position{}).String())
	require.Equal(t, "a.py:3", (token.Position{Filename: "a.py", Line: 3}).String())
	require.Equal(t, "a.py:3:5", (token.Position{Filename: "a.py", Line: 3, Column: 5}).String())
}
