package diag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/diag"
	"github.com/havrel-lang/umlc/lang/token"
)

func TestNilListIsSafe(t *testing.T) {
	var l *diag.List
	require.NotPanics(t, func() { l.Add(token.Position{}, "", "boom") })
	require.Equal(t, 0, l.Len())
	require.Nil(t, l.Err())
	require.Nil(t, l.All())
}

func TestAddAndSort(t *testing.T) {
	var l diag.List
	l.Add(token.Position{Filename: "b.py", Line: 2}, "", "second")
	l.Add(token.Position{Filename: "a.py", Line: 1}, "", "first")
	l.Sort()

	all := l.All()
	require.Len(t, all, 2)
	require.Equal(t, "a.py", all[0].Pos.Filename)
	require.Equal(t, "b.py", all[1].Pos.Filename)
}

func TestErrNilWhenEmpty(t *testing.T) {
	var l diag.List
	require.Nil(t, l.Err())
	l.Add(token.Position{}, "", "oops")
	require.NotNil(t, l.Err())
}

func TestErrorStringIncludesSource(t *testing.T) {
	e := &diag.Error{Pos: token.Position{Filename: "f.py", Line: 1}, Msg: "bad thing", Source: "x = 1"}
	require.Contains(t, e.Error(), "bad thing")
	require.Contains(t, e.Error(), "x = 1")
}

func TestListErrorSummarizesMultiple(t *testing.T) {
	var l diag.List
	l.Add(token.Position{}, "", "first")
	l.Add(token.Position{}, "", "second")
	require.Contains(t, l.Error(), "and 1 more")
}
