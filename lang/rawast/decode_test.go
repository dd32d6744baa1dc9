package rawast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/rawast"
)

func TestDecodeFunctionDef(t *testing.T) {
	doc := `{
		"source": "def main():\n    return 1\n",
		"body": [
			{
				"kind": "FunctionDef",
				"lineno": 1,
				"col_offset": 0,
				"name": "main",
				"args": {"args": [], "kwonlyargs": [], "kw_defaults": [], "defaults": []},
				"returns": "int",
				"decorator_list": [],
				"body": [
					{
						"kind": "Return",
						"lineno": 2,
						"col_offset": 4,
						"value": {"kind": "Number", "lineno": 2, "col_offset": 11, "n": 1}
					}
				]
			}
		]
	}`

	mod, source, err := rawast.Decode([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "def main():\n    return 1\n", source)
	require.Len(t, mod.Body, 1)

	fn, ok := mod.Body[0].(*rawast.FunctionDef)
	require.True(t, ok)
	require.Equal(t, "main", fn.Name)
	require.Equal(t, "int", fn.Returns)
	require.Len(t, fn.Body, 1)

	ret, ok := fn.Body[0].(*rawast.Return)
	require.True(t, ok)
	num, ok := ret.Value.(*rawast.Number)
	require.True(t, ok)
	require.Equal(t, int64(1), num.N)
}

func TestDecodeBinOpAndSubscript(t *testing.T) {
	doc := `{"body": [
		{
			"kind": "Expr",
			"lineno": 1,
			"col_offset": 0,
			"value": {
				"kind": "BinOp",
				"lineno": 1,
				"col_offset": 0,
				"op": "Add",
				"left": {"kind": "Subscript", "lineno": 1, "col_offset": 0,
					"value": {"kind": "Name", "lineno": 1, "col_offset": 0, "id": "a", "ctx": "Load"},
					"slice": {"kind": "Number", "lineno": 1, "col_offset": 0, "n": 0}},
				"right": {"kind": "Number", "lineno": 1, "col_offset": 0, "n": 2}
			}
		}
	]}`

	mod, _, err := rawast.Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	stmt, ok := mod.Body[0].(*rawast.ExprStmt)
	require.True(t, ok)
	bin, ok := stmt.Value.(*rawast.BinOp)
	require.True(t, ok)
	require.Equal(t, rawast.Add, bin.Op)
	_, ok = bin.Left.(*rawast.Subscript)
	require.True(t, ok)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, _, err := rawast.Decode([]byte(`{"body": [{"kind": "Frobnicate"}]}`))
	require.ErrorContains(t, err, "unknown statement kind")
}

func TestDecodeRejectsForWithNonNameTarget(t *testing.T) {
	doc := `{"body": [{
		"kind": "For", "lineno": 1, "col_offset": 0,
		"target": {"kind": "Number", "lineno": 1, "col_offset": 0, "n": 1},
		"iter": {"kind": "Name", "lineno": 1, "col_offset": 0, "id": "xs", "ctx": "Load"},
		"body": [], "orelse": []
	}]}`
	_, _, err := rawast.Decode([]byte(doc))
	require.ErrorContains(t, err, "must be a Name")
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, _, err := rawast.Decode([]byte(`not json`))
	require.Error(t, err)
}
