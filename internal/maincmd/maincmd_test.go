package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/internal/maincmd"
)

const mainSrc = `{
	"source": "def main():\n    pass\n",
	"body": [{
		"kind": "FunctionDef", "lineno": 1, "col_offset": 0,
		"name": "main", "returns": "void",
		"args": {"args": [], "kwonlyargs": [], "kw_defaults": [], "defaults": []},
		"decorator_list": [],
		"body": []
	}]
}`

func TestCompileFileWritesImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.json")
	out := filepath.Join(dir, "out.um")
	require.NoError(t, os.WriteFile(src, []byte(mainSrc), 0o644))

	require.NoError(t, maincmd.CompileFile(src, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Zero(t, len(data)%4)
}

func TestCompileFileRejectsMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := maincmd.CompileFile(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.um"))
	require.Error(t, err)
}

func TestDisasmFilesPrintsMnemonics(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.json")
	img := filepath.Join(dir, "out.um")
	require.NoError(t, os.WriteFile(src, []byte(mainSrc), 0o644))
	require.NoError(t, maincmd.CompileFile(src, img))

	var out, errBuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errBuf}
	require.NoError(t, maincmd.DisasmFiles(stdio, img))
	require.Contains(t, out.String(), "loadprogram")
}
