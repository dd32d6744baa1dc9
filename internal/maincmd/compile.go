package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/havrel-lang/umlc/lang/compiler"
)

// Compile implements the "compile" command: spec.md §6's
// "compiler SOURCE [OUT], default output a.um. Exit 0 success, non-zero on
// any diagnostic."
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src := args[0]
	out := "a.um"
	if len(args) > 1 {
		out = args[1]
	}
	return printError(stdio, CompileFile(src, out))
}

// CompileFile reads src (a JSON-encoded rawast.Decode envelope), compiles
// it, and writes the resulting UM program image to out.
func CompileFile(src, out string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	image, err := compiler.CompileJSON(src, data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, image, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return nil
}
