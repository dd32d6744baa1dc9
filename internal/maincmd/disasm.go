package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/havrel-lang/umlc/lang/asm"
)

// Disasm implements the "disasm" debugging command: it prints the
// human-readable disassembly (lang/asm.Dasm) of a compiled UM program image.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return printError(stdio, DisasmFiles(stdio, args...))
}

func DisasmFiles(stdio mainer.Stdio, files ...string) error {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		words, err := asm.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", f, err)
		}
		if _, err := stdio.Stdout.Write(asm.Dasm(words)); err != nil {
			return err
		}
	}
	return nil
}
