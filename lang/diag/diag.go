// Package diag collects compiler diagnostics. Its List follows the shape of
// go/scanner.ErrorList (Add/Sort/Err/Error), but Error is its own type rather
// than an alias of go/scanner.Error: it uses this module's token.Position and
// carries one extra field, the offending source line.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/havrel-lang/umlc/lang/token"
)

// Error is a single compile-time diagnostic: a position, a message, and
// (when available) the source line it refers to.
type Error struct {
	Pos    token.Position
	Msg    string
	Source string // offending source line; empty if unavailable
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Pos, e.Msg)
	if e.Source != "" {
		fmt.Fprintf(&b, "\n\t%s", e.Source)
	}
	return b.String()
}

// List accumulates diagnostics across a compilation. A nil *List is valid
// and silently drops Add calls, mirroring go/scanner.ErrorList's tolerance
// of a zero value.
type List struct {
	errs []*Error
}

// Add appends a diagnostic at pos with the given formatted message.
func (l *List) Add(pos token.Position, source, format string, args ...any) {
	if l == nil {
		return
	}
	l.errs = append(l.errs, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...), Source: source})
}

// Len reports the number of diagnostics collected so far.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.errs)
}

// Sort orders diagnostics by filename, then line, then column.
func (l *List) Sort() {
	sort.SliceStable(l.errs, func(i, j int) bool {
		a, b := l.errs[i].Pos, l.errs[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Err returns the list as an error, or nil if it is empty.
func (l *List) Err() error {
	if l == nil || len(l.errs) == 0 {
		return nil
	}
	return l
}

// All returns every collected diagnostic, in insertion order.
func (l *List) All() []*Error {
	if l == nil {
		return nil
	}
	return l.errs
}

func (l *List) Error() string {
	switch len(l.errs) {
	case 0:
		return "no errors"
	case 1:
		return l.errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (and %d more)", l.errs[0], len(l.errs)-1)
	return b.String()
}
