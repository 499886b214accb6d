package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// newTable returns a table writer for w. Terminals get box-drawing
// borders, anything else plain ASCII.
func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if isTerminal(w) {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// formatDelta renders a row count change as +N or -N.
func formatDelta(n int64) string {
	if n >= 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
