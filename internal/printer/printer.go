// Package printer writes colored, human-oriented CLI output.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes to an output and an error stream. Colors follow
// fatih/color's detection; NO_COLOR disables them.
type Printer struct {
	out io.Writer
	err io.Writer
}

func New(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{out: out, err: errOut}
}

func (p *Printer) Out() io.Writer { return p.out }

// Success prints a green line with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprintln(p.out, msg)
}

func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Warning prints a yellow line with a warning prefix.
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprintln(p.out, msg)
}

func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintln(p.out, "→ "+fmt.Sprintf(format, a...))
}

func (p *Printer) Heading(format string, a ...any) {
	cyan.Fprintln(p.out, fmt.Sprintf(format, a...))
}

func (p *Printer) Faint(format string, a ...any) {
	faint.Fprintln(p.out, fmt.Sprintf(format, a...))
}

// Error prints title, explanation and suggestions to the error stream and
// returns an error carrying only the title, for cobra.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	red.Fprintf(p.err, "%s\n", title)
	if explanation != "" {
		fmt.Fprintf(p.err, "\n%s\n", explanation)
	}
	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.err, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.err, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// Table returns a tab-aligned writer on the output; call Flush when done.
func (p *Printer) Table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
}
