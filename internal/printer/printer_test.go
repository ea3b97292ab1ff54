package printer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		p, _, errOut := newTestPrinter()
		err := p.Error("Slot taken", "Someone already holds 22:00.", nil)
		require.EqualError(t, err, "Slot taken")
		require.Contains(t, errOut.String(), "Someone already holds 22:00.")
	})

	t.Run("numbers multiple suggestions", func(t *testing.T) {
		p, _, errOut := newTestPrinter()
		err := p.Error("Slot taken", "", []string{"Pick another hour", "Omit the time"})
		require.EqualError(t, err, "Slot taken")
		require.Contains(t, errOut.String(), "Either:")
		require.Contains(t, errOut.String(), "  2. Omit the time")
	})
}

func TestSuccessPrefixesOnce(t *testing.T) {
	p, out, _ := newTestPrinter()
	p.Success("saved")
	p.Success("✓ already prefixed")
	require.Contains(t, out.String(), "✓ saved")
	require.NotContains(t, out.String(), "✓ ✓")
}

func TestTable(t *testing.T) {
	p, out, _ := newTestPrinter()
	tw := p.Table()
	fmt.Fprintln(tw, "a\tbb\tc")
	fmt.Fprintln(tw, "aaaa\tb\tc")
	require.NoError(t, tw.Flush())
	require.Equal(t, "a     bb  c\naaaa  b   c\n", out.String())
}
