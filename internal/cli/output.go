package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// Printer writes command results to out and status lines to errOut. Results
// stay uncolored so they can be piped.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	color  bool
}

// NewPrinter creates a printer. Status lines are colored only when errOut is
// a terminal.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut, color: isTerminal(errOut)}
}

// Result prints a raw line on out.
func (p *Printer) Result(line string) {
	fmt.Fprintln(p.out, line)
}

// JSON prints v indented on out.
func (p *Printer) JSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success message
func (p *Printer) Success(message string) {
	p.status("✓", ColorGreen, message)
}

// Error prints an error message
func (p *Printer) Error(message string) {
	p.status("✗", ColorRed, message)
}

// Warning prints a warning message
func (p *Printer) Warning(message string) {
	p.status("⚠", ColorYellow, message)
}

// Info prints an info message
func (p *Printer) Info(message string) {
	p.status("ℹ", ColorBlue, message)
}

func (p *Printer) status(symbol, color, message string) {
	if p.color {
		fmt.Fprintf(p.errOut, "%s%s%s %s\n", color, symbol, ColorReset, message)
		return
	}
	fmt.Fprintf(p.errOut, "%s %s\n", symbol, message)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
