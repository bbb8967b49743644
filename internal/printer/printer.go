package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	cyan    = color.New(color.FgCyan)
	blue    = color.New(color.FgBlue)
	magenta = color.New(color.FgMagenta)
)

// Printer writes human-facing CLI output. Messages go to Out, formatted
// errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New creates a printer over the given writers.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

var std = New(os.Stdout, os.Stderr)

// Success prints a success message in green with a checkmark prefix
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints an informational message in the default color
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Out, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Point prints one point event: the blueprint, the point and who drew it.
func (p *Printer) Point(key blueprint.Key, pt blueprint.Point, origin string) {
	blue.Fprintf(p.Out, "• %-24s", key)
	fmt.Fprintf(p.Out, " %s", pt)
	if origin != "" {
		fmt.Fprintf(p.Out, "  (%s)", origin)
	}
	fmt.Fprintln(p.Out)
}

// Polygon prints one polygon event.
func (p *Printer) Polygon(key blueprint.Key, points []blueprint.Point) {
	magenta.Fprintf(p.Out, "◆ %-24s", key)
	parts := make([]string, len(points))
	for i, pt := range points {
		parts[i] = pt.String()
	}
	fmt.Fprintf(p.Out, " polygon of %d: %s\n", len(points), strings.Join(parts, " "))
}

// Error prints a formatted error with title, explanation, and suggestions to
// Err and returns a simple error for Cobra
func (p *Printer) Error(title string, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with context details listed between the
// explanation and the suggestions, sorted by key.
func (p *Printer) ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintln(p.Err)
		if len(suggestions) == 1 {
			fmt.Fprintf(p.Err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.Err, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(p.Err, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// the title alone; the details were already printed
	return fmt.Errorf("%s", title)
}

// Default returns the printer writing to stdout and stderr.
func Default() *Printer { return std }

// Success prints to the default printer.
func Success(format string, a ...any) { std.Success(format, a...) }

// Info prints to the default printer.
func Info(format string, a ...any) { std.Info(format, a...) }

// Warning prints to the default printer.
func Warning(format string, a ...any) { std.Warning(format, a...) }

// Step prints to the default printer.
func Step(format string, a ...any) { std.Step(format, a...) }

// Error prints to the default printer.
func Error(title string, explanation string, suggestions []string) error {
	return std.Error(title, explanation, suggestions)
}

// ErrorWithContext prints to the default printer.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	return std.ErrorWithContext(title, explanation, context, suggestions)
}
