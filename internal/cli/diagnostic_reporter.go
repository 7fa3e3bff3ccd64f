package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/toyz/cortex/internal/errors"
)

// DiagnosticReporter prints generation failures with their location and hints.
type DiagnosticReporter struct {
	out     io.Writer
	verbose bool
	colors  bool
}

// NewDiagnosticReporter creates a reporter writing to out.
func NewDiagnosticReporter(out io.Writer, verbose, colors bool) *DiagnosticReporter {
	return &DiagnosticReporter{out: out, verbose: verbose, colors: colors}
}

// ReportWarning prints a single warning line.
func (r *DiagnosticReporter) ReportWarning(format string, args ...any) {
	r.paint(color.FgYellow, color.Bold).Fprint(r.out, "! ")
	fmt.Fprintf(r.out, format+"\n", args...)
}

// ReportError prints every error combined into err.
func (r *DiagnosticReporter) ReportError(err error) {
	if err == nil {
		return
	}
	list := errors.List(err)

	title := "Code generation failed"
	if len(list) > 1 {
		title = fmt.Sprintf("Code generation failed with %d errors", len(list))
	}
	fmt.Fprintln(r.out)
	r.paint(color.FgRed, color.Bold).Fprintln(r.out, title)
	fmt.Fprintln(r.out)

	for _, e := range list {
		var ce errors.CortexError
		if errors.As(e, &ce) {
			r.reportCortexError(ce)
		} else {
			r.paint(color.FgRed).Fprint(r.out, "error: ")
			fmt.Fprintln(r.out, e.Error())
		}
		fmt.Fprintln(r.out)
	}
}

func (r *DiagnosticReporter) reportCortexError(ce errors.CortexError) {
	r.paint(color.FgRed).Fprintf(r.out, "%s: ", errorTitle(ce.ErrorCode()))
	fmt.Fprintln(r.out, ce.Error())

	if r.verbose {
		ctx := ce.Context()
		keys := make([]string, 0, len(ctx))
		for k := range ctx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, "  %s: %v\n", k, ctx[k])
		}
	}

	for _, s := range ce.Suggestions() {
		r.paint(color.FgCyan).Fprint(r.out, "  hint: ")
		fmt.Fprintln(r.out, s)
	}
}

func (r *DiagnosticReporter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if r.colors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func errorTitle(code errors.ErrorCode) string {
	switch code {
	case errors.SyntaxErrorCode:
		return "annotation syntax error"
	case errors.ValidationErrorCode:
		return "validation error"
	case errors.SchemaErrorCode:
		return "schema error"
	case errors.DiscoveryErrorCode:
		return "discovery error"
	case errors.GenerationErrorCode:
		return "generation error"
	case errors.TemplateErrorCode:
		return "template error"
	case errors.FileSystemErrorCode:
		return "file system error"
	case errors.ConfigurationErrorCode:
		return "configuration error"
	default:
		return "error"
	}
}
