// Package cli implements the operator subcommands of the garage binary.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phoenix-garage/garage/internal/legacy"
)

// ExitWarnings is returned by a dry run that found rows needing coercion or rejection.
const ExitWarnings = 10

// LegacyImportOptions configures the import-legacy command.
type LegacyImportOptions struct {
	Source       string
	SourceReader io.Reader
	Mode         legacy.Mode
	JSONOutput   bool
	Verbose      bool
	Stdout       io.Writer
	Stderr       io.Writer
	Stdin        io.Reader
	Confirm      func(io.Reader, io.Writer) (bool, error)
}

// Importer runs a legacy import.
type Importer interface {
	Run(ctx context.Context, wb legacy.Workbook, mode legacy.Mode) (legacy.Summary, error)
}

// LegacyCLI wires the import command to an importer.
type LegacyCLI struct {
	importer Importer
}

// NewLegacyCLI constructs LegacyCLI.
func NewLegacyCLI(importer Importer) *LegacyCLI {
	return &LegacyCLI{importer: importer}
}

// ImportCommand reads the workbook, previews it and, in apply mode, writes it after
// confirmation. Exit codes: 0 ok, 1 failure, ExitWarnings for a dry run with findings.
func (c *LegacyCLI) ImportCommand(ctx context.Context, opts LegacyImportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Mode == "" {
		opts.Mode = legacy.ModeDry
	}
	mode := legacy.Mode(strings.ToLower(string(opts.Mode)))
	switch mode {
	case legacy.ModeDry, legacy.ModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "import-legacy: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return 1
	}

	data, err := readSource(opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: %v\n", err)
		return 1
	}
	wb, err := legacy.ReadWorkbook(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: %v\n", err)
		return 1
	}

	preview, err := c.importer.Run(ctx, wb, legacy.ModeDry)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: %v\n", err)
		return 1
	}
	if mode == legacy.ModeDry {
		if err := writeImportOutput(opts, preview); err != nil {
			fmt.Fprintf(opts.Stderr, "import-legacy: %v\n", err)
			return 1
		}
		if !preview.Clean() {
			return ExitWarnings
		}
		return 0
	}

	if !opts.JSONOutput {
		renderImportHuman(opts.Stdout, preview, opts.Verbose)
	}
	confirm := opts.Confirm
	if confirm == nil {
		confirm = defaultImportConfirm
	}
	ok, err := confirm(opts.Stdin, opts.Stdout)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: confirmation failed: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(opts.Stderr, "import-legacy: cancelled by user")
		return 1
	}

	applied, err := c.importer.Run(ctx, wb, legacy.ModeApply)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: apply failed: %v\n", err)
		return 1
	}
	if err := writeImportOutput(opts, applied); err != nil {
		fmt.Fprintf(opts.Stderr, "import-legacy: %v\n", err)
		return 1
	}
	return 0
}

func readSource(opts LegacyImportOptions) ([]byte, error) {
	switch {
	case opts.SourceReader != nil:
		return io.ReadAll(opts.SourceReader)
	case opts.Source == "-":
		return io.ReadAll(opts.Stdin)
	case strings.TrimSpace(opts.Source) == "":
		return nil, errors.New("--file is required")
	default:
		return os.ReadFile(opts.Source)
	}
}

func writeImportOutput(opts LegacyImportOptions, summary legacy.Summary) error {
	if opts.JSONOutput {
		return json.NewEncoder(opts.Stdout).Encode(summary)
	}
	renderImportHuman(opts.Stdout, summary, opts.Verbose)
	return nil
}

func renderImportHuman(out io.Writer, summary legacy.Summary, verbose bool) {
	fmt.Fprintf(out, "Legacy import (%s)\n", summary.Mode)
	line := func(name string, s legacy.SheetSummary) {
		fmt.Fprintf(out, " %-9s rows %d, valid %d, rejected %d", name, s.Rows, s.Valid, s.Rejected)
		if summary.Mode == legacy.ModeApply {
			fmt.Fprintf(out, ", inserted %d, existing %d", s.Inserted, s.Existing)
		}
		fmt.Fprintln(out)
	}
	line("parts", summary.Parts)
	line("jobs", summary.Jobs)
	line("invoice", summary.Invoice)
	fmt.Fprintf(out, " line items %d\n", summary.LineItems)
	if len(summary.Errors) > 0 {
		fmt.Fprintf(out, "%d row(s) rejected:\n", len(summary.Errors))
		for _, e := range summary.Errors {
			fmt.Fprintf(out, " - %s\n", e)
		}
	}
	if len(summary.Warnings) == 0 {
		return
	}
	fmt.Fprintf(out, "%d warning(s)\n", len(summary.Warnings))
	if verbose {
		for _, w := range summary.Warnings {
			fmt.Fprintf(out, " - %s\n", w)
		}
	}
}

func defaultImportConfirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Type YES to import these records: ")
	reader := bufio.NewReader(in)
	text, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimSpace(text) == "YES", nil
}
