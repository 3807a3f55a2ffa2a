package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/danieljhkim/preval/internal/engine"
	"github.com/danieljhkim/preval/internal/resolver"
)

var (
	// fatih/color disables these automatically when stdout is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// Tokens accepted by the output format strings.
const (
	tokenPackageCSV   = "{pkgcsv}"
	tokenPackageCount = "{pkgcount}"
)

// printBuildReport prints the packages to build with the reason each was
// selected, padded to the longest package name.
func printBuildReport(w io.Writer, result *engine.EvalResult) {
	if result.DiffCode != 0 {
		_, _ = warningColor.Fprintf(w, "⚠ Failed to get changed files (code %d). Building all packages.\n", result.DiffCode)
	}

	_, _ = headerColor.Fprintln(w, "Need to Build:")
	if len(result.Packages) == 0 {
		_, _ = dimColor.Fprintln(w, "None")
		return
	}

	width := 0
	for _, p := range result.Packages {
		if len(p.Name) > width {
			width = len(p.Name)
		}
	}
	for _, p := range result.Packages {
		_, _ = policyColor(p.Policy).Fprintf(w, "%-*s", width, p.Name)
		fmt.Fprintf(w, "  Reason: %s\n", p.Reason)
	}
}

func policyColor(p resolver.Policy) *color.Color {
	switch p {
	case resolver.PolicyDiffFailed:
		return warningColor
	case resolver.PolicyPlatformFilter:
		return infoColor
	default:
		return successColor
	}
}

// expandPackageCSV substitutes {pkgcsv} in format.
func expandPackageCSV(format string, result *engine.EvalResult) string {
	return strings.ReplaceAll(format, tokenPackageCSV, result.CSV())
}

// expandPackageCount substitutes {pkgcount} in format.
func expandPackageCount(format string, result *engine.EvalResult) string {
	return strings.ReplaceAll(format, tokenPackageCount, strconv.Itoa(len(result.Packages)))
}

// printFileTable prints a classified file list as an aligned table.
func printFileTable(w io.Writer, files []engine.FileInfo) {
	if len(files) == 0 {
		_, _ = dimColor.Fprintln(w, "  No files")
		return
	}

	headers := []string{"FILE", "PACKAGE", "SURFACE"}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		pkg := f.Package
		if pkg == "" {
			pkg = "-"
		}
		rows = append(rows, []string{f.Path, pkg, surfaceLabel(f)})
	}

	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	fmt.Fprint(w, "  ")
	for i, header := range headers {
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		_, _ = headerColor.Fprintf(w, "%-*s", colWidths[i], header)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "  ")
	for i, width := range colWidths {
		if i > 0 {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		fmt.Fprint(w, "  ")
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			fmt.Fprintf(w, "%-*s", colWidths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func surfaceLabel(f engine.FileInfo) string {
	switch {
	case f.Outside:
		return "outside"
	case f.Package == "":
		return "-"
	case f.Public:
		return "public"
	default:
		return "private"
	}
}
