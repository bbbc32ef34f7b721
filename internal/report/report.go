package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/oshokin/fwsync/internal/domain/firmware"
	"github.com/oshokin/fwsync/internal/service/synchronizer"
)

// ANSI color codes for status labels.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

const (
	nameWidth   = 24
	statusWidth = 16
	ruleWidth   = 52
)

// IsColorEnabled reports whether f is a terminal and NO_COLOR is not set.
func IsColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes reports to one destination.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a Printer. Color is used only when requested.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Records prints one row per diff record followed by the summary line.
func (p *Printer) Records(records firmware.Records) {
	p.printf("%-*s %-*s %s\n", nameWidth, "Firmware", statusWidth, "Status", "Size")
	p.printf("%s\n", strings.Repeat("─", ruleWidth))

	for _, record := range records {
		size := "-"
		if record.Classification != firmware.NotInPackage {
			size = humanize.IBytes(uint64(record.Size))
		}

		label := fmt.Sprintf("%-*s", statusWidth, record.Classification)
		p.printf("%-*s %s %s\n", nameWidth, record.Name, p.paint(label, statusColor(record.Classification)), size)
	}

	p.printf("\n%s\n", Summary(records))
}

// Summary returns the aggregate counts of a diff.
func Summary(records firmware.Records) string {
	return fmt.Sprintf("%d files: %d new, %d changed, %d unchanged, %d not in package",
		len(records),
		records.Count(firmware.New),
		records.Count(firmware.Changed),
		records.Count(firmware.Unchanged),
		records.Count(firmware.NotInPackage),
	)
}

// Sync prints what the synchronizer did.
func (p *Printer) Sync(result *synchronizer.Result) {
	p.printf("Backup:    %s\n", result.BackupPath)
	p.printf("Installed: %d file(s)\n", len(result.Installed))
	p.printf("Removed:   %d irrelevant file(s), %s freed\n", len(result.Removed), humanize.IBytes(uint64(result.BytesFreed)))

	switch {
	case result.RebuildErr != nil:
		p.printf("Rebuild:   %s\n", p.paint("failed: "+result.RebuildErr.Error(), colorYellow))
	case result.RebuildTriggered:
		p.printf("Rebuild:   done\n")
	default:
		p.printf("Rebuild:   not needed\n")
	}

	for _, failure := range result.Failures {
		p.printf("%s\n", p.paint("error: "+failure.Error(), colorRed))
	}
}

// Outcome prints the terminal status line.
func (p *Printer) Outcome(outcome firmware.Outcome) {
	color := colorGreen
	if outcome == firmware.OutcomePending {
		color = colorYellow
	}

	p.printf("%s\n", p.paint(outcome.String(), color))
}

// Targets prints the device table.
func (p *Printer) Targets(devices []string, resolve func(string) (string, error)) {
	p.printf("%-*s %s\n", statusWidth, "Device", "Install path")
	p.printf("%s\n", strings.Repeat("─", ruleWidth))

	for _, device := range devices {
		path, err := resolve(device)
		if err != nil {
			path = err.Error()
		}

		p.printf("%-*s %s\n", statusWidth, device, path)
	}
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) paint(text, color string) string {
	if !p.color {
		return text
	}

	return color + text + colorReset
}

func statusColor(c firmware.Classification) string {
	switch c {
	case firmware.New:
		return colorGreen
	case firmware.Changed:
		return colorYellow
	default:
		return colorGray
	}
}
