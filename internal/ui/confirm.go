package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase must be typed to confirm a dangerous operation.
const ConfirmPhrase = "I AGREE"

// Confirmation describes a dangerous operation awaiting confirmation.
type Confirmation struct {
	Title      string
	Warnings   []string
	Disclaimer string
}

// Confirm displays a warning box on out and reads a line from in. It
// returns true only if the user typed ConfirmPhrase.
func Confirm(in io.Reader, out io.Writer, c Confirmation) bool {
	width := GetTerminalWidth()

	titleLine := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title))
	lines := []string{"", titleLine, ""}

	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range c.Warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if c.Disclaimer != "" {
		disclaimerStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(c.Disclaimer), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	_, _ = fmt.Fprintln(out, cancelStyle.Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// FlashWriteConfirmation describes programming count blobs through target.
func FlashWriteConfirmation(target string, count int) Confirmation {
	return Confirmation{
		Title: "FLASH WRITE OPERATION",
		Warnings: []string{
			fmt.Sprintf("This will erase and write %d flash region(s) through %s", count, target),
			"Flash the firmware built alongside this manifest, or blob checksums will not match",
			"Ensure OpenOCD has a stable connection to the probe",
			"Do not interrupt the operation once started",
		},
		Disclaimer: "Flash sectors overlapping a blob are erased in full. Anything else " +
			"stored in those sectors is lost.",
	}
}
