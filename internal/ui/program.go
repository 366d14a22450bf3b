package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// RunOnceModel is a Bubble Tea model that renders once and exits.
// This is used for "run once and exit" output rather than interactive TUIs.
type RunOnceModel struct {
	content string
	width   int
	height  int
}

// NewRunOnceModel creates a model that will render the given content and exit
func NewRunOnceModel(content string) RunOnceModel {
	width, height := GetTerminalSize()
	return RunOnceModel{
		content: content,
		width:   width,
		height:  height,
	}
}

// Init implements tea.Model
func (m RunOnceModel) Init() tea.Cmd {
	return tea.Quit
}

// Update implements tea.Model
func (m RunOnceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
	}
	return m, nil
}

// View implements tea.Model
func (m RunOnceModel) View() string {
	return m.content
}

// RenderOnce renders content using Bubble Tea's rendering engine and
// immediately exits. Output that is not a terminal gets the plain content.
func RenderOnce(w io.Writer, content string) error {
	if w == nil {
		w = os.Stdout
	}
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		_, err := fmt.Fprintln(w, content)
		return err
	}
	p := tea.NewProgram(NewRunOnceModel(content), tea.WithOutput(w), tea.WithInput(nil))
	_, err := p.Run()
	return err
}

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params []Field) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details []Field) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details []Field) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintOutput prints a raw output box
func (p *Printer) PrintOutput(title, output string) {
	p.Println(NewOutput(title, output).SetWidth(p.width).Render())
}

// PrintTable prints a table
func (p *Printer) PrintTable(t *Table) {
	p.Println(t.Render())
}
