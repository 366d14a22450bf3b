package scripts

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/muurk/blobpack/internal/manifest"
)

//go:embed templates/load.gdb.tmpl
var loadTemplate string

// ErrUnquotablePath is returned for blob files whose path cannot be passed
// to an OpenOCD monitor command.
var ErrUnquotablePath = errors.New("path cannot be quoted for OpenOCD")

var (
	stepPattern = regexp.MustCompile(`^\[(\d+)/(\d+)\]\s+(.+?)\s*(?:\.\.\.)?$`)
	okPattern   = regexp.MustCompile(`^\[OK\]\s+(\S+)`)
)

type loadBlob struct {
	Step  int
	Name  string
	File  string
	Start string
	Size  uint32
}

// LoadScript programs every blob of a manifest into flash and verifies it:
// halt, then write_image and verify_image per blob in address order, then
// reset.
type LoadScript struct {
	openocdHost string
	openocdPort int
	chip        string
	noReset     bool
	blobs       []manifest.Named
}

// NewLoadScript creates the load script for m. With noReset the target is
// left halted afterwards.
func NewLoadScript(openocdHost string, openocdPort int, m *manifest.Manifest, noReset bool) (*LoadScript, error) {
	blobs := m.Entries()
	for _, b := range blobs {
		if strings.ContainsAny(b.Filename, "{}\r\n") {
			return nil, fmt.Errorf("blob %s: %w: %q", b.Name, ErrUnquotablePath, b.Filename)
		}
	}
	return &LoadScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		chip:        m.Probe.Chip,
		noReset:     noReset,
		blobs:       blobs,
	}, nil
}

func (s *LoadScript) Name() string {
	return "load"
}

func (s *LoadScript) Template() string {
	return loadTemplate
}

// TotalSteps is the number of progress markers the script echoes: halt,
// one per blob, reset.
func (s *LoadScript) TotalSteps() int {
	return len(s.blobs) + 2
}

// StepNames returns the marker text of every step, in order.
func (s *LoadScript) StepNames() []string {
	names := make([]string, 0, s.TotalSteps())
	names = append(names, "Halting device")
	for _, b := range s.blobs {
		names = append(names, blobStepName(b))
	}
	return append(names, "Resetting device")
}

func blobStepName(b manifest.Named) string {
	return fmt.Sprintf("Writing %s (%d bytes at %s)", b.Name, b.Size, b.Start)
}

func (s *LoadScript) Params() map[string]interface{} {
	blobs := make([]loadBlob, len(s.blobs))
	for i, b := range s.blobs {
		blobs[i] = loadBlob{
			Step: i + 2,
			Name: b.Name,
			// Tcl brace quoting keeps spaces and brackets literal
			File:  "{" + b.Filename + "}",
			Start: b.Start.String(),
			Size:  b.Size,
		}
	}
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"Chip":        s.chip,
		"NoReset":     s.noReset,
		"TotalSteps":  s.TotalSteps(),
		"Blobs":       blobs,
	}
}

// Parse maps the echoed markers to steps. A blob step succeeded only when
// its [OK] marker follows, which GDB prints after verify_image passed; a
// failing monitor command aborts the batch script before that.
func (s *LoadScript) Parse(output string) (*Result, error) {
	result := NewResult()

	lines := strings.Split(output, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	ok := make(map[string]bool)
	succeeded := false
	var markers []int // line index of each step marker
	for i, line := range lines {
		switch {
		case stepPattern.MatchString(line):
			markers = append(markers, i)
		case okPattern.MatchString(line):
			ok[okPattern.FindStringSubmatch(line)[1]] = true
		case strings.HasPrefix(line, "[SUCCESS]"):
			succeeded = true
		}
	}

	var loaded []string
	for n, idx := range markers {
		m := stepPattern.FindStringSubmatch(lines[idx])
		number, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		step := Step{Number: number, Total: total, Name: m[3], Status: StatusSuccess}

		reached := n+1 < len(markers) || succeeded
		if b, isBlob := s.blobAt(number); isBlob {
			reached = ok[b.Name]
			if reached {
				loaded = append(loaded, b.Name)
				result.BytesWritten += int(b.Size)
			}
		}
		if !reached {
			step.Status = StatusFailed
			step.Message = errorLine(lines[idx+1:])
		}
		result.AddStep(step)
	}

	result.SetData("loaded", loaded)
	result.Success = succeeded && len(loaded) == len(s.blobs)
	if !result.Success {
		msg := "load did not complete"
		for _, st := range result.Steps {
			if st.Status == StatusFailed {
				msg = st.Name + " failed"
				if st.Message != "" {
					msg += ": " + st.Message
				}
				break
			}
		}
		if len(markers) == 0 {
			if line := errorLine(lines); line != "" {
				msg += ": " + line
			}
		}
		result.Error = errors.New(msg)
	}
	return result, nil
}

func (s *LoadScript) blobAt(step int) (manifest.Named, bool) {
	i := step - 2
	if i < 0 || i >= len(s.blobs) {
		return manifest.Named{}, false
	}
	return s.blobs[i], true
}

// Streaming is on so progress markers reach the caller while flash is
// being written.
func (s *LoadScript) Streaming() bool {
	return true
}

var errorHints = []string{"Error", "error:", "mismatch", "differ", "Connection refused", "Connection timed out", "failed"}

// errorLine returns the first line that looks like a GDB or OpenOCD error.
func errorLine(lines []string) string {
	for _, line := range lines {
		for _, hint := range errorHints {
			if strings.Contains(line, hint) {
				return line
			}
		}
	}
	return ""
}
