package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHeader_ParamOrder(t *testing.T) {
	h := NewHeader("Blob Build", "blobpack build", []Field{
		F("Config", "Blobs.yaml"),
		F("Profile", "dev"),
		F("Region", "FLASH"),
	}).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "BLOB BUILD") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	config := strings.Index(out, "Blobs.yaml")
	profile := strings.Index(out, "dev")
	region := strings.Index(out, "FLASH")
	if config < 0 || profile < config || region < profile {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Build complete", nil).AddDetail("Blobs", "3").AddDetail("Reserved", "0x100"),
			want:   []string{"SUCCESS", "Build complete", "Blobs:", "Reserved:"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Load failed", errors.New("connection refused"), []string{"Start OpenOCD"}),
			want:   []string{"FAILED", "Error: connection refused", "Troubleshooting:", "Start OpenOCD"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Nothing to load", []Field{F("Manifest", "target/BlobInfo.yaml")}),
			want:   []string{"WARNING", "Nothing to load", "target/BlobInfo.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("render missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestProgress_UpdateStep(t *testing.T) {
	p := NewProgress([]string{"Halting", "Writing a", "Writing b", "Resetting"}, 80)

	p.UpdateStep(1, StepRunning, "")
	if p.Current != 1 || p.Percent != 0 {
		t.Errorf("after start: current=%d percent=%v", p.Current, p.Percent)
	}
	p.UpdateStep(1, StepComplete, "")
	p.UpdateStep(2, StepSkipped, "")
	if p.Percent != 0.5 {
		t.Errorf("percent = %v, want 0.5", p.Percent)
	}
	p.UpdateStep(3, StepFailed, "verify failed")
	step, _ := p.Step(3)
	if step.Status != StepFailed || step.Message != "verify failed" {
		t.Errorf("step 3 = %+v", step)
	}

	// out of range is ignored
	p.UpdateStep(9, StepComplete, "")
	if _, ok := p.Step(9); ok {
		t.Error("Step(9) should not exist")
	}

	line := p.renderStep(step)
	if !strings.Contains(line, "[3/4]") || !strings.Contains(line, "Writing b") || !strings.Contains(line, "(verify failed)") {
		t.Errorf("step line = %q", line)
	}
	if bar := p.renderBar(); !strings.Contains(bar, "50%") || !strings.Contains(bar, "[1/4]") {
		t.Errorf("bar = %q", bar)
	}
}

func TestParseStepLine(t *testing.T) {
	tests := []struct {
		line   string
		number int
		total  int
		name   string
		ok     bool
	}{
		{"[1/4] Halting device...", 1, 4, "Halting device", true},
		{"  [2/4] Writing font (64 bytes at 0x100fe000)...\n", 2, 4, "Writing font (64 bytes at 0x100fe000)", true},
		{"[OK] font", 0, 0, "", false},
		{"[5/4] Too far", 0, 0, "", false},
		{"[a/b] nope", 0, 0, "", false},
		{"plain output", 0, 0, "", false},
	}

	for _, tt := range tests {
		number, total, name, ok := ParseStepLine(tt.line)
		if ok != tt.ok || number != tt.number || total != tt.total || name != tt.name {
			t.Errorf("ParseStepLine(%q) = %d, %d, %q, %v", tt.line, number, total, name, ok)
		}
	}
}

type stepEvent struct {
	number int
	status StepStatus
}

func TestStepWriter(t *testing.T) {
	var events []stepEvent
	w := NewStepWriter(func(n int, name string, status StepStatus, message string) {
		events = append(events, stepEvent{n, status})
	})

	// split across writes, including mid-line
	chunks := []string{
		"[1/4] Halting device...\n[2/4] Wri",
		"ting font...\nwrote 64 bytes\n[OK] font\n",
		"[3/4] Writing sound...\n",
	}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatal(err)
		}
	}
	w.Fail("verify failed")

	want := []stepEvent{
		{1, StepRunning},
		{1, StepComplete},
		{2, StepRunning},
		{2, StepComplete},
		{3, StepRunning},
		{3, StepFailed},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}

	// nothing left running
	w.Fail("again")
	if len(events) != len(want) {
		t.Errorf("Fail after finish emitted %v", events[len(want):])
	}
}

func TestRunner_Run(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:      "Blob Load",
		Command:    "blobpack load",
		Params:     []Field{F("Target", "localhost:3333")},
		TotalSteps: 2,
		StepNames:  []string{"Halting device", "Resetting device"},
		Output:     &out,
	})

	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Field, error) {
		onStep(1, "", StepRunning, "")
		onStep(1, "", StepComplete, "")
		onStep(2, "Resetting target", StepComplete, "")
		return []Field{F("Blobs", "2")}, nil
	})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	s := out.String()
	for _, want := range []string{"BLOB LOAD", "Halting device", "Resetting target", "Blob Load complete", "Duration:"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
	if step, _ := r.Progress().Step(2); step.Name != "Resetting target" {
		t.Errorf("step 2 name = %q", step.Name)
	}
}

func TestRunner_RunFailureShowsOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{Title: "Blob Load", Command: "blobpack load", Output: &out})
	r.SetRawOutput("Error: flash write failed\n")

	wantErr := errors.New("load failed")
	err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Field, error) {
		onStep(1, "ignored", StepRunning, "") // no step list configured
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run error = %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "Blob Load failed") || !strings.Contains(s, "flash write failed") {
		t.Errorf("output:\n%s", s)
	}
}

func TestOutput_Render(t *testing.T) {
	content := "line 1\nline 2\n[OK] font\nline 4\n"

	out := NewOutput("GDB Output", content).SetWidth(80).SetMaxLines(2).Render()
	if strings.Contains(out, "line 1") || !strings.Contains(out, "line 4") || !strings.Contains(out, "truncated") {
		t.Errorf("truncated render:\n%s", out)
	}

	out = NewOutput("GDB Output", content).FilterPrefix("[OK]").Render()
	if strings.Contains(out, "line") || !strings.Contains(out, "[OK] font") {
		t.Errorf("filtered render:\n%s", out)
	}
}

func TestTable_Render(t *testing.T) {
	tbl := NewTable("Name", "Placement", "Offset").
		AddRow("font", "flash", "0x0").
		AddMutedRow("logo", "inline", "-")

	out := tbl.Render()
	for _, want := range []string{"Name", "Placement", "font", "flash", "logo", "inline"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if !tbl.Muted[1] || tbl.Muted[0] {
		t.Errorf("muted rows = %v", tbl.Muted)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"I AGREE\n", true},
		{"  I AGREE  \n", true},
		{"I AGREE", true},
		{"yes\n", false},
		{"i agree\n", false},
		{"", false},
	}

	c := FlashWriteConfirmation("localhost:3333", 2)
	for _, tt := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(tt.input), &out, c); got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "FLASH WRITE OPERATION") {
			t.Errorf("warning box not shown for %q", tt.input)
		}
	}
}

func TestRenderOnce_NotTerminal(t *testing.T) {
	var out bytes.Buffer
	if err := RenderOnce(&out, "layout"); err != nil {
		t.Fatalf("RenderOnce error = %v", err)
	}
	if out.String() != "layout\n" {
		t.Errorf("RenderOnce wrote %q", out.String())
	}
}
