package pipeline

import (
	"crypto/sha1"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/blobpack/internal/blob"
	"github.com/muurk/blobpack/internal/codegen"
	"github.com/muurk/blobpack/internal/linkscript"
	"github.com/muurk/blobpack/internal/manifest"
)

const testScript = `MEMORY
{
    BOOT2 : ORIGIN = 0x10000000, LENGTH = 0x100
    FLASH : ORIGIN = 0x10000100, LENGTH = 2048K - 0x100
    RAM   : ORIGIN = 0x20000000, LENGTH = 256K
}
`

const testBlobs = `files:
  font:
    filename: assets/font.bin
    inline: false
  logo:
    filename: assets/logo.bin
    inline: true
  sound:
    filename: assets/sound.bin
probe:
  chip: RP2040
`

type fixture struct {
	dir    string
	config Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	write := func(name string, data []byte) {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("memory.x", []byte(testScript))
	write("Blobs.yaml", []byte(testBlobs))
	write("assets/font.bin", make([]byte, 0x1000))
	write("assets/logo.bin", []byte("logo bytes"))
	write("assets/sound.bin", []byte(strings.Repeat("s", 0x234)))

	cfg := DefaultConfig()
	cfg.BlobConfig = filepath.Join(dir, "Blobs.yaml")
	cfg.LinkScript = filepath.Join(dir, "memory.x")
	cfg.OutDir = filepath.Join(dir, "out", "blobs")
	cfg.TargetDir = filepath.Join(dir, "target")
	return &fixture{dir: dir, config: cfg}
}

func TestBuild(t *testing.T) {
	f := newFixture(t)
	res, err := NewBuilder(f.config, nil).Build()
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	// dev profile: font and sound are loaded, logo is forced inline
	if res.Layout.Total != 0x1000+0x234 {
		t.Errorf("Total = 0x%x, want 0x1234", res.Layout.Total)
	}
	wantBase := uint32(0x10000100 + 2048*1024 - 0x100 - 0x1234)
	if res.Base != wantBase {
		t.Errorf("Base = 0x%x, want 0x%x", res.Base, wantBase)
	}
	if res.Base+res.Layout.Total != 0x10000000+2048*1024 {
		t.Errorf("reserved space does not end at the region end")
	}

	script, err := os.ReadFile(filepath.Join(f.config.OutDir, "memory.x"))
	if err != nil {
		t.Fatalf("patched script missing: %v", err)
	}
	m, err := linkscript.FindRegion(string(script), "FLASH")
	if err != nil {
		t.Fatalf("FindRegion on patched script error = %v", err)
	}
	if m.Region.Length != 2048*1024-0x100-0x1234 {
		t.Errorf("patched FLASH length = 0x%x", m.Region.Length)
	}

	src, err := os.ReadFile(filepath.Join(f.config.OutDir, "blobs.go"))
	if err != nil {
		t.Fatalf("generated source missing: %v", err)
	}
	for _, want := range []string{"func Font() []byte", "func Logo() []byte", "func Sound() []byte", "//go:embed blobdata/logo.bin"} {
		if !strings.Contains(string(src), want) {
			t.Errorf("generated source missing %q", want)
		}
	}

	embedded, err := os.ReadFile(filepath.Join(f.config.OutDir, "blobdata", "logo.bin"))
	if err != nil || string(embedded) != "logo bytes" {
		t.Errorf("inline copy = %q, %v", embedded, err)
	}

	got, err := manifest.Load(manifest.Path(f.config.TargetDir))
	if err != nil {
		t.Fatalf("manifest.Load error = %v", err)
	}
	if len(got.Info) != 2 {
		t.Fatalf("manifest has %d entries, want 2", len(got.Info))
	}
	if e := got.Info["font"]; uint32(e.Start) != wantBase || e.Size != 0x1000 {
		t.Errorf("font entry = %+v", e)
	}
	if e := got.Info["sound"]; uint32(e.Start) != wantBase+0x1000 {
		t.Errorf("sound entry = %+v", e)
	}
	if e := got.Info["sound"]; e.Checksum != blob.Checksum(sha1.Sum([]byte(strings.Repeat("s", 0x234)))) {
		t.Errorf("sound checksum = %s", e.Checksum)
	}
	if got.Probe.Chip != "RP2040" {
		t.Errorf("probe chip = %q", got.Probe.Chip)
	}

	if len(res.Files) != 4 {
		t.Errorf("Files = %v, want 4 artifacts", res.Files)
	}
}

func TestBuild_ReleaseProfile(t *testing.T) {
	f := newFixture(t)
	f.config.Profile = blob.ProfileRelease
	f.config.Chip = "RP2350"

	res, err := NewBuilder(f.config, nil).Build()
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	// font is pinned out of the binary, sound now defaults to inline
	if res.Layout.Total != 0x1000 {
		t.Errorf("Total = 0x%x, want 0x1000", res.Layout.Total)
	}
	if _, err := os.Stat(filepath.Join(f.config.OutDir, "blobdata", "sound.bin")); err != nil {
		t.Errorf("sound not embedded: %v", err)
	}
	if res.Manifest.Probe.Chip != "RP2350" {
		t.Errorf("chip override ignored: %q", res.Manifest.Probe.Chip)
	}
}

func TestBuild_FailureLeavesNoArtifacts(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *fixture)
		wantStage string
		wantErr   error
	}{
		{
			name: "region too small",
			mutate: func(f *fixture) {
				f.config.Region = "BOOT2"
			},
			wantStage: StageLinkScript,
			wantErr:   linkscript.ErrReservedSpaceExceedsRegion,
		},
		{
			name: "unknown region",
			mutate: func(f *fixture) {
				f.config.Region = "SRAM"
			},
			wantStage: StageLinkScript,
			wantErr:   linkscript.ErrRegionNotFound,
		},
		{
			name: "base past 4 GiB",
			mutate: func(f *fixture) {
				os.WriteFile(f.config.LinkScript, []byte("MEMORY\n{\n    FLASH : ORIGIN = 0xfff00000, LENGTH = 0x200000\n}\n"), 0644)
			},
			wantStage: StageLinkScript,
			wantErr:   linkscript.ErrIntegerOverflow,
		},
		{
			name: "missing blob file",
			mutate: func(f *fixture) {
				os.Remove(filepath.Join(f.dir, "assets", "sound.bin"))
			},
			wantStage: StageLayout,
			wantErr:   blob.ErrIO,
		},
		{
			name: "missing link script",
			mutate: func(f *fixture) {
				f.config.LinkScript = filepath.Join(f.dir, "nope.x")
			},
			wantStage: StageLinkScript,
			wantErr:   ErrIO,
		},
		{
			name: "empty blob config",
			mutate: func(f *fixture) {
				os.WriteFile(f.config.BlobConfig, []byte("files: {}\n"), 0644)
			},
			wantStage: StageLayout,
			wantErr:   blob.ErrNoBlobsDefined,
		},
		{
			name: "bad blob config",
			mutate: func(f *fixture) {
				os.WriteFile(f.config.BlobConfig, []byte("files:\n  bad-name:\n    filename: x\n"), 0644)
			},
			wantStage: StageConfig,
			wantErr:   blob.ErrInvalidConfig,
		},
		{
			name: "accessor collision",
			mutate: func(f *fixture) {
				os.WriteFile(f.config.BlobConfig, []byte("files:\n  logo:\n    filename: assets/logo.bin\n  Logo:\n    filename: assets/font.bin\n"), 0644)
			},
			wantStage: StageCodegen,
			wantErr:   codegen.ErrNameCollision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			res, err := NewBuilder(f.config, nil).Build()
			if res != nil {
				t.Error("expected nil result")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build error = %v, want %v", err, tt.wantErr)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.wantStage {
				t.Errorf("error = %v, want stage %q", err, tt.wantStage)
			}

			for _, dir := range []string{f.config.OutDir, f.config.TargetDir} {
				if _, err := os.Stat(dir); err == nil {
					entries, _ := os.ReadDir(dir)
					if len(entries) != 0 {
						t.Errorf("%s contains %d entries after failed build", dir, len(entries))
					}
				}
			}
		})
	}
}

func TestBuild_FailureKeepsPreviousArtifacts(t *testing.T) {
	f := newFixture(t)
	if _, err := NewBuilder(f.config, nil).Build(); err != nil {
		t.Fatalf("first Build error = %v", err)
	}
	before, err := os.ReadFile(manifest.Path(f.config.TargetDir))
	if err != nil {
		t.Fatal(err)
	}

	// Grow a loaded blob past the region size.
	big := filepath.Join(f.dir, "assets", "font.bin")
	if err := os.WriteFile(big, make([]byte, 3*1024*1024), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBuilder(f.config, nil).Build(); !errors.Is(err, linkscript.ErrReservedSpaceExceedsRegion) {
		t.Fatalf("second Build error = %v", err)
	}

	after, err := os.ReadFile(manifest.Path(f.config.TargetDir))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("failed build changed the manifest")
	}
}

func TestPlan(t *testing.T) {
	f := newFixture(t)
	cfg, layout, err := NewBuilder(f.config, nil).Plan()
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}
	if cfg.Probe.Chip != "RP2040" || len(layout.Blobs) != 3 {
		t.Errorf("Plan = %+v, %+v", cfg, layout)
	}
	if _, err := os.Stat(f.config.OutDir); !os.IsNotExist(err) {
		t.Error("Plan wrote output")
	}
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(Config{}, nil)
	got := b.Config()
	want := DefaultConfig()
	if got.BlobConfig != want.BlobConfig || got.Region != want.Region || got.BufferSize != want.BufferSize || got.Profile != blob.ProfileDev {
		t.Errorf("Config() = %+v", got)
	}
}
