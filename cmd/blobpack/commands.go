package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/blobpack/internal/blob"
	"github.com/muurk/blobpack/internal/linkscript"
	"github.com/muurk/blobpack/internal/loader"
	"github.com/muurk/blobpack/internal/loader/scripts"
	"github.com/muurk/blobpack/internal/logging"
	"github.com/muurk/blobpack/internal/manifest"
	"github.com/muurk/blobpack/internal/pipeline"
	"github.com/muurk/blobpack/internal/ui"
)

// ProfileEnvVar supplies the default for --profile.
const ProfileEnvVar = "BLOBPACK_PROFILE"

// reportedError marks an error already shown to the user in a result box.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// Build flags, shared with inspect
var (
	buildConfig = pipeline.DefaultConfig()
	profileName string
)

// Load flags
var (
	loadConfig     = loader.DefaultConfig()
	manifestPath   string
	loadNoReset    bool
	loadYes        bool
	loadVerbose    bool
	loadSkipChecks bool
)

func init() {
	rootCmd.SilenceErrors = true

	for _, cmd := range []*cobra.Command{buildCmd, inspectCmd} {
		f := cmd.Flags()
		f.StringVarP(&buildConfig.BlobConfig, "config", "c", buildConfig.BlobConfig, "Blob configuration file (.yaml or .json)")
		f.StringVar(&buildConfig.LinkScript, "script", buildConfig.LinkScript, "Input linker script")
		f.StringVar(&buildConfig.Region, "region", buildConfig.Region, "Memory region to reserve blob space from")
		f.StringVar(&profileName, "profile", envOr(ProfileEnvVar, string(blob.ProfileDev)), "Build profile (release, or anything else for dev)")
		f.IntVar(&buildConfig.BufferSize, "buffer-size", buildConfig.BufferSize, "Read buffer size for checksums")
	}

	f := buildCmd.Flags()
	f.StringVarP(&buildConfig.OutDir, "out", "o", buildConfig.OutDir, "Output directory for generated source and patched linker script")
	f.StringVar(&buildConfig.TargetDir, "target", buildConfig.TargetDir, "Output directory for the manifest")
	f.StringVar(&buildConfig.Package, "package", buildConfig.Package, "Package name of the generated source")
	f.StringVar(&buildConfig.EmbedDir, "embed-dir", buildConfig.EmbedDir, "Directory under --out for inline blob copies")
	f.StringVar(&buildConfig.SourceFile, "source", buildConfig.SourceFile, "Generated source file name")
	f.StringVar(&buildConfig.Chip, "chip", "", "Probe chip recorded in the manifest (overrides the configuration)")

	f = loadCmd.Flags()
	f.StringVarP(&manifestPath, "manifest", "m", manifest.Path(buildConfig.TargetDir), "Manifest written by build")
	f.StringVar(&loadConfig.GDBPath, "gdb", loadConfig.GDBPath, "Path to arm-none-eabi-gdb binary")
	f.StringVar(&loadConfig.OpenOCDHost, "openocd-host", loadConfig.OpenOCDHost, "OpenOCD hostname")
	f.IntVar(&loadConfig.OpenOCDPort, "openocd-port", loadConfig.OpenOCDPort, "OpenOCD GDB port")
	f.DurationVar(&loadConfig.Timeout, "timeout", loadConfig.Timeout, "GDB operation timeout (e.g., 30s, 5m)")
	f.BoolVar(&loadNoReset, "no-reset", false, "Leave the target halted after programming")
	f.BoolVarP(&loadYes, "yes", "y", false, "Skip the flash write confirmation")
	f.BoolVarP(&loadVerbose, "verbose", "v", false, "Show GDB output")
	f.BoolVar(&loadSkipChecks, "skip-checks", false, "Skip GDB and OpenOCD prerequisite checks")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(loadCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newBuilder() *pipeline.Builder {
	cfg := buildConfig
	cfg.Profile = blob.ParseProfile(profileName)
	return pipeline.NewBuilder(cfg, logging.Named("pipeline"))
}

// buildCmd implements the 'build' command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Lay out blobs, patch the linker script and generate accessors",
	Long: `Run a blob build.

This command will:
  1. Read the blob configuration and checksum every blob file
  2. Decide per blob whether it is inlined, using the build profile
  3. Shrink the linker script region by the size of the non-inline blobs
  4. Generate Go accessors and copy inline blobs next to them
  5. Write the manifest used by 'blobpack load'

Outputs are written together: if any step fails, previous outputs are
left as they were.`,
	Example: `  # Dev build with defaults
  blobpack build

  # Release build into a custom directory
  blobpack build --profile release --out internal/assets --package assets`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	builder := newBuilder()
	cfg := builder.Config()
	p := ui.NewPrinter(cmd.OutOrStdout())

	p.PrintHeader("Blob Build", "blobpack build", []ui.Field{
		ui.F("Config", cfg.BlobConfig),
		ui.F("Profile", string(cfg.Profile)),
		ui.F("Script", fmt.Sprintf("%s (region %s)", cfg.LinkScript, cfg.Region)),
		ui.F("Output", cfg.OutDir),
		ui.F("Manifest", manifest.Path(cfg.TargetDir)),
	})

	result, err := builder.Build()
	if err != nil {
		p.PrintError("Build failed", err, buildTroubleshooting(err))
		return &reportedError{err}
	}

	p.PrintTable(layoutTable(result.Layout, result.Base))
	p.Newline()

	details := []ui.Field{
		ui.F("Blobs", fmt.Sprintf("%d (%d inline, %d loaded)",
			len(result.Layout.Blobs), len(result.Layout.Inlined()), len(result.Layout.Loaded()))),
		ui.F("Reserved", fmt.Sprintf("%d bytes at 0x%08x", result.Layout.Total, result.Base)),
		ui.F("Region", fmt.Sprintf("%s LENGTH 0x%x -> 0x%x",
			result.Patch.Region.Name, result.Patch.Region.Length, result.Patch.NewLength)),
	}
	for _, path := range result.Files {
		details = append(details, ui.F("Wrote", path))
	}
	details = append(details, ui.F("Duration", result.Duration.Round(time.Millisecond).String()))
	p.PrintSuccess("Build complete", details)
	return nil
}

func buildTroubleshooting(err error) []string {
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		return nil
	}
	switch stageErr.Stage {
	case pipeline.StageConfig:
		return []string{
			"Check the configuration has a 'files' mapping of name to {filename: ...}",
			"Blob names must be valid Go identifiers",
		}
	case pipeline.StageLayout:
		return []string{
			"Blob filenames are resolved relative to the configuration file",
			"At least one blob must be defined",
		}
	case pipeline.StageLinkScript:
		return []string{
			"The region must be declared as NAME (attr) : ORIGIN = expr, LENGTH = expr",
			"Check the region is large enough for the non-inline blobs",
			"Try: blobpack inspect to see the reserved size",
		}
	case pipeline.StageCodegen:
		return []string{
			"Accessor names are the blob names with the first letter upper-cased",
			"Rename blobs whose accessors collide",
		}
	default:
		return []string{"Check the output directories are writable"}
	}
}

// layoutTable lists blobs in configuration order. Inline blobs are muted.
func layoutTable(layout *blob.Layout, base uint32) *ui.Table {
	t := ui.NewTable("Blob", "Placement", "Offset", "Address", "Size", "SHA-1")
	for _, b := range layout.Blobs {
		sum := b.Checksum.String()[:12]
		if b.Inline {
			t.AddMutedRow(b.Name, "inline", "-", "-", strconv.FormatUint(uint64(b.Size), 10), sum)
			continue
		}
		t.AddRow(b.Name, "flash",
			fmt.Sprintf("0x%x", b.Offset),
			fmt.Sprintf("0x%08x", uint64(base)+uint64(b.Offset)),
			strconv.FormatUint(uint64(b.Size), 10),
			sum)
	}
	return t
}

// inspectCmd implements the 'inspect' command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the blob layout without writing anything",
	Long: `Resolve the blob layout for a profile and show where each blob would be
placed. If the linker script can be read, the region is patched in memory
to show the resulting base address.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	builder := newBuilder()
	cfg := builder.Config()
	p := ui.NewPrinter(cmd.OutOrStdout())

	_, layout, err := builder.Plan()
	if err != nil {
		p.PrintError("Inspect failed", err, buildTroubleshooting(err))
		return &reportedError{err}
	}

	header := ui.NewHeader("Blob Layout", "blobpack inspect", []ui.Field{
		ui.F("Config", cfg.BlobConfig),
		ui.F("Profile", string(cfg.Profile)),
	}).SetWidth(p.Width())

	var base uint32
	details := []ui.Field{
		ui.F("Blobs", strconv.Itoa(len(layout.Blobs))),
		ui.F("Reserved", fmt.Sprintf("%d bytes", layout.Total)),
	}
	result := ui.NewSuccessResult("Layout resolved", nil)
	if script, err := os.ReadFile(cfg.LinkScript); err == nil {
		patch, err := linkscript.Patch(string(script), cfg.Region, int64(layout.Total))
		if err == nil {
			base, err = patch.Base32()
		}
		if err != nil {
			result = ui.NewWarningResult("Linker script cannot hold the blobs", nil)
			details = append(details, ui.F("Error", err.Error()))
		} else {
			details = append(details,
				ui.F("Region", patch.Region.String()),
				ui.F("New length", fmt.Sprintf("0x%x", patch.NewLength)),
				ui.F("Base", fmt.Sprintf("0x%08x", base)),
			)
		}
	} else {
		details = append(details, ui.F("Script", cfg.LinkScript+" not readable, addresses relative to 0"))
	}
	result.Details = details
	result.SetWidth(p.Width())

	content := header.Render() + "\n\n" + layoutTable(layout, base).Render() + "\n\n" + result.Render()
	return ui.RenderOnce(cmd.OutOrStdout(), content)
}

// loadCmd implements the 'load' command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Program non-inline blobs into device flash",
	Long: `Program the non-inline blobs listed in the manifest into device flash
using arm-none-eabi-gdb connected to OpenOCD.

This command will:
  1. Read the manifest written by 'blobpack build'
  2. Re-check every blob file against its recorded size and SHA-1
  3. Halt the target, write and verify each blob, then reset it

Prerequisites:
  - arm-none-eabi-gdb installed and in PATH (or --gdb)
  - OpenOCD running with the probe and target configured`,
	Example: `  # Load with defaults (target/BlobInfo.yaml, localhost:3333)
  blobpack load

  # Non-interactive, leave the target halted
  blobpack load --yes --no-reset`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	out := cmd.OutOrStdout()
	p := ui.NewPrinter(out)
	target := fmt.Sprintf("%s:%d", loadConfig.OpenOCDHost, loadConfig.OpenOCDPort)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		p.PrintError("Load failed", err, []string{"Run 'blobpack build' first, or pass --manifest"})
		return &reportedError{err}
	}
	if len(m.Info) == 0 {
		p.PrintWarning("Nothing to load", []ui.Field{
			ui.F("Manifest", manifestPath),
			ui.F("Reason", "every blob is inlined in this build"),
		})
		return nil
	}

	if !loadSkipChecks {
		for _, check := range loader.CheckPrerequisites(ctx, loadConfig) {
			if check.Required && !check.Available {
				p.PrintError("Prerequisites not met", check.Error, []string{check.Message})
				return &reportedError{check.Error}
			}
		}
	}

	// Streamed GDB stdout drives the step list
	var runner *ui.Runner
	steps := ui.NewStepWriter(func(n int, name string, status ui.StepStatus, message string) {
		runner.OnStep(n, name, status, message)
	})
	var stderr bytes.Buffer
	execConfig := loadConfig
	execConfig.Stdout = steps
	execConfig.Stderr = &stderr
	ldr := loader.New(loader.NewExecutor(execConfig, logging.Named("loader")), logging.Named("loader"))

	script, err := ldr.Script(m, loader.Options{NoReset: loadNoReset})
	if err != nil {
		p.PrintError("Load failed", err, loadTroubleshooting(err))
		return &reportedError{err}
	}

	if !loadYes {
		if !ui.IsTerminal() {
			err := errors.New("refusing to write flash without confirmation; pass --yes")
			p.PrintError("Load cancelled", err, nil)
			return &reportedError{err}
		}
		if !ui.Confirm(cmd.InOrStdin(), out, ui.FlashWriteConfirmation(target, len(m.Info))) {
			return nil
		}
	}

	params := []ui.Field{
		ui.F("Manifest", manifestPath),
		ui.F("Target", target),
	}
	if m.Probe.Chip != "" {
		params = append(params, ui.F("Chip", m.Probe.Chip))
	}
	runner = ui.NewRunner(ui.RunnerConfig{
		Title:           "Blob Load",
		Command:         "blobpack load",
		Params:          params,
		TotalSteps:      script.TotalSteps(),
		StepNames:       script.StepNames(),
		Troubleshooting: loadTroubleshooting(nil),
		Verbose:         loadVerbose,
		Output:          out,
	})

	err = runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Field, error) {
		result, err := ldr.Run(ctx, script)
		runner.SetRawOutput(rawOutput(result, err, stderr.String()))
		if err != nil {
			steps.Fail(failureMessage(result))
			return nil, err
		}
		return []ui.Field{
			ui.F("Blobs", strconv.Itoa(len(result.GetDataStrings("loaded")))),
			ui.F("Bytes", strconv.Itoa(result.BytesWritten)),
		}, nil
	})
	if err != nil {
		return &reportedError{err}
	}
	return nil
}

func rawOutput(result *scripts.Result, err error, stderr string) string {
	if result != nil {
		return result.RawOutput + result.RawStderr
	}
	var execErr *loader.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Stdout + execErr.Stderr
	}
	return stderr
}

func failureMessage(result *scripts.Result) string {
	if result == nil {
		return ""
	}
	for _, step := range result.Steps {
		if step.Status == scripts.StatusFailed {
			return step.Message
		}
	}
	return ""
}

func loadTroubleshooting(err error) []string {
	var mismatch *loader.ChecksumMismatchError
	if errors.As(err, &mismatch) {
		return []string{
			"A blob file changed since the last build",
			"Run 'blobpack build' and reflash the firmware before loading",
		}
	}
	if errors.Is(err, scripts.ErrUnquotablePath) {
		return []string{"Move blob files to a path without braces or newlines"}
	}
	return []string{
		"Verify OpenOCD is running and connected to the probe",
		"Check the target is powered",
		"Run with --verbose for full GDB output",
	}
}
