// Package pipeline runs a blob build: layout, linker script patch, code
// generation and manifest, committed together or not at all.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/blobpack/internal/artifact"
	"github.com/muurk/blobpack/internal/blob"
	"github.com/muurk/blobpack/internal/codegen"
	"github.com/muurk/blobpack/internal/linkscript"
	"github.com/muurk/blobpack/internal/logging"
	"github.com/muurk/blobpack/internal/manifest"
)

// Result describes a committed build.
type Result struct {
	Layout   *blob.Layout
	Patch    *linkscript.PatchResult
	Manifest *manifest.Manifest
	// Base is the first address of the reserved space
	Base uint32
	// Files lists every artifact written, in write order
	Files    []string
	Duration time.Duration
}

// Builder runs builds for one configuration.
type Builder struct {
	config Config
	logger *zap.Logger
}

// NewBuilder creates a Builder. Empty config fields take their defaults.
func NewBuilder(config Config, logger *zap.Logger) *Builder {
	def := DefaultConfig()
	if config.BlobConfig == "" {
		config.BlobConfig = def.BlobConfig
	}
	if config.LinkScript == "" {
		config.LinkScript = def.LinkScript
	}
	if config.Region == "" {
		config.Region = def.Region
	}
	if config.OutDir == "" {
		config.OutDir = def.OutDir
	}
	if config.TargetDir == "" {
		config.TargetDir = def.TargetDir
	}
	if config.Profile == "" {
		config.Profile = def.Profile
	}
	if config.SourceFile == "" {
		config.SourceFile = def.SourceFile
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{config: config, logger: logger}
}

// Config returns the effective configuration.
func (b *Builder) Config() Config {
	return b.config
}

// Plan loads the blob configuration and computes the layout without
// touching the linker script or writing anything.
func (b *Builder) Plan() (*blob.Config, *blob.Layout, error) {
	cfg, err := blob.LoadConfig(b.config.BlobConfig)
	if err != nil {
		return nil, nil, &StageError{Stage: StageConfig, Path: b.config.BlobConfig, Err: err}
	}

	layout, err := blob.Resolve(cfg, b.config.Profile, b.config.BufferSize)
	if err != nil {
		return nil, nil, &StageError{Stage: StageLayout, Path: b.config.BlobConfig, Err: err}
	}

	b.logger.Info("Resolved blob layout",
		zap.String("profile", string(b.config.Profile)),
		zap.Int("blobs", len(layout.Blobs)),
		zap.Int("loaded", len(layout.Loaded())),
		zap.String("reserved", logging.Hex(layout.Total)),
	)
	for _, bl := range layout.Blobs {
		fields := append(logging.BlobFields(bl.Name, bl.Size, bl.Inline, bl.Offset),
			zap.String("path", bl.Path),
			zap.String("sha1", bl.Checksum.String()),
		)
		b.logger.Debug("Blob placed", fields...)
	}
	return cfg, layout, nil
}

// Build runs the whole pipeline. Artifacts are only moved into place once
// every stage has succeeded; on failure the previous outputs are left as
// they were.
func (b *Builder) Build() (*Result, error) {
	start := time.Now()

	cfg, layout, err := b.Plan()
	if err != nil {
		return nil, err
	}

	script, err := os.ReadFile(b.config.LinkScript)
	if err != nil {
		return nil, &StageError{Stage: StageLinkScript, Path: b.config.LinkScript, Err: ioErr(err)}
	}
	patch, err := linkscript.Patch(string(script), b.config.Region, int64(layout.Total))
	if err != nil {
		return nil, &StageError{Stage: StageLinkScript, Path: b.config.LinkScript, Err: err}
	}
	base, err := patch.Base32()
	if err != nil {
		return nil, &StageError{Stage: StageLinkScript, Path: b.config.LinkScript, Err: err}
	}

	b.logger.Info("Patched linker script",
		zap.String("region", patch.Region.Name),
		zap.Int("line", patch.Line),
		zap.String("origin", logging.Hex(uint64(patch.Region.Origin))),
		zap.String("length", logging.Hex(uint64(patch.Region.Length))),
		zap.String("new_length", logging.Hex(uint64(patch.NewLength))),
		zap.String("base", fmt.Sprintf("0x%08x", base)),
	)

	probe := cfg.Probe
	if b.config.Chip != "" {
		probe.Chip = b.config.Chip
	}
	m, err := manifest.Build(layout, base, probe)
	if err != nil {
		return nil, &StageError{Stage: StageManifest, Err: err}
	}

	stage := artifact.NewStage(b.logger)
	committed := false
	defer func() {
		if !committed {
			stage.Abort()
		}
	}()

	if err := b.stageArtifacts(stage, layout, patch, base, m); err != nil {
		return nil, err
	}

	if err := stage.Commit(); err != nil {
		return nil, &StageError{Stage: StageCommit, Err: ioErr(err)}
	}
	committed = true

	result := &Result{
		Layout:   layout,
		Patch:    patch,
		Manifest: m,
		Base:     base,
		Files:    stage.Paths(),
		Duration: time.Since(start),
	}
	b.logger.Info("Build complete",
		zap.Int("files", len(result.Files)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (b *Builder) stageArtifacts(stage *artifact.Stage, layout *blob.Layout, patch *linkscript.PatchResult, base uint32, m *manifest.Manifest) error {
	opts := codegen.Options{Package: b.config.Package, EmbedDir: b.config.EmbedDir}

	scriptPath := filepath.Join(b.config.OutDir, filepath.Base(b.config.LinkScript))
	err := stage.WriteFile(scriptPath, func(w io.Writer) error {
		_, err := io.WriteString(w, patch.Script)
		return err
	})
	if err != nil {
		return &StageError{Stage: StageLinkScript, Path: scriptPath, Err: ioErr(err)}
	}

	// Render first so a generator error is not reported as an I/O failure.
	var src bytes.Buffer
	if err := codegen.Generate(&src, layout, base, opts); err != nil {
		return &StageError{Stage: StageCodegen, Err: err}
	}
	srcPath := filepath.Join(b.config.OutDir, b.config.SourceFile)
	err = stage.WriteFile(srcPath, func(w io.Writer) error {
		_, err := w.Write(src.Bytes())
		return err
	})
	if err != nil {
		return &StageError{Stage: StageCodegen, Path: srcPath, Err: ioErr(err)}
	}

	for _, bl := range layout.Inlined() {
		if err := b.stageInline(stage, bl, opts); err != nil {
			return err
		}
	}

	manifestPath := manifest.Path(b.config.TargetDir)
	err = stage.WriteFile(manifestPath, func(w io.Writer) error {
		return manifest.Write(w, m)
	})
	if err != nil {
		return &StageError{Stage: StageManifest, Path: manifestPath, Err: ioErr(err)}
	}
	return nil
}

// stageInline copies an inline blob next to the generated source. The copy
// is checked against the digest taken during layout, so a file changed
// mid-build fails instead of embedding bytes the code was not generated for.
func (b *Builder) stageInline(stage *artifact.Stage, bl blob.Blob, opts codegen.Options) error {
	dst := filepath.Join(b.config.OutDir, filepath.FromSlash(opts.EmbedPath(bl.Name)))

	var mismatch error
	err := stage.WriteFile(dst, func(w io.Writer) error {
		src, err := os.Open(bl.Path)
		if err != nil {
			return err
		}
		defer src.Close()

		size, sum, err := blob.Copy(w, src, b.config.BufferSize)
		if err != nil {
			return err
		}
		if size != uint64(bl.Size) || sum != bl.Checksum {
			mismatch = fmt.Errorf("blob %s changed during the build", bl.Name)
			return mismatch
		}
		return nil
	})
	if mismatch != nil {
		return &StageError{Stage: StageEmbed, Path: bl.Path, Err: mismatch}
	}
	if err != nil {
		return &StageError{Stage: StageEmbed, Path: bl.Path, Err: ioErr(err)}
	}

	b.logger.Debug("Staged inline blob", zap.String("name", bl.Name), zap.String("path", dst))
	return nil
}
