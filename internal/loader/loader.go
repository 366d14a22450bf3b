package loader

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/blobpack/internal/loader/scripts"
	"github.com/muurk/blobpack/internal/manifest"
)

// ErrNothingToLoad is returned for a manifest without entries, i.e. a
// build where every blob was inlined.
var ErrNothingToLoad = errors.New("manifest lists no blobs to load")

// Options controls a load.
type Options struct {
	// NoReset leaves the target halted after programming
	NoReset bool
	// BufferSize is used when re-hashing blob files
	BufferSize int
}

// Loader programs the blobs of a manifest into device flash.
type Loader struct {
	executor *Executor
	logger   *zap.Logger
}

// New creates a Loader running GDB through executor.
func New(executor *Executor, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{executor: executor, logger: logger}
}

// Script prepares the load script for m after checking that every blob
// file still matches the manifest.
func (l *Loader) Script(m *manifest.Manifest, opts Options) (*scripts.LoadScript, error) {
	if len(m.Info) == 0 {
		return nil, ErrNothingToLoad
	}
	if err := VerifyFiles(m, opts.BufferSize); err != nil {
		return nil, err
	}

	cfg := l.executor.Config()
	return scripts.NewLoadScript(cfg.OpenOCDHost, cfg.OpenOCDPort, m, opts.NoReset)
}

// Run executes a prepared script. When GDB fails part way the returned
// result still describes the steps that ran, alongside the error.
func (l *Loader) Run(ctx context.Context, script *scripts.LoadScript) (*scripts.Result, error) {
	result, err := l.executor.Execute(ctx, script)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) && execErr.Stdout != "" {
			if partial, perr := script.Parse(execErr.Stdout); perr == nil {
				partial.RawOutput = execErr.Stdout
				partial.RawStderr = execErr.Stderr
				return partial, err
			}
		}
		return nil, err
	}

	if !result.Success {
		return result, fmt.Errorf("load failed: %w", result.Error)
	}

	for _, name := range result.GetDataStrings("loaded") {
		l.logger.Info("Loaded blob", zap.String("name", name))
	}
	return result, nil
}

// Load verifies and programs every blob in m.
func (l *Loader) Load(ctx context.Context, m *manifest.Manifest, opts Options) (*scripts.Result, error) {
	script, err := l.Script(m, opts)
	if err != nil {
		return nil, err
	}
	return l.Run(ctx, script)
}
