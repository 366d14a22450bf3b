package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/blobpack/internal/loader/scripts"
)

// Config holds the configuration for GDB execution.
type Config struct {
	// GDBPath is the arm-none-eabi-gdb binary.
	// Default: "arm-none-eabi-gdb" (searches PATH)
	GDBPath string

	// OpenOCDHost is where OpenOCD's GDB server runs.
	// Default: "localhost"
	OpenOCDHost string

	// OpenOCDPort is OpenOCD's GDB port.
	// Default: 3333
	OpenOCDPort int

	// Timeout bounds a whole GDB run.
	// Default: 5 minutes
	Timeout time.Duration

	// WorkDir holds the rendered script files.
	// Default: os.TempDir()
	WorkDir string

	// Stdout and Stderr receive live output of streaming scripts.
	// Default: os.Stdout and os.Stderr
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		Timeout:     5 * time.Minute,
		WorkDir:     os.TempDir(),
	}
}

// Executor runs GDB scripts via os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
}

// NewExecutor creates a new GDB executor with the given configuration.
func NewExecutor(config Config, logger *zap.Logger) *Executor {
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config: config,
		logger: logger,
	}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Execute renders script, runs it with GDB in batch mode and parses the
// output. The rendered file is removed afterwards.
func (e *Executor) Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	startTime := time.Now()

	e.logger.Info("executing GDB script",
		zap.String("script", script.Name()),
		zap.String("gdb_path", e.config.GDBPath),
		zap.String("openocd", fmt.Sprintf("%s:%d", e.config.OpenOCDHost, e.config.OpenOCDPort)),
		zap.Duration("timeout", e.config.Timeout),
	)

	rendered, err := e.renderTemplate(script)
	if err != nil {
		return nil, &TemplateError{
			Template: script.Name(),
			Err:      err,
		}
	}

	e.logger.Debug("rendered GDB script template",
		zap.String("script", script.Name()),
		zap.Int("size", len(rendered)),
		zap.String("content", rendered),
	)

	scriptFile, err := e.writeScriptFile(script.Name(), rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	defer os.Remove(scriptFile)

	stdout, stderr, exitCode, err := e.executeGDB(ctx, scriptFile, script.Streaming())
	duration := time.Since(startTime)

	e.logger.Debug("GDB execution complete",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Int("exit_code", exitCode),
		zap.String("stdout", stdout),
		zap.String("stderr", stderr),
	)

	if err != nil {
		return nil, &ExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
			Err:      err,
		}
	}
	if exitCode != 0 {
		return nil, &ExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
		}
	}

	result, err := script.Parse(stdout)
	if err != nil {
		return nil, err
	}

	result.Duration = duration
	result.RawOutput = stdout
	result.RawStderr = stderr

	e.logger.Info("GDB script executed",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
		zap.Int("steps", result.TotalSteps()),
		zap.Int("bytes_written", result.BytesWritten),
	)

	return result, nil
}

func (e *Executor) renderTemplate(script scripts.Script) (string, error) {
	tmpl, err := template.New(script.Name()).Parse(script.Template())
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, script.Params()); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func (e *Executor) writeScriptFile(name, content string) (string, error) {
	file, err := os.CreateTemp(e.config.WorkDir, fmt.Sprintf("blobpack-gdb-%s-*.gdb", name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write script content: %w", err)
	}

	return file.Name(), nil
}

// executeGDB runs GDB on scriptFile. Streaming runs copy output to the
// configured writers as it arrives and still capture it for parsing.
func (e *Executor) executeGDB(ctx context.Context, scriptFile string, streaming bool) (stdout, stderr string, exitCode int, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	// -nx: skip .gdbinit, -x: run commands from file
	cmd := exec.CommandContext(timeoutCtx, e.config.GDBPath, "-batch", "-nx", "-x", scriptFile)

	var stdoutBuf, stderrBuf bytes.Buffer

	if streaming {
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return "", "", -1, fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return "", "", -1, fmt.Errorf("failed to create stderr pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return "", "", -1, fmt.Errorf("failed to start GDB: %w", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			io.Copy(io.MultiWriter(&stdoutBuf, e.config.Stdout), stdoutPipe)
		}()
		go func() {
			defer wg.Done()
			io.Copy(io.MultiWriter(&stderrBuf, e.config.Stderr), stderrPipe)
		}()

		wg.Wait()
		err = cmd.Wait()
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
		err = cmd.Run()
	}

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if timeoutCtx.Err() == context.DeadlineExceeded {
		err = &TimeoutError{
			Script:  filepath.Base(scriptFile),
			Timeout: e.config.Timeout.String(),
		}
	}

	return stdout, stderr, exitCode, err
}

// ValidateConfig checks the GDB binary and, as a warning only, the OpenOCD
// connection.
func (e *Executor) ValidateConfig(ctx context.Context) error {
	if err := ValidateGDBPath(ctx, e.config.GDBPath); err != nil {
		return err
	}

	if err := ValidateOpenOCDConnection(ctx, e.config.OpenOCDHost, e.config.OpenOCDPort); err != nil {
		e.logger.Warn("OpenOCD connection check failed (this is not fatal)",
			zap.String("host", e.config.OpenOCDHost),
			zap.Int("port", e.config.OpenOCDPort),
			zap.Error(err),
		)
	}

	return nil
}
