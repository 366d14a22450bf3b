// Package artifact stages build outputs so that a failed build never leaves
// a half written set behind.
//
// Every file is written to a temporary file in its destination directory.
// Commit renames them all into place; Abort removes them. Until Commit the
// previous outputs are untouched.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrClosed is returned when a stage is used after Commit or Abort.
var ErrClosed = errors.New("artifact stage already closed")

type stagedFile struct {
	dst string
	tmp string
}

// Stage collects temporary files awaiting commit. It is not safe for
// concurrent use.
type Stage struct {
	logger *zap.Logger
	files  []stagedFile
	closed bool
}

// NewStage returns an empty stage. A nil logger disables logging.
func NewStage(logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{logger: logger}
}

// WriteFile stages dst with the content written by fn. The destination
// directory is created if needed.
func (s *Stage) WriteFile(dst string, fn func(w io.Writer) error) error {
	if s.closed {
		return ErrClosed
	}
	for _, f := range s.files {
		if f.dst == dst {
			return fmt.Errorf("%s: staged twice", dst)
		}
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", dst, err)
	}

	werr := fn(tmp)
	if werr == nil {
		werr = tmp.Chmod(0644)
	}
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return werr
	}

	s.files = append(s.files, stagedFile{dst: dst, tmp: tmp.Name()})
	s.logger.Debug("Staged artifact", zap.String("path", dst), zap.String("tmp", tmp.Name()))
	return nil
}

// Paths returns the destinations staged so far, in staging order.
func (s *Stage) Paths() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.dst
	}
	return out
}

// Commit renames every staged file into place. If a rename fails the
// remaining temporary files are removed and the error is returned.
func (s *Stage) Commit() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	for i, f := range s.files {
		if err := os.Rename(f.tmp, f.dst); err != nil {
			for _, rest := range s.files[i:] {
				os.Remove(rest.tmp)
			}
			return fmt.Errorf("failed to move %s into place: %w", f.dst, err)
		}
		s.logger.Debug("Committed artifact", zap.String("path", f.dst))
	}
	return nil
}

// Abort removes all staged files. It is a no-op after Commit.
func (s *Stage) Abort() {
	if s.closed {
		return
	}
	s.closed = true

	for _, f := range s.files {
		if err := os.Remove(f.tmp); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove staged artifact", zap.String("tmp", f.tmp), zap.Error(err))
		}
	}
	s.logger.Debug("Aborted artifact stage", zap.Int("files", len(s.files)))
}
