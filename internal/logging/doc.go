// Package logging provides structured logging for blobpack.
//
// This package wraps a global zap logger. Logging is silent unless a level
// is given with --log-level or BLOBPACK_LOG_LEVEL, so the styled command
// output is not interleaved with log lines. When enabled, logs go to
// stderr in console format:
//
//	2026-01-12T10:30:45.123+0100  DEBUG  pipeline  Blob placed
//	  blob=font size=4096 inline=false offset=0x0
//
// # Log Levels
//
//   - Debug: per-blob placement, rendered GDB scripts
//   - Info: region patching, artifacts written, blobs loaded
//   - Warn: recoverable issues
//   - Error: failures
//
// Packages receive a *zap.Logger explicitly; commands obtain one with
// Named:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//	builder := pipeline.NewBuilder(cfg, logging.Named("pipeline"))
package logging
