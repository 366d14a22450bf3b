package pipeline

import (
	"github.com/muurk/blobpack/internal/blob"
	"github.com/muurk/blobpack/internal/codegen"
)

// Config holds everything a build needs. There is no hidden environment
// lookup; callers fill it from flags or tests.
type Config struct {
	// BlobConfig is the blob configuration file.
	// Default: "Blobs.yaml"
	BlobConfig string

	// LinkScript is the input linker script.
	// Default: "memory.x"
	LinkScript string

	// Region is the memory region the blobs are carved from.
	// Default: "FLASH"
	Region string

	// OutDir receives the generated package: the accessor source, inline
	// blob copies and the patched linker script.
	// Default: "blobs"
	OutDir string

	// TargetDir receives the manifest for the loader.
	// Default: "target"
	TargetDir string

	// Profile selects the inline defaults.
	// Default: dev
	Profile blob.Profile

	// Package is the package name of the generated source.
	// Default: "blobs"
	Package string

	// EmbedDir is the directory under OutDir holding inline blob copies.
	// Default: "blobdata"
	EmbedDir string

	// SourceFile is the name of the generated source file in OutDir.
	// Default: "blobs.go"
	SourceFile string

	// Chip overrides the probe chip from the blob configuration when set.
	Chip string

	// BufferSize is the read buffer used for checksums and copies.
	// Default: 1024
	BufferSize int
}

// DefaultConfig returns a Config with the default file layout.
func DefaultConfig() Config {
	return Config{
		BlobConfig: blob.DefaultConfigFile,
		LinkScript: "memory.x",
		Region:     "FLASH",
		OutDir:     "blobs",
		TargetDir:  "target",
		Profile:    blob.ProfileDev,
		Package:    codegen.DefaultPackage,
		EmbedDir:   codegen.DefaultEmbedDir,
		SourceFile: "blobs.go",
		BufferSize: blob.DefaultBufferSize,
	}
}
