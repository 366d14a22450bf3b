package loader

import (
	"fmt"

	"github.com/muurk/blobpack/internal/blob"
	"github.com/muurk/blobpack/internal/manifest"
)

// VerifyFiles re-hashes every blob file named in m and fails on the first
// one whose size or SHA-1 differs from the manifest.
func VerifyFiles(m *manifest.Manifest, bufSize int) error {
	for _, e := range m.Entries() {
		size, sum, err := blob.SumFile(e.Filename, bufSize)
		if err != nil {
			return fmt.Errorf("blob %s: %w", e.Name, err)
		}
		if size != uint64(e.Size) || sum != e.Checksum {
			return &ChecksumMismatchError{
				Blob:     e.Name,
				Path:     e.Filename,
				WantSize: e.Size,
				GotSize:  size,
				Want:     e.Checksum,
				Got:      sum,
			}
		}
	}
	return nil
}
