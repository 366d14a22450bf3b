package blob

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBufferSize is the read buffer used when streaming blob files.
const DefaultBufferSize = 1024

// Checksum is the SHA-1 digest of a blob's contents.
type Checksum [sha1.Size]byte

// String returns the digest as lowercase hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// Bytes returns the digest as a comma separated list of decimal bytes, the
// form used in generated array literals.
func (c Checksum) Bytes() string {
	parts := make([]string, len(c))
	for i, b := range c {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return strings.Join(parts, ", ")
}

// ParseChecksum decodes a 40 character hex digest.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(b) != len(c) {
		return c, fmt.Errorf("invalid checksum %q: want %d bytes, got %d", s, len(c), len(b))
	}
	copy(c[:], b)
	return c, nil
}

// MarshalYAML writes the digest as a hex string.
func (c Checksum) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML reads a hex string digest.
func (c *Checksum) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseChecksum(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = parsed
	return nil
}

// Sum streams r through a buffer of bufSize bytes and returns the number
// of bytes read and their SHA-1. The digest does not depend on bufSize.
func Sum(r io.Reader, bufSize int) (uint64, Checksum, error) {
	return Copy(io.Discard, r, bufSize)
}

// Copy streams r to w through a buffer of bufSize bytes, hashing the data
// on the way through.
func Copy(w io.Writer, r io.Reader, bufSize int) (uint64, Checksum, error) {
	var sum Checksum
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	h := sha1.New()
	buf := make([]byte, bufSize)
	var size uint64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			if _, werr := w.Write(buf[:n]); werr != nil {
				return size, sum, werr
			}
			size += uint64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return size, sum, err
		}
	}

	copy(sum[:], h.Sum(nil))
	return size, sum, nil
}

// SumFile returns the size and SHA-1 of the file at path.
func SumFile(path string, bufSize int) (uint64, Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, Checksum{}, err
	}
	defer f.Close()

	return Sum(f, bufSize)
}
