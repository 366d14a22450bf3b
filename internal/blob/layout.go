package blob

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Blob is a resolved blob: its contents measured and its placement decided.
type Blob struct {
	Name string
	// Path is the absolute source path
	Path     string
	Size     uint32
	Checksum Checksum
	Inline   bool
	// Offset within the reserved region; only meaningful when !Inline
	Offset uint32
}

// Layout is the placement of every blob. Non-inline blobs are packed from
// offset 0 in declaration order with no gaps.
type Layout struct {
	Blobs []Blob
	// Total is the number of bytes the non-inline blobs need
	Total uint32
}

// Loaded returns the blobs that live in reserved storage.
func (l *Layout) Loaded() []Blob {
	var out []Blob
	for _, b := range l.Blobs {
		if !b.Inline {
			out = append(out, b)
		}
	}
	return out
}

// Inlined returns the blobs embedded in the binary.
func (l *Layout) Inlined() []Blob {
	var out []Blob
	for _, b := range l.Blobs {
		if b.Inline {
			out = append(out, b)
		}
	}
	return out
}

// Resolve measures every configured blob and lays out the non-inline ones.
// Files are streamed through a bufSize buffer, never read whole.
func Resolve(cfg *Config, profile Profile, bufSize int) (*Layout, error) {
	if len(cfg.Files) == 0 {
		return nil, ErrNoBlobsDefined
	}

	layout := &Layout{Blobs: make([]Blob, 0, len(cfg.Files))}
	var next uint64

	for _, e := range cfg.Files {
		path := cfg.Path(e)
		if !utf8.ValidString(path) {
			return nil, &Error{Blob: e.Name, Path: path, Err: ErrEncoding}
		}

		size, sum, err := SumFile(path, bufSize)
		if err != nil {
			return nil, ioError(e.Name, path, err)
		}
		if size > math.MaxUint32 {
			return nil, &Error{Blob: e.Name, Path: path, Err: fmt.Errorf("%w: %d bytes does not fit in 32 bits", ErrIntegerOverflow, size)}
		}

		b := Blob{
			Name:     e.Name,
			Path:     path,
			Size:     uint32(size),
			Checksum: sum,
			Inline:   e.ResolveInline(profile),
		}
		if !b.Inline {
			if next+size > math.MaxUint32 {
				return nil, &Error{Blob: e.Name, Path: path, Err: fmt.Errorf("%w: reserved space exceeds 4 GiB", ErrIntegerOverflow)}
			}
			b.Offset = uint32(next)
			next += size
		}
		layout.Blobs = append(layout.Blobs, b)
	}

	layout.Total = uint32(next)
	return layout, nil
}
