// Package codegen renders the Go source that gives firmware access to its
// blobs.
//
// Inline blobs are embedded with //go:embed from copies placed under the
// generated package. Every other blob is read in place from the storage
// region reserved by the linker script: the accessor views the bytes at a
// fixed address, checks them against the SHA-1 recorded at build time on
// first use and panics on a mismatch, so it never hands out unverified data.
//
// The output is gofmt formatted. Generate only writes to the given writer;
// placing the embedded copies is the caller's job, see Options.EmbedPath.
package codegen

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"path"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/muurk/blobpack/internal/blob"
)

//go:embed templates/blobs.go.tmpl
var sourceTemplate string

var tmpl = template.Must(template.New("blobs").Parse(sourceTemplate))

const (
	DefaultPackage  = "blobs"
	DefaultEmbedDir = "blobdata"
)

// ErrNameCollision is returned when two blobs would generate the same
// identifier, such as "logo" and "Logo".
var ErrNameCollision = errors.New("generated identifier collision")

// Options controls the generated file.
type Options struct {
	// Package is the package clause of the generated file
	Package string
	// EmbedDir is the directory, relative to the generated file, holding
	// the inline blob copies
	EmbedDir string
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	if o.EmbedDir == "" {
		o.EmbedDir = DefaultEmbedDir
	}
	return o
}

// EmbedPath returns the slash separated path, relative to the generated
// file, where the inline copy of the named blob must be placed.
func (o Options) EmbedPath(name string) string {
	return path.Join(o.withDefaults().EmbedDir, name+".bin")
}

type inlineBlob struct {
	Name     string
	Accessor string
	Var      string
	Path     string
	Size     uint32
}

type loadedBlob struct {
	Name     string
	Accessor string
	Var      string
	Once     string
	Err      string
	Addr     string
	Size     uint32
	Digest   string
}

type templateData struct {
	Package string
	Inline  []inlineBlob
	Loaded  []loadedBlob
}

// Generate writes the accessor source for layout to w. Non-inline blobs
// are addressed from base.
func Generate(w io.Writer, layout *blob.Layout, base uint32, opts Options) error {
	opts = opts.withDefaults()
	if !token.IsIdentifier(opts.Package) {
		return fmt.Errorf("invalid package name %q", opts.Package)
	}

	data := templateData{Package: opts.Package}
	used := make(map[string]string)
	claim := func(ident, owner string) error {
		if prev, ok := used[ident]; ok {
			return fmt.Errorf("blob %s: %w: %s already used by blob %s", owner, ErrNameCollision, ident, prev)
		}
		used[ident] = owner
		return nil
	}

	for _, b := range layout.Blobs {
		accessor := exported(b.Name)
		if !token.IsExported(accessor) {
			return fmt.Errorf("blob %s: name cannot be exported", b.Name)
		}
		idents := []string{accessor, b.Name + "Data"}
		if !b.Inline {
			idents = append(idents, b.Name+"Once", b.Name+"Err")
		}
		for _, id := range idents {
			if err := claim(id, b.Name); err != nil {
				return err
			}
		}

		if b.Inline {
			data.Inline = append(data.Inline, inlineBlob{
				Name:     b.Name,
				Accessor: accessor,
				Var:      b.Name + "Data",
				Path:     opts.EmbedPath(b.Name),
				Size:     b.Size,
			})
			continue
		}

		addr := uint64(base) + uint64(b.Offset)
		if addr+uint64(b.Size) > 1<<32 {
			return fmt.Errorf("blob %s: %w: 0x%x + %d exceeds the 32-bit address space", b.Name, blob.ErrIntegerOverflow, addr, b.Size)
		}
		data.Loaded = append(data.Loaded, loadedBlob{
			Name:     b.Name,
			Accessor: accessor,
			Var:      b.Name + "Data",
			Once:     b.Name + "Once",
			Err:      b.Name + "Err",
			Addr:     fmt.Sprintf("0x%08x", addr),
			Size:     b.Size,
			Digest:   b.Checksum.Bytes(),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render source: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format generated source: %w", err)
	}
	_, err = w.Write(src)
	return err
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}
