// Package manifest records where every non-inline blob lives on the device,
// so the loader can program it.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/muurk/blobpack/internal/blob"
)

// FileName is the manifest file written to the target directory.
const FileName = "BlobInfo.yaml"

const header = "# Generated by blobpack. Do not edit.\n"

// Address is an absolute device address. It is written as a 0x%08x YAML
// integer.
type Address uint32

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

func (a Address) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: a.String()}, nil
}

func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q", node.Line, node.Value)
	}
	*a = Address(v)
	return nil
}

// Entry describes one loaded blob.
type Entry struct {
	Start    Address       `yaml:"start"`
	Size     uint32        `yaml:"size"`
	Checksum blob.Checksum `yaml:"checksum"`
	Filename string        `yaml:"filename"`
}

// End returns the first address past the blob.
func (e Entry) End() uint64 {
	return uint64(e.Start) + uint64(e.Size)
}

// Manifest is the contents of BlobInfo.yaml.
type Manifest struct {
	Info  map[string]Entry `yaml:"info"`
	Probe blob.Probe       `yaml:"probe"`
}

// Named pairs an entry with its blob name.
type Named struct {
	Name string
	Entry
}

// Build creates the manifest for layout with the reserved region starting
// at base. Inline blobs are left out.
func Build(layout *blob.Layout, base uint32, probe blob.Probe) (*Manifest, error) {
	m := &Manifest{Info: make(map[string]Entry), Probe: probe}
	for _, b := range layout.Loaded() {
		start := uint64(base) + uint64(b.Offset)
		if start+uint64(b.Size) > 1<<32 {
			return nil, fmt.Errorf("blob %s: %w: ends past the 32-bit address space", b.Name, blob.ErrIntegerOverflow)
		}
		m.Info[b.Name] = Entry{
			Start:    Address(start),
			Size:     b.Size,
			Checksum: b.Checksum,
			Filename: b.Path,
		}
	}
	return m, nil
}

// Entries returns the blobs ordered by start address.
func (m *Manifest) Entries() []Named {
	out := make([]Named, 0, len(m.Info))
	for name, e := range m.Info {
		out = append(out, Named{Name: name, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Write encodes m as YAML.
func Write(w io.Writer, m *Manifest) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// Read decodes a manifest.
func Read(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Info == nil {
		m.Info = make(map[string]Entry)
	}
	return &m, nil
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Path returns the manifest location inside targetDir.
func Path(targetDir string) string {
	return filepath.Join(targetDir, FileName)
}
