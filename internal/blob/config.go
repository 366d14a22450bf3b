package blob

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the blob configuration file looked up in the
// project directory.
const DefaultConfigFile = "Blobs.yaml"

// Profile is a build profile. It selects the default inline policy.
type Profile string

const (
	ProfileDev     Profile = "dev"
	ProfileRelease Profile = "release"
)

// ParseProfile maps a profile name to a Profile. Anything but "release"
// builds as a dev profile.
func ParseProfile(name string) Profile {
	if name == string(ProfileRelease) {
		return ProfileRelease
	}
	return ProfileDev
}

// Params is the per-blob configuration.
type Params struct {
	// Filename is the blob source, relative to the configuration file
	Filename string `yaml:"filename"`

	// Inline forces the blob into (true) or out of (false) the binary for
	// every profile
	Inline *bool `yaml:"inline,omitempty"`

	// InlineDev applies to dev profiles, default false
	InlineDev *bool `yaml:"inline_dev,omitempty"`

	// InlineRelease applies to the release profile, default true
	InlineRelease *bool `yaml:"inline_release,omitempty"`
}

// ResolveInline applies the inline precedence: the explicit flag, then the
// profile specific flag, then the profile default.
func (p Params) ResolveInline(profile Profile) bool {
	if p.Inline != nil {
		return *p.Inline
	}
	if profile == ProfileRelease {
		if p.InlineRelease != nil {
			return *p.InlineRelease
		}
		return true
	}
	if p.InlineDev != nil {
		return *p.InlineDev
	}
	return false
}

// Entry is a named blob in declaration order.
type Entry struct {
	Name string
	Params
}

// Probe identifies the target chip for the loader.
type Probe struct {
	Chip string `yaml:"chip"`
}

// Config is a parsed blob configuration.
type Config struct {
	// Files lists the blobs in the order they were declared
	Files []Entry
	Probe Probe
	// Dir is the directory relative filenames are resolved against
	Dir string
}

type configFile struct {
	Files entryList `yaml:"files"`
	Probe Probe     `yaml:"probe"`
}

// entryList decodes a YAML mapping while keeping key order, which fixes
// the placement order of the blobs.
type entryList []Entry

func (l *entryList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: files must be a mapping of blob names", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var e Entry
		if err := node.Content[i].Decode(&e.Name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&e.Params); err != nil {
			return fmt.Errorf("blob %s: %w", e.Name, err)
		}
		*l = append(*l, e)
	}
	return nil
}

// LoadConfig reads a blob configuration from path. YAML and JSON files are
// both accepted.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("", path, err)
	}
	defer f.Close()

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, ioError("", path, err)
	}

	cfg, err := ParseConfig(f, dir)
	if err != nil {
		var be *Error
		if errors.As(err, &be) && be.Path == "" {
			be.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes a blob configuration. Relative filenames resolve
// against dir.
func ParseConfig(r io.Reader, dir string) (*Config, error) {
	var cf configFile
	if err := yaml.NewDecoder(r).Decode(&cf); err != nil && err != io.EOF {
		return nil, &Error{Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
	}

	cfg := &Config{
		Files: cf.Files,
		Probe: cf.Probe,
		Dir:   dir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks blob names and filenames. Names become identifiers in
// generated code, so they must be valid Go identifiers and unique.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Files))
	for _, e := range c.Files {
		if !token.IsIdentifier(e.Name) {
			return &Error{Blob: e.Name, Err: fmt.Errorf("%w: name is not a valid identifier", ErrInvalidConfig)}
		}
		if seen[e.Name] {
			return &Error{Blob: e.Name, Err: fmt.Errorf("%w: duplicate name", ErrInvalidConfig)}
		}
		seen[e.Name] = true
		if e.Filename == "" {
			return &Error{Blob: e.Name, Err: fmt.Errorf("%w: filename is required", ErrInvalidConfig)}
		}
	}
	return nil
}

// Path returns the source path of an entry, resolved against the
// configuration directory.
func (c *Config) Path(e Entry) string {
	if filepath.IsAbs(e.Filename) {
		return filepath.Clean(e.Filename)
	}
	return filepath.Join(c.Dir, e.Filename)
}
