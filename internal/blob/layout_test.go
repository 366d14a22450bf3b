package blob

import (
	"crypto/sha1"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeBlob(t *testing.T, dir, name string, size int) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dir string) *Config {
	return &Config{
		Dir: dir,
		Files: []Entry{
			{Name: "a", Params: Params{Filename: "a.bin", Inline: boolPtr(false)}},
			{Name: "b", Params: Params{Filename: "b.bin", Inline: boolPtr(false)}},
			{Name: "c", Params: Params{Filename: "c.bin", Inline: boolPtr(true)}},
			{Name: "d", Params: Params{Filename: "d.bin", Inline: boolPtr(false)}},
		},
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "a.bin", 100)
	writeBlob(t, dir, "b.bin", 200)
	writeBlob(t, dir, "c.bin", 50)
	writeBlob(t, dir, "d.bin", 0)

	layout, err := Resolve(testConfig(dir), ProfileDev, DefaultBufferSize)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	if layout.Total != 300 {
		t.Errorf("Total = %d, want 300", layout.Total)
	}

	tests := []struct {
		name   string
		size   uint32
		inline bool
		offset uint32
	}{
		{"a", 100, false, 0},
		{"b", 200, false, 100},
		{"c", 50, true, 0},
		{"d", 0, false, 300},
	}
	if len(layout.Blobs) != len(tests) {
		t.Fatalf("got %d blobs, want %d", len(layout.Blobs), len(tests))
	}
	for i, tt := range tests {
		b := layout.Blobs[i]
		if b.Name != tt.name || b.Size != tt.size || b.Inline != tt.inline || b.Offset != tt.offset {
			t.Errorf("blob %d = %+v, want %+v", i, b, tt)
		}
		if !filepath.IsAbs(b.Path) {
			t.Errorf("blob %s path %q is not absolute", b.Name, b.Path)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "b.bin"))
	if layout.Blobs[1].Checksum != Checksum(sha1.Sum(data)) {
		t.Errorf("b checksum = %s", layout.Blobs[1].Checksum)
	}

	if got := len(layout.Loaded()); got != 3 {
		t.Errorf("Loaded() = %d blobs, want 3", got)
	}
	if got := layout.Inlined(); len(got) != 1 || got[0].Name != "c" {
		t.Errorf("Inlined() = %+v", got)
	}
}

func TestResolve_SumOfSizes(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "a.bin", 17)
	writeBlob(t, dir, "b.bin", 4096)
	writeBlob(t, dir, "c.bin", 3)
	writeBlob(t, dir, "d.bin", 1025)

	layout, err := Resolve(testConfig(dir), ProfileRelease, 64)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	var sum uint32
	var prevEnd uint32
	for _, b := range layout.Loaded() {
		if b.Offset != prevEnd {
			t.Errorf("blob %s offset = %d, want %d", b.Name, b.Offset, prevEnd)
		}
		prevEnd = b.Offset + b.Size
		sum += b.Size
	}
	if sum != layout.Total {
		t.Errorf("sum of sizes = %d, Total = %d", sum, layout.Total)
	}
}

func TestResolve_Profiles(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "x.bin", 10)
	cfg := &Config{Dir: dir, Files: []Entry{{Name: "x", Params: Params{Filename: "x.bin"}}}}

	dev, err := Resolve(cfg, ProfileDev, DefaultBufferSize)
	if err != nil {
		t.Fatal(err)
	}
	if dev.Blobs[0].Inline || dev.Total != 10 {
		t.Errorf("dev layout = %+v", dev)
	}

	rel, err := Resolve(cfg, ProfileRelease, DefaultBufferSize)
	if err != nil {
		t.Fatal(err)
	}
	if !rel.Blobs[0].Inline || rel.Total != 0 {
		t.Errorf("release layout = %+v", rel)
	}
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(&Config{Dir: dir}, ProfileDev, DefaultBufferSize)
	if !errors.Is(err, ErrNoBlobsDefined) {
		t.Errorf("empty config error = %v, want ErrNoBlobsDefined", err)
	}

	cfg := &Config{Dir: dir, Files: []Entry{{Name: "gone", Params: Params{Filename: "gone.bin"}}}}
	_, err = Resolve(cfg, ProfileDev, DefaultBufferSize)
	if !errors.Is(err, ErrIO) {
		t.Errorf("missing file error = %v, want ErrIO", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.Blob != "gone" {
		t.Errorf("missing file error = %#v, want *Error for gone", err)
	}

	cfg = &Config{Dir: dir, Files: []Entry{{Name: "bad", Params: Params{Filename: "\xff\xfe.bin"}}}}
	_, err = Resolve(cfg, ProfileDev, DefaultBufferSize)
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("invalid path error = %v, want ErrEncoding", err)
	}
}
