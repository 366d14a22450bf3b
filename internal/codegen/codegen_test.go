package codegen

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/muurk/blobpack/internal/blob"
)

func testLayout() *blob.Layout {
	return &blob.Layout{
		Blobs: []blob.Blob{
			{Name: "logo", Size: 100, Checksum: blob.Checksum(sha1.Sum([]byte("logo"))), Inline: true},
			{Name: "font", Size: 256, Checksum: blob.Checksum(sha1.Sum([]byte("font"))), Offset: 0},
			{Name: "sound", Size: 50, Checksum: blob.Checksum(sha1.Sum([]byte("sound"))), Offset: 256},
		},
		Total: 306,
	}
}

func parseSource(t *testing.T, src []byte) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "blobs.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	return f
}

func funcNames(f *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			names[fd.Name.Name] = true
		}
	}
	return names
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, testLayout(), 0x100ffd00, Options{}); err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	src := buf.String()
	f := parseSource(t, buf.Bytes())

	if f.Name.Name != "blobs" {
		t.Errorf("package = %s, want blobs", f.Name.Name)
	}
	if !strings.HasPrefix(src, "// Code generated by blobpack. DO NOT EDIT.\n") {
		t.Errorf("missing generated header:\n%s", src)
	}

	funcs := funcNames(f)
	for _, name := range []string{"Logo", "Font", "Sound", "blobRegion"} {
		if !funcs[name] {
			t.Errorf("missing func %s", name)
		}
	}

	wantContains := []string{
		"//go:embed blobdata/logo.bin",
		"blobRegion(0x100ffd00, 256)",
		"blobRegion(0x100ffe00, 50)",
		`fontErr = "blob font: checksum mismatch at 0x100ffd00"`,
		`soundErr = "blob sound: checksum mismatch at 0x100ffe00"`,
		"[sha1.Size]byte{" + blob.Checksum(sha1.Sum([]byte("font"))).Bytes() + "}",
		"unsafe.Slice(",
		"unsafe.Add(unsafe.Pointer(nil), addr)",
	}
	for _, want := range wantContains {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q:\n%s", want, src)
		}
	}

	// The only unsafe.Pointer is the nil base of the region helper; a
	// uintptr converted straight to a pointer fails go vet.
	if n := strings.Count(src, "unsafe.Pointer("); n != 1 {
		t.Errorf("unsafe.Pointer used %d times, want 1", n)
	}
	if strings.Contains(src, "unsafe.Pointer(addr)") {
		t.Error("region helper converts a uintptr to unsafe.Pointer")
	}
}

// A failed checksum must panic on every call, not only inside the first
// sync.Once run, so a recovered panic never leaves the accessor returning
// nil.
func TestGenerate_ChecksumFailureIsSticky(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, testLayout(), 0x100ffd00, Options{}); err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	f := parseSource(t, buf.Bytes())

	var font *ast.FuncDecl
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Name.Name == "Font" {
			font = fd
		}
	}
	if font == nil {
		t.Fatal("missing func Font")
	}

	isPanic := func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return false
		}
		id, ok := call.Fun.(*ast.Ident)
		return ok && id.Name == "panic"
	}

	// No panic inside the Once.Do closure.
	ast.Inspect(font.Body, func(n ast.Node) bool {
		if lit, ok := n.(*ast.FuncLit); ok {
			ast.Inspect(lit, func(n ast.Node) bool {
				if isPanic(n) {
					t.Error("Font panics inside sync.Once")
				}
				return true
			})
			return false
		}
		return true
	})

	// The recorded failure is checked after Do on every call.
	stmts := font.Body.List
	if len(stmts) != 3 {
		t.Fatalf("Font has %d statements, want Do, check, return", len(stmts))
	}
	check, ok := stmts[1].(*ast.IfStmt)
	if !ok {
		t.Fatalf("statement 2 of Font is %T, want *ast.IfStmt", stmts[1])
	}
	cond, ok := check.Cond.(*ast.BinaryExpr)
	if !ok || cond.Op != token.NEQ {
		t.Fatalf("check condition = %T", check.Cond)
	}
	if id, ok := cond.X.(*ast.Ident); !ok || id.Name != "fontErr" {
		t.Errorf("check reads %v, want fontErr", cond.X)
	}
	found := false
	ast.Inspect(check.Body, func(n ast.Node) bool {
		found = found || isPanic(n)
		return true
	})
	if !found {
		t.Error("failed checksum does not panic after Do")
	}
}

func TestGenerate_Imports(t *testing.T) {
	imports := func(l *blob.Layout) map[string]bool {
		var buf bytes.Buffer
		if err := Generate(&buf, l, 0x20000000, Options{Package: "assets"}); err != nil {
			t.Fatalf("Generate error = %v", err)
		}
		f := parseSource(t, buf.Bytes())
		if f.Name.Name != "assets" {
			t.Errorf("package = %s, want assets", f.Name.Name)
		}
		got := make(map[string]bool)
		for _, imp := range f.Imports {
			got[strings.Trim(imp.Path.Value, `"`)] = true
		}
		return got
	}

	inlineOnly := &blob.Layout{Blobs: []blob.Blob{{Name: "a", Size: 1, Inline: true}}}
	got := imports(inlineOnly)
	if !got["embed"] || got["unsafe"] || got["sync"] || got["crypto/sha1"] {
		t.Errorf("inline-only imports = %v", got)
	}

	loadedOnly := &blob.Layout{Blobs: []blob.Blob{{Name: "a", Size: 1}}, Total: 1}
	got = imports(loadedOnly)
	if got["embed"] || !got["unsafe"] || !got["sync"] || !got["crypto/sha1"] {
		t.Errorf("loaded-only imports = %v", got)
	}
}

func TestGenerate_EmbedDir(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{EmbedDir: "data/bin"}
	if err := Generate(&buf, testLayout(), 0, opts); err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if !strings.Contains(buf.String(), "//go:embed data/bin/logo.bin") {
		t.Errorf("embed directive does not use EmbedDir:\n%s", buf.String())
	}
	if got := opts.EmbedPath("logo"); got != "data/bin/logo.bin" {
		t.Errorf("EmbedPath = %q", got)
	}
	if got := (Options{}).EmbedPath("logo"); got != "blobdata/logo.bin" {
		t.Errorf("default EmbedPath = %q", got)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		layout  *blob.Layout
		base    uint32
		opts    Options
		wantErr error
	}{
		{
			name: "case collision",
			layout: &blob.Layout{Blobs: []blob.Blob{
				{Name: "logo", Inline: true},
				{Name: "Logo", Inline: true},
			}},
			wantErr: ErrNameCollision,
		},
		{
			name: "suffix collision",
			layout: &blob.Layout{Blobs: []blob.Blob{
				{Name: "X", Inline: true},
				{Name: "XData", Inline: true},
			}},
			wantErr: ErrNameCollision,
		},
		{
			name: "error variable collision",
			layout: &blob.Layout{Blobs: []blob.Blob{
				{Name: "X", Size: 4},
				{Name: "XErr", Inline: true},
			}, Total: 4},
			wantErr: ErrNameCollision,
		},
		{
			name:    "address overflow",
			layout:  &blob.Layout{Blobs: []blob.Blob{{Name: "big", Size: 0x100, Offset: 0x10}}, Total: 0x110},
			base:    0xffffff00,
			wantErr: blob.ErrIntegerOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Generate(&buf, tt.layout, tt.base, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Generate error = %v, want %v", err, tt.wantErr)
			}
			if buf.Len() != 0 {
				t.Error("Generate wrote output on error")
			}
		})
	}

	var buf bytes.Buffer
	if err := Generate(&buf, testLayout(), 0, Options{Package: "not-a-name"}); err == nil {
		t.Error("expected error for invalid package name")
	}
	if err := Generate(&buf, &blob.Layout{Blobs: []blob.Blob{{Name: "_x", Inline: true}}}, 0, Options{}); err == nil {
		t.Error("expected error for unexportable name")
	}
}
