package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestWriteAtomic_OS(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "v1.0-test", "sample.json")

	if err := WriteAtomic(OSFileSystem{}, target, []byte("[]")); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected %q, got %q", "[]", data)
	}
	if _, err := os.Stat(target + ".tmp"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestWriteAtomic_Memory(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := WriteAtomic(mfs, "/out/samples/CAM_FRONT/a.png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if !mfs.Exists("/out/samples/CAM_FRONT") {
		t.Error("expected parent directory to be created")
	}
	got := mfs.Files("/out")
	if len(got) != 1 || got[0] != "/out/samples/CAM_FRONT/a.png" {
		t.Errorf("unexpected files: %v", got)
	}
}

func TestMemoryFileSystem_WriteRequiresParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/missing/dir/file.bin", []byte("x"), 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := WriteAtomic(mfs, "/capture/CAM_FRONT_1.png", []byte("png")); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(mfs, "/capture/CAM_FRONT_1.png", "/out/samples/CAM_FRONT/CAM_FRONT_1.png"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/out/samples/CAM_FRONT/CAM_FRONT_1.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("copy mismatch: %q, %v", data, err)
	}

	// Self-copy is a no-op and must not fail.
	if err := CopyFile(mfs, "/capture/CAM_FRONT_1.png", "/capture/./CAM_FRONT_1.png"); err != nil {
		t.Errorf("self copy failed: %v", err)
	}

	if err := CopyFile(mfs, "/capture/none.png", "/out/x.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for missing source, got %v", err)
	}
}

func TestMemoryFileSystem_RenameAndExists(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/a", 0o755)
	_ = mfs.WriteFile("/a/x", []byte("abc"), 0o644)

	if err := mfs.Rename("/a/x", "/a/y"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/a/x") {
		t.Error("old path still exists")
	}
	if got, err := mfs.ReadFile("/a/y"); err != nil || string(got) != "abc" {
		t.Errorf("ReadFile(/a/y) = %q, %v", got, err)
	}
	if !mfs.Exists("/a") {
		t.Error("expected /a to exist as a directory")
	}
	if err := mfs.Rename("/a/nope", "/a/z"); err == nil {
		t.Error("expected error renaming missing file")
	}
}
