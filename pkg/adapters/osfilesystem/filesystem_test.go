package osfilesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "osfilesystem_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestFileSystem_WriteAndReadFile(t *testing.T) {
	fs := New()
	testPath := filepath.Join(tempDir(t), "stats.json")
	testData := []byte(`{"commits": 3}`)

	if err := fs.WriteFile(testPath, testData); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := fs.ReadFile(testPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestFileSystem_WriteFileReplaces(t *testing.T) {
	fs := New()
	dir := tempDir(t)
	testPath := filepath.Join(dir, "final.json")

	for _, content := range []string{"first version", "v2"} {
		if err := fs.WriteFile(testPath, []byte(content)); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	data, _ := fs.ReadFile(testPath)
	if string(data) != "v2" {
		t.Errorf("expected the second write to win, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temporary files left behind, got %d entries", len(entries))
	}

	info, err := os.Stat(testPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestFileSystem_WriteFileCreatesParentDirs(t *testing.T) {
	fs := New()
	testPath := filepath.Join(tempDir(t), "frames", "frame-000001.png")

	if err := fs.WriteFile(testPath, []byte("png")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	exists, err := fs.Exists(testPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected file to exist")
	}
}

func TestFileSystem_MkdirAll(t *testing.T) {
	fs := New()
	testPath := filepath.Join(tempDir(t), "a", "b", "c")

	if err := fs.MkdirAll(testPath); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	exists, err := fs.Exists(testPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected directory to exist")
	}
}

func TestFileSystem_ExistsAndRemove(t *testing.T) {
	fs := New()
	dir := tempDir(t)
	testPath := filepath.Join(dir, "test.txt")
	os.WriteFile(testPath, []byte("test"), 0644)

	if exists, err := fs.Exists(testPath); err != nil || !exists {
		t.Fatalf("expected file to exist, got %t, %v", exists, err)
	}
	if exists, err := fs.Exists(filepath.Join(dir, "nonexistent.txt")); err != nil || exists {
		t.Errorf("expected file to not exist, got %t, %v", exists, err)
	}

	if err := fs.Remove(testPath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if exists, _ := fs.Exists(testPath); exists {
		t.Error("expected file to be removed")
	}
}
