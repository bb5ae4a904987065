package promptvars

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllParsesLibraryFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "animal.md"),
		"# Common animals\ncat\ndog\n\nfox\n")
	writeFile(t, filepath.Join(dir, "mood.txt"), "serene\nchaotic\n")
	writeFile(t, filepath.Join(dir, "notes.json"), `{"ignored": true}`)

	store := NewStore(dir, nil)
	vars, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if len(vars) != 2 {
		t.Fatalf("got %d variables, want 2: %v", len(vars), vars)
	}

	animal, ok := vars["__animal__"]
	if !ok {
		t.Fatal("missing __animal__")
	}
	if animal.Description != "# Common animals" {
		t.Errorf("description = %q", animal.Description)
	}
	if len(animal.Values) != 3 || animal.Values[0] != "cat" || animal.Values[2] != "fox" {
		t.Errorf("values = %v", animal.Values)
	}

	if _, ok := vars["__mood__"]; !ok {
		t.Error("missing __mood__ from .txt file")
	}
}

func TestLoadAllSubdirectoriesGetSlashIdentifiers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "styles", "painting.md"), "impressionist\ncubist\n")

	store := NewStore(dir, nil)
	vars, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	v, ok := vars["__styles/painting__"]
	if !ok {
		t.Fatalf("missing slash-qualified variable, got %v", vars)
	}
	if len(v.Values) != 2 {
		t.Errorf("values = %v", v.Values)
	}
}

func TestLoadAllMissingDirectoryIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	vars, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(vars) != 0 {
		t.Errorf("vars = %v, want empty", vars)
	}
}

func TestLoadAllRejectsNonDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	writeFile(t, path, "not a dir")

	store := NewStore(path, nil)
	if _, err := store.LoadAll(); err == nil {
		t.Error("expected error for non-directory library path")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	path, err := store.Save("animal", "Auto-generated values for animal", []string{"owl", "lynx"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "animal.md" {
		t.Errorf("path = %q", path)
	}

	vars, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	v, ok := vars["__animal__"]
	if !ok {
		t.Fatal("saved variable not loadable")
	}
	if v.Description != "# Auto-generated values for animal" {
		t.Errorf("description = %q", v.Description)
	}
	if len(v.Values) != 2 || v.Values[0] != "owl" {
		t.Errorf("values = %v", v.Values)
	}
}

func TestSaveReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	if _, err := store.Save("animal", "", []string{"cat", "dog"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save("animal", "", []string{"owl"}); err != nil {
		t.Fatal(err)
	}

	vars, _ := store.LoadAll()
	v := vars["__animal__"]
	if len(v.Values) != 1 || v.Values[0] != "owl" {
		t.Errorf("values = %v, want replaced list", v.Values)
	}
}

func TestSaveValidation(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	if _, err := store.Save("", "", []string{"x"}); err == nil {
		t.Error("empty name accepted")
	}
	if _, err := store.Save("animal", "", nil); err == nil {
		t.Error("empty value list accepted")
	}
}

func TestSaveCreatesMissingLibraryDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "library")
	store := NewStore(dir, nil)

	if _, err := store.Save("animal", "", []string{"cat"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "animal.md")); err != nil {
		t.Errorf("file not created: %v", err)
	}
}
