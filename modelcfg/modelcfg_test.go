package modelcfg

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `models:
  - name: qwen3-8b
    kind: text
    url: https://example.test/qwen3-8b-q4.gguf
    file: qwen3-8b-q4.gguf
    description: Qwen3 8B instruct, Q4 quant
  - name: sdxl-turbo
    kind: image
    url: https://example.test/sdxl-turbo.safetensors
    file: sdxl-turbo.safetensors
`

func writePresets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPresets(t *testing.T) {
	p, err := Load(writePresets(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Models) != 2 {
		t.Fatalf("len(Models) = %d, want 2", len(p.Models))
	}

	m, ok := p.Find("qwen3-8b")
	if !ok {
		t.Fatal("qwen3-8b not found")
	}
	if m.Kind != KindText {
		t.Errorf("Kind = %q", m.Kind)
	}
	if m.File != "qwen3-8b-q4.gguf" {
		t.Errorf("File = %q", m.File)
	}

	if _, ok := p.Find("nope"); ok {
		t.Error("Find should miss unknown names")
	}

	images := p.ByKind(KindImage)
	if len(images) != 1 || images[0].Name != "sdxl-turbo" {
		t.Errorf("ByKind(image) = %v", images)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Models) != 0 {
		t.Errorf("expected empty presets, got %d", len(p.Models))
	}
}

func TestLoadRejectsInvalidKind(t *testing.T) {
	bad := `models:
  - name: weird
    kind: audio
    file: weird.bin
`
	if _, err := Load(writePresets(t, bad)); err == nil {
		t.Error("expected error for invalid kind")
	}
}
