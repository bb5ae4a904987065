package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchFullDownload(t *testing.T) {
	content := strings.Repeat("model-bytes-", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	result, err := Fetch(context.Background(), Options{URL: server.URL, DestPath: dest})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.BytesDownloaded != int64(len(content)) {
		t.Errorf("BytesDownloaded = %d, want %d", result.BytesDownloaded, len(content))
	}
	if result.Resumed {
		t.Error("fresh download should not report resumed")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Error("downloaded content mismatch")
	}
}

func TestFetchResumesPartialFile(t *testing.T) {
	content := strings.Repeat("x", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			fmt.Fprint(w, content)
			return
		}
		var from int64
		fmt.Sscanf(rangeHeader, "bytes=%d-", &from)
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", from, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, content[from:])
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(dest, []byte(content[:1000]), 0o644); err != nil {
		t.Fatalf("seeding partial file: %v", err)
	}

	result, err := Fetch(context.Background(), Options{
		URL:      server.URL,
		DestPath: dest,
		Resume:   true,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Resumed {
		t.Error("download should report resumed")
	}
	if result.BytesDownloaded != int64(len(content)-1000) {
		t.Errorf("BytesDownloaded = %d, want %d", result.BytesDownloaded, len(content)-1000)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != content {
		t.Error("resumed file content mismatch")
	}
}

func TestFetchVerifiesChecksum(t *testing.T) {
	content := "the model payload"
	sum := sha256.Sum256([]byte(content))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	result, err := Fetch(context.Background(), Options{
		URL:            server.URL,
		DestPath:       dest,
		ExpectedSHA256: hex.EncodeToString(sum[:]),
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.ChecksumValid {
		t.Error("checksum should verify")
	}

	// A wrong checksum must fail the download.
	dest2 := filepath.Join(t.TempDir(), "model2.gguf")
	_, err = Fetch(context.Background(), Options{
		URL:            server.URL,
		DestPath:       dest2,
		ExpectedSHA256: strings.Repeat("0", 64),
	})
	if err == nil {
		t.Error("expected checksum mismatch error")
	}
}

func TestEnsureModelSkipsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	// URL is bogus on purpose; no request should be made.
	if err := EnsureModel(context.Background(), "text", path, "http://invalid.test/x", nil, nil); err != nil {
		t.Errorf("EnsureModel: %v", err)
	}
}

func TestEnsureModelRequiresURLWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.gguf")
	if err := EnsureModel(context.Background(), "text", path, "", nil, nil); err == nil {
		t.Error("expected error for missing file without URL")
	}
}

func TestParseContentRange(t *testing.T) {
	start, end, total, err := ParseContentRange("bytes 100-199/5000")
	if err != nil {
		t.Fatalf("ParseContentRange: %v", err)
	}
	if start != 100 || end != 199 || total != 5000 {
		t.Errorf("got %d-%d/%d", start, end, total)
	}

	_, _, total, err = ParseContentRange("bytes 0-99/*")
	if err != nil {
		t.Fatalf("ParseContentRange: %v", err)
	}
	if total != -1 {
		t.Errorf("total = %d, want -1 for unknown", total)
	}

	if _, _, _, err := ParseContentRange("garbage"); err == nil {
		t.Error("expected error for malformed header")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1073741824, "1.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
