package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// pdfHeader is enough of a PDF preamble for extension plus sniff checks.
var pdfHeader = []byte("%PDF-1.7\n")

// WriteDeck creates an upload fixture at the target path, padded to the
// requested size. Paths ending in .pdf receive a PDF preamble; everything
// else gets opaque bytes. A size <= 0 still produces a non-empty file.
func WriteDeck(t testing.TB, path string, size int64) {
	t.Helper()

	var payload []byte
	if filepath.Ext(path) == ".pdf" {
		payload = append(payload, pdfHeader...)
	}
	if pad := size - int64(len(payload)); pad > 0 {
		payload = append(payload, bytes.Repeat([]byte{0x42}, int(pad))...)
	}
	if len(payload) == 0 {
		payload = []byte{0x42}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
